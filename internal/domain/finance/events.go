package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeTransactionAppended   = "TransactionAppended"
	EventTypeTransactionReversed   = "TransactionReversed"
	EventTypeBalanceDriftCorrected = "BalanceDriftCorrected"
	EventTypeReceivableCreated     = "ReceivableCreated"
	EventTypeReceivablePaid        = "ReceivablePaid"
	EventTypeBoletoIssued          = "BoletoIssued"
	EventTypeBoletoPaid            = "BoletoPaid"
	EventTypeBoletoOverdue         = "BoletoOverdue"
	EventTypeBoletoCancelled       = "BoletoCancelled"
	EventTypeBatchSettled          = "BatchSettled"
	EventTypePaymentRecovered      = "PaymentRecovered"
	EventTypeClosureCreated        = "CommissionClosureCreated"
	EventTypeClosurePaid           = "CommissionClosurePaid"
	EventTypeClosureCancelled      = "CommissionClosureCancelled"
)

// Aggregate type names
const (
	AggregateTypeAccount    = "Account"
	AggregateTypeReceivable = "Receivable"
	AggregateTypeBoleto     = "Boleto"
	AggregateTypeSettlement = "Settlement"
	AggregateTypeClosure    = "CommissionClosure"
)

// TransactionAppendedEvent is raised when a ledger entry is posted
type TransactionAppendedEvent struct {
	shared.BaseDomainEvent
	AccountID     uuid.UUID       `json:"account_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Sequence      int64           `json:"sequence"`
	Type          TransactionType `json:"transaction_type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType ReferenceType   `json:"reference_type"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
}

// EventType returns the event type name
func (e *TransactionAppendedEvent) EventType() string {
	return EventTypeTransactionAppended
}

// NewTransactionAppendedEvent creates a TransactionAppendedEvent
func NewTransactionAppendedEvent(tx *Transaction) *TransactionAppendedEvent {
	return &TransactionAppendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionAppended, AggregateTypeAccount, tx.AccountID, tx.TenantID),
		AccountID:       tx.AccountID,
		TransactionID:   tx.ID,
		Sequence:        tx.Sequence,
		Type:            tx.Type,
		Amount:          tx.Amount,
		BalanceAfter:    tx.BalanceAfter,
		ReferenceType:   tx.Reference.Type,
		ReferenceID:     tx.Reference.ID,
	}
}

// TransactionReversedEvent is raised when a ledger entry is deleted and undone
type TransactionReversedEvent struct {
	shared.BaseDomainEvent
	AccountID     uuid.UUID       `json:"account_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// EventType returns the event type name
func (e *TransactionReversedEvent) EventType() string {
	return EventTypeTransactionReversed
}

// NewTransactionReversedEvent creates a TransactionReversedEvent
func NewTransactionReversedEvent(tx *Transaction, balanceAfter decimal.Decimal) *TransactionReversedEvent {
	return &TransactionReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionReversed, AggregateTypeAccount, tx.AccountID, tx.TenantID),
		AccountID:       tx.AccountID,
		TransactionID:   tx.ID,
		Delta:           tx.ReversalDelta(),
		BalanceAfter:    balanceAfter,
	}
}

// BalanceDriftCorrectedEvent is raised when a replay repaired stored balances
type BalanceDriftCorrectedEvent struct {
	shared.BaseDomainEvent
	AccountID         uuid.UUID       `json:"account_id"`
	StoredBalance     decimal.Decimal `json:"stored_balance"`
	ExpectedBalance   decimal.Decimal `json:"expected_balance"`
	CorrectedSnapshot int             `json:"corrected_snapshots"`
}

// EventType returns the event type name
func (e *BalanceDriftCorrectedEvent) EventType() string {
	return EventTypeBalanceDriftCorrected
}

// NewBalanceDriftCorrectedEvent creates a BalanceDriftCorrectedEvent
func NewBalanceDriftCorrectedEvent(account *Account, stored decimal.Decimal, result ReplayResult) *BalanceDriftCorrectedEvent {
	return &BalanceDriftCorrectedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeBalanceDriftCorrected, AggregateTypeAccount, account.ID, account.TenantID),
		AccountID:         account.ID,
		StoredBalance:     stored,
		ExpectedBalance:   result.Final,
		CorrectedSnapshot: len(result.Corrections),
	}
}

// ReceivableCreatedEvent is raised when a receivable is opened
type ReceivableCreatedEvent struct {
	shared.BaseDomainEvent
	ReceivableID uuid.UUID       `json:"receivable_id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	Origin       OriginKind      `json:"origin"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *ReceivableCreatedEvent) EventType() string {
	return EventTypeReceivableCreated
}

// NewReceivableCreatedEvent creates a ReceivableCreatedEvent
func NewReceivableCreatedEvent(r *Receivable) *ReceivableCreatedEvent {
	return &ReceivableCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivableCreated, AggregateTypeReceivable, r.ID, r.TenantID),
		ReceivableID:    r.ID,
		CustomerID:      r.CustomerID,
		Origin:          r.Origin.Kind(),
		Amount:          r.Amount,
		DueDate:         r.DueDate,
	}
}

// ReceivablePaidEvent is raised when a receivable is fully settled
type ReceivablePaidEvent struct {
	shared.BaseDomainEvent
	ReceivableID  uuid.UUID       `json:"receivable_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	BankAccountID *uuid.UUID      `json:"bank_account_id,omitempty"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *ReceivablePaidEvent) EventType() string {
	return EventTypeReceivablePaid
}

// NewReceivablePaidEvent creates a ReceivablePaidEvent
func NewReceivablePaidEvent(r *Receivable) *ReceivablePaidEvent {
	paidAt := time.Now().UTC()
	if r.PaymentDate != nil {
		paidAt = *r.PaymentDate
	}
	return &ReceivablePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivablePaid, AggregateTypeReceivable, r.ID, r.TenantID),
		ReceivableID:    r.ID,
		CustomerID:      r.CustomerID,
		Amount:          r.Amount,
		PaymentMethod:   r.PaymentMethod,
		BankAccountID:   r.BankAccountID,
		PaidAt:          paidAt,
	}
}

// BoletoEvent carries the boleto state for every boleto lifecycle event
type BoletoEvent struct {
	shared.BaseDomainEvent
	BoletoID   uuid.UUID       `json:"boleto_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	OrderID    *uuid.UUID      `json:"order_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     BoletoStatus    `json:"status"`
	ExternalID *string         `json:"external_id,omitempty"`
}

func newBoletoEvent(eventType string, b *Boleto) *BoletoEvent {
	return &BoletoEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeBoleto, b.ID, b.TenantID),
		BoletoID:        b.ID,
		CustomerID:      b.CustomerID,
		OrderID:         b.OrderID,
		Amount:          b.Amount,
		Status:          b.Status,
		ExternalID:      b.ExternalID,
	}
}

// NewBoletoIssuedEvent creates a BoletoIssued event
func NewBoletoIssuedEvent(b *Boleto) *BoletoEvent {
	return newBoletoEvent(EventTypeBoletoIssued, b)
}

// NewBoletoPaidEvent creates a BoletoPaid event
func NewBoletoPaidEvent(b *Boleto) *BoletoEvent {
	return newBoletoEvent(EventTypeBoletoPaid, b)
}

// NewBoletoOverdueEvent creates a BoletoOverdue event
func NewBoletoOverdueEvent(b *Boleto) *BoletoEvent {
	return newBoletoEvent(EventTypeBoletoOverdue, b)
}

// NewBoletoCancelledEvent creates a BoletoCancelled event
func NewBoletoCancelledEvent(b *Boleto) *BoletoEvent {
	return newBoletoEvent(EventTypeBoletoCancelled, b)
}

// BatchSettledEvent is raised when several receivables are settled by one deposit
type BatchSettledEvent struct {
	shared.BaseDomainEvent
	BatchID       uuid.UUID       `json:"batch_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	ReceivableIDs []uuid.UUID     `json:"receivable_ids"`
	Total         decimal.Decimal `json:"total"`
}

// EventType returns the event type name
func (e *BatchSettledEvent) EventType() string {
	return EventTypeBatchSettled
}

// NewBatchSettledEvent creates a BatchSettledEvent
func NewBatchSettledEvent(tenantID, batchID uuid.UUID, tx *Transaction, receivableIDs []uuid.UUID) *BatchSettledEvent {
	return &BatchSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchSettled, AggregateTypeSettlement, batchID, tenantID),
		BatchID:         batchID,
		AccountID:       tx.AccountID,
		TransactionID:   tx.ID,
		ReceivableIDs:   receivableIDs,
		Total:           tx.Amount,
	}
}

// PaymentRecoveredEvent is raised when an orphan payment produced a recovery order
type PaymentRecoveredEvent struct {
	shared.BaseDomainEvent
	ExternalID string          `json:"external_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *PaymentRecoveredEvent) EventType() string {
	return EventTypePaymentRecovered
}

// NewPaymentRecoveredEvent creates a PaymentRecoveredEvent
func NewPaymentRecoveredEvent(tenantID, orderID, customerID uuid.UUID, externalID string, amount decimal.Decimal) *PaymentRecoveredEvent {
	return &PaymentRecoveredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecovered, AggregateTypeSettlement, orderID, tenantID),
		ExternalID:      externalID,
		OrderID:         orderID,
		CustomerID:      customerID,
		Amount:          amount,
	}
}

// ClosureEvent carries the closure state for every closure lifecycle event
type ClosureEvent struct {
	shared.BaseDomainEvent
	ClosureID      uuid.UUID       `json:"closure_id"`
	SellerID       uuid.UUID       `json:"seller_id"`
	ReferenceMonth string          `json:"reference_month"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Status         ClosureStatus   `json:"status"`
}

func newClosureEvent(eventType string, c *CommissionClosure) *ClosureEvent {
	return &ClosureEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeClosure, c.ID, c.TenantID),
		ClosureID:       c.ID,
		SellerID:        c.SellerID,
		ReferenceMonth:  c.ReferenceMonth,
		TotalAmount:     c.TotalAmount,
		Status:          c.Status,
	}
}

// NewClosureCreatedEvent creates a CommissionClosureCreated event
func NewClosureCreatedEvent(c *CommissionClosure) *ClosureEvent {
	return newClosureEvent(EventTypeClosureCreated, c)
}

// NewClosurePaidEvent creates a CommissionClosurePaid event
func NewClosurePaidEvent(c *CommissionClosure) *ClosureEvent {
	return newClosureEvent(EventTypeClosurePaid, c)
}

// NewClosureCancelledEvent creates a CommissionClosureCancelled event
func NewClosureCancelledEvent(c *CommissionClosure) *ClosureEvent {
	return newClosureEvent(EventTypeClosureCancelled, c)
}
