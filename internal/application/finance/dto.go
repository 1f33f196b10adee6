package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/partner"
	"github.com/erp/ledger/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Accounts and transactions =====================

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	Name               string          `json:"name"`
	Kind               string          `json:"kind"`
	Balance            decimal.Decimal `json:"balance"`
	IsActive           bool            `json:"is_active"`
	LastSequence       int64           `json:"last_sequence"`
	CheckpointSequence int64           `json:"checkpoint_sequence"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CreateAccountRequest opens a bank or cash account
type CreateAccountRequest struct {
	Name           string
	Kind           finance.AccountKind
	OpeningBalance decimal.Decimal
}

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Sequence      int64           `json:"sequence"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   *uuid.UUID      `json:"reference_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	Date          time.Time       `json:"date"`
	StatementRef  *string         `json:"statement_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AppendTransactionRequest posts one entry to an account
type AppendTransactionRequest struct {
	AccountID     uuid.UUID
	Type          finance.TransactionType
	Amount        decimal.Decimal
	Date          time.Time
	ReferenceType finance.ReferenceType
	ReferenceID   *uuid.UUID
	Description   string
}

// TransactionListFilter narrows a ledger listing
type TransactionListFilter struct {
	From     *time.Time
	To       *time.Time
	Type     string
	Page     int
	PageSize int
}

// RecomputeResult reports what a full replay found and fixed
type RecomputeResult struct {
	AccountID        uuid.UUID       `json:"account_id"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	Balance          decimal.Decimal `json:"balance"`
	Replayed         int             `json:"replayed"`
	Corrections      int             `json:"corrections"`
	BalanceCorrected bool            `json:"balance_corrected"`
}

// ReversalResult reports the balance after a reversal
type ReversalResult struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Delta         decimal.Decimal `json:"delta"`
	Balance       decimal.Decimal `json:"balance"`
}

// ===================== Receivables =====================

// ReceivableResponse represents a receivable in API responses
type ReceivableResponse struct {
	ID                uuid.UUID        `json:"id"`
	TenantID          uuid.UUID        `json:"tenant_id"`
	CustomerID        uuid.UUID        `json:"customer_id"`
	Origin            string           `json:"origin"`
	OrderID           *uuid.UUID       `json:"order_id,omitempty"`
	BoletoID          *uuid.UUID       `json:"boleto_id,omitempty"`
	Amount            decimal.Decimal  `json:"amount"`
	PaidAmount        decimal.Decimal  `json:"paid_amount"`
	Outstanding       decimal.Decimal  `json:"outstanding"`
	Status            string           `json:"status"`
	DueDate           time.Time        `json:"due_date"`
	PaymentDate       *time.Time       `json:"payment_date,omitempty"`
	NetAmount         *decimal.Decimal `json:"net_amount,omitempty"`
	PaymentMethod     string           `json:"payment_method,omitempty"`
	BankAccountID     *uuid.UUID       `json:"bank_account_id,omitempty"`
	PaidBy            string           `json:"paid_by,omitempty"`
	ExternalID        *string          `json:"external_id,omitempty"`
	SettlementBatchID *uuid.UUID       `json:"settlement_batch_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Version           int              `json:"version"`
}

// CreateReceivableRequest creates a receivable. OrderID makes it an order
// invoice; OrderID plus BoletoID makes it the shadow of a boleto.
type CreateReceivableRequest struct {
	CustomerID uuid.UUID
	Amount     decimal.Decimal
	DueDate    time.Time
	OrderID    *uuid.UUID
	BoletoID   *uuid.UUID
	ExternalID string
}

// MarkReceivablePaidRequest settles whatever is outstanding on a receivable
type MarkReceivablePaidRequest struct {
	Method        string
	BankAccountID *uuid.UUID
	PaidBy        string
	PaidAt        time.Time
}

// ReceivableListFilter narrows a receivable listing
type ReceivableListFilter struct {
	CustomerID *uuid.UUID
	Status     string
	DueBefore  *time.Time
	Page       int
	PageSize   int
}

// ===================== Boletos =====================

// BoletoResponse represents a boleto in API responses
type BoletoResponse struct {
	ID         uuid.UUID        `json:"id"`
	TenantID   uuid.UUID        `json:"tenant_id"`
	CustomerID uuid.UUID        `json:"customer_id"`
	OrderID    *uuid.UUID       `json:"order_id,omitempty"`
	Amount     decimal.Decimal  `json:"amount"`
	DueDate    time.Time        `json:"due_date"`
	Status     string           `json:"status"`
	ExternalID *string          `json:"external_id,omitempty"`
	Barcode    string           `json:"barcode,omitempty"`
	QRCode     string           `json:"qr_code,omitempty"`
	PaidAt     *time.Time       `json:"paid_at,omitempty"`
	NetAmount  *decimal.Decimal `json:"net_amount,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CreateBoletoRequest issues a boleto, optionally against an order
type CreateBoletoRequest struct {
	CustomerID uuid.UUID
	OrderID    *uuid.UUID
	Amount     decimal.Decimal
	DueDate    time.Time
}

// MarkBoletoPaidRequest settles a boleto. BankAccountID posts the income to a ledger.
type MarkBoletoPaidRequest struct {
	PaidAt        time.Time
	NetAmount     decimal.Decimal
	BankAccountID *uuid.UUID
}

// BoletoSettlementResult reports a settled boleto and its ledger entry, if any
type BoletoSettlementResult struct {
	Boleto         *BoletoResponse      `json:"boleto"`
	Transaction    *TransactionResponse `json:"transaction,omitempty"`
	CreditRestored decimal.Decimal      `json:"credit_restored"`
}

// BoletoListFilter narrows a boleto listing
type BoletoListFilter struct {
	CustomerID *uuid.UUID
	Status     string
	Page       int
	PageSize   int
}

// PenaltyResponse is the late charge for paying a boleto on a given day
type PenaltyResponse struct {
	BoletoID    uuid.UUID       `json:"boleto_id"`
	AsOf        string          `json:"as_of"`
	DaysOverdue int             `json:"days_overdue"`
	Fine        decimal.Decimal `json:"fine"`
	Interest    decimal.Decimal `json:"interest"`
	Total       decimal.Decimal `json:"total"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

// ===================== Credit =====================

// CustomerCreditResponse represents a customer's credit line
type CustomerCreditResponse struct {
	CustomerID      uuid.UUID       `json:"customer_id"`
	Name            string          `json:"name"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	ConsumedCredit  decimal.Decimal `json:"consumed_credit"`
}

// CreditExposureResponse breaks down what a customer owes
type CreditExposureResponse struct {
	CustomerCreditResponse
	ReceivableTotal      decimal.Decimal `json:"receivable_total"`
	BoletoTotal          decimal.Decimal `json:"boleto_total"`
	UninvoicedOrderTotal decimal.Decimal `json:"uninvoiced_order_total"`
	ExpectedAvailable    decimal.Decimal `json:"expected_available"`
	InSync               bool            `json:"in_sync"`
}

// CreateCustomerRequest registers a customer with a credit line
type CreateCustomerRequest struct {
	Name        string
	CreditLimit decimal.Decimal
}

// ReconcileCreditSummary reports a repair pass over every customer
type ReconcileCreditSummary struct {
	Checked   int `json:"checked"`
	Corrected int `json:"corrected"`
}

// OrderResponse represents an order as seen by the credit ledger
type OrderResponse struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	Total             decimal.Decimal `json:"total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaymentStatus     string          `json:"payment_status"`
	Origin            string          `json:"origin"`
	ExternalPaymentID *string         `json:"external_payment_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ===================== Settlement =====================

// SettleSingleRequest applies one payment increment to a receivable
type SettleSingleRequest struct {
	ReceivableID  uuid.UUID
	BankAccountID *uuid.UUID
	Amount        decimal.Decimal
	Method        string
	PaidBy        string
	PaidAt        time.Time
}

// SettleSingleResult reports the receivable and ledger entry of a settlement
type SettleSingleResult struct {
	Receivable     *ReceivableResponse  `json:"receivable"`
	Transaction    *TransactionResponse `json:"transaction"`
	CreditRestored decimal.Decimal      `json:"credit_restored"`
}

// SettleBatchRequest settles several receivables with one ledger entry.
// Strict nil means the configured default.
type SettleBatchRequest struct {
	ReceivableIDs []uuid.UUID
	BankAccountID *uuid.UUID
	Method        string
	PaidBy        string
	PaidAt        time.Time
	Strict        *bool
}

// SkippedReceivable is a batch member that could not be settled
type SkippedReceivable struct {
	ReceivableID uuid.UUID `json:"receivable_id"`
	Reason       string    `json:"reason"`
}

// SettleBatchResult reports a batch settlement
type SettleBatchResult struct {
	BatchID     uuid.UUID            `json:"batch_id"`
	Total       decimal.Decimal      `json:"total"`
	Settled     []uuid.UUID          `json:"settled"`
	Skipped     []SkippedReceivable  `json:"skipped"`
	Transaction *TransactionResponse `json:"transaction"`
}

// Webhook outcomes
const (
	OutcomeSettled      = "SETTLED"
	OutcomeDuplicate    = "DUPLICATE"
	OutcomeAlreadyPaid  = "ALREADY_PAID"
	OutcomeRecovered    = "RECOVERED"
	OutcomeMarkedLate   = "MARKED_OVERDUE"
	OutcomeAcknowledged = "ACKNOWLEDGED"
)

// NotificationResult reports what a payment notification did
type NotificationResult struct {
	Outcome     string               `json:"outcome"`
	RecordType  string               `json:"record_type,omitempty"`
	RecordID    *uuid.UUID           `json:"record_id,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID            uuid.UUID       `json:"id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `json:"status"`
	AccountID     *uuid.UUID      `json:"account_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	TransactionID *uuid.UUID      `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreateExpenseRequest records a bill
type CreateExpenseRequest struct {
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
}

// PayExpenseRequest pays a bill from an account
type PayExpenseRequest struct {
	AccountID *uuid.UUID
	PaidAt    time.Time
}

// ===================== Commissions =====================

// CommissionResponse represents a commission in API responses
type CommissionResponse struct {
	ID        uuid.UUID       `json:"id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	OrderID   *uuid.UUID      `json:"order_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	ClosureID *uuid.UUID      `json:"closure_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RecordCommissionRequest records a seller's commission
type RecordCommissionRequest struct {
	SellerID uuid.UUID
	OrderID  *uuid.UUID
	Amount   decimal.Decimal
	EarnedAt time.Time
}

// ClosureResponse represents a commission closure in API responses
type ClosureResponse struct {
	ID              uuid.UUID       `json:"id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	ReferenceMonth  string          `json:"reference_month"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CommissionCount int             `json:"commission_count"`
	Status          string          `json:"status"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	TransactionID   *uuid.UUID      `json:"transaction_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SellerFailure is a seller whose closure could not be created
type SellerFailure struct {
	SellerID uuid.UUID `json:"seller_id"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
}

// CloseCommissionsResult reports the closures created for a month
type CloseCommissionsResult struct {
	ReferenceMonth string            `json:"reference_month"`
	Closures       []ClosureResponse `json:"closures"`
	Failures       []SellerFailure   `json:"failures"`
}

// PayClosureRequest pays a closure, from an account when AccountID is set
type PayClosureRequest struct {
	AccountID *uuid.UUID
	PaidAt    time.Time
}

// ClosureListFilter narrows a closure listing
type ClosureListFilter struct {
	SellerID       *uuid.UUID
	ReferenceMonth string
	Status         string
	Page           int
	PageSize       int
}

// ===================== Statement reconciliation =====================

// StatementLineRequest is one imported bank statement record
type StatementLineRequest struct {
	ExternalID string
	Amount     decimal.Decimal
	Date       time.Time
	Type       finance.TransactionType
}

// StatementMatchResponse pairs a statement line with a ledger entry
type StatementMatchResponse struct {
	ExternalID    string    `json:"external_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// StatementLineResponse echoes an unmatched statement line
type StatementLineResponse struct {
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Type       string          `json:"type"`
}

// ReconciliationResult reports a statement import
type ReconciliationResult struct {
	AccountID           uuid.UUID                `json:"account_id"`
	Matched             []StatementMatchResponse `json:"matched"`
	UnmatchedLines      []StatementLineResponse  `json:"unmatched_lines"`
	UnmatchedLedgerTxns []TransactionResponse    `json:"unmatched_ledger_transactions"`
}

// ===================== Helper Functions =====================

func toAccountResponse(a *finance.Account) *AccountResponse {
	return &AccountResponse{
		ID:                 a.ID,
		TenantID:           a.TenantID,
		Name:               a.Name,
		Kind:               string(a.Kind),
		Balance:            a.Balance,
		IsActive:           a.IsActive,
		LastSequence:       a.LastSequence,
		CheckpointSequence: a.CheckpointSequence,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toTransactionResponse(t *finance.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Sequence:      t.Sequence,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		ReferenceType: string(t.Reference.Type),
		ReferenceID:   t.Reference.ID,
		Description:   t.Description,
		Date:          t.Date,
		StatementRef:  t.StatementRef,
		CreatedAt:     t.CreatedAt,
	}
}

func toTransactionResponses(txns []*finance.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txns))
	for i, t := range txns {
		out[i] = *toTransactionResponse(t)
	}
	return out
}

func toReceivableResponse(r *finance.Receivable) *ReceivableResponse {
	return &ReceivableResponse{
		ID:                r.ID,
		TenantID:          r.TenantID,
		CustomerID:        r.CustomerID,
		Origin:            string(r.Origin.Kind()),
		OrderID:           r.Origin.OrderID(),
		BoletoID:          r.Origin.BoletoID(),
		Amount:            r.Amount,
		PaidAmount:        r.PaidAmount,
		Outstanding:       r.Outstanding(),
		Status:            string(r.Status),
		DueDate:           r.DueDate,
		PaymentDate:       r.PaymentDate,
		NetAmount:         r.NetAmount,
		PaymentMethod:     r.PaymentMethod,
		BankAccountID:     r.BankAccountID,
		PaidBy:            r.PaidBy,
		ExternalID:        r.ExternalID,
		SettlementBatchID: r.SettlementBatchID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Version:           r.Version,
	}
}

func toReceivableResponses(list []*finance.Receivable) []ReceivableResponse {
	out := make([]ReceivableResponse, len(list))
	for i, r := range list {
		out[i] = *toReceivableResponse(r)
	}
	return out
}

func toBoletoResponse(b *finance.Boleto) *BoletoResponse {
	return &BoletoResponse{
		ID:         b.ID,
		TenantID:   b.TenantID,
		CustomerID: b.CustomerID,
		OrderID:    b.OrderID,
		Amount:     b.Amount,
		DueDate:    b.DueDate,
		Status:     string(b.Status),
		ExternalID: b.ExternalID,
		Barcode:    b.Barcode,
		QRCode:     b.QRCode,
		PaidAt:     b.PaidAt,
		NetAmount:  b.NetAmount,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toCustomerCreditResponse(c *partner.Customer) *CustomerCreditResponse {
	return &CustomerCreditResponse{
		CustomerID:      c.ID,
		Name:            c.Name,
		CreditLimit:     c.CreditLimit,
		AvailableCredit: c.AvailableCredit,
		ConsumedCredit:  c.ConsumedCredit(),
	}
}

func toOrderResponse(o *trade.Order) *OrderResponse {
	return &OrderResponse{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		Total:             o.Total,
		PaidAmount:        o.PaidAmount,
		PaymentStatus:     string(o.PaymentStatus),
		Origin:            string(o.Origin),
		ExternalPaymentID: o.ExternalPaymentID,
		CreatedAt:         o.CreatedAt,
	}
}

func toExpenseResponse(e *finance.Expense) *ExpenseResponse {
	return &ExpenseResponse{
		ID:            e.ID,
		Description:   e.Description,
		Amount:        e.Amount,
		DueDate:       e.DueDate,
		Status:        string(e.Status),
		AccountID:     e.AccountID,
		PaidAt:        e.PaidAt,
		TransactionID: e.TransactionID,
		CreatedAt:     e.CreatedAt,
	}
}

func toCommissionResponse(c *finance.Commission) *CommissionResponse {
	return &CommissionResponse{
		ID:        c.ID,
		SellerID:  c.SellerID,
		OrderID:   c.OrderID,
		Amount:    c.Amount,
		Status:    string(c.Status),
		ClosureID: c.ClosureID,
		CreatedAt: c.CreatedAt,
	}
}

func toClosureResponse(c *finance.CommissionClosure) *ClosureResponse {
	return &ClosureResponse{
		ID:              c.ID,
		SellerID:        c.SellerID,
		ReferenceMonth:  c.ReferenceMonth,
		TotalAmount:     c.TotalAmount,
		CommissionCount: c.CommissionCount,
		Status:          string(c.Status),
		PaidAt:          c.PaidAt,
		TransactionID:   c.TransactionID,
		CreatedAt:       c.CreatedAt,
	}
}
