package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableStatus represents the settlement status of a receivable
type ReceivableStatus string

const (
	ReceivableStatusPending ReceivableStatus = "PENDING"
	ReceivableStatusOverdue ReceivableStatus = "OVERDUE"
	ReceivableStatusPartial ReceivableStatus = "PARTIAL"
	ReceivableStatusPaid    ReceivableStatus = "PAID"
)

// IsValid checks if the status is known
func (s ReceivableStatus) IsValid() bool {
	switch s {
	case ReceivableStatusPending, ReceivableStatusOverdue, ReceivableStatusPartial, ReceivableStatusPaid:
		return true
	}
	return false
}

// IsOutstanding returns true while money is still owed
func (s ReceivableStatus) IsOutstanding() bool {
	return s == ReceivableStatusPending || s == ReceivableStatusOverdue || s == ReceivableStatusPartial
}

// OutstandingReceivableStatuses lists the statuses that still owe money
func OutstandingReceivableStatuses() []ReceivableStatus {
	return []ReceivableStatus{ReceivableStatusPending, ReceivableStatusOverdue, ReceivableStatusPartial}
}

// OriginKind tags how a receivable came to exist
type OriginKind string

const (
	OriginStandalone OriginKind = "STANDALONE"
	OriginOrder      OriginKind = "ORDER"
	OriginBoleto     OriginKind = "BOLETO"
)

// ReceivableOrigin is a tagged union: Standalone, FromOrder(orderID) or
// FromBoleto(boletoID, orderID). A boleto-backed receivable is a shadow of
// the boleto and is counted against credit through the boleto only.
type ReceivableOrigin struct {
	kind     OriginKind
	orderID  *uuid.UUID
	boletoID *uuid.UUID
}

// Standalone is a receivable with no source document
func Standalone() ReceivableOrigin {
	return ReceivableOrigin{kind: OriginStandalone}
}

// FromOrder is a receivable invoicing an order
func FromOrder(orderID uuid.UUID) ReceivableOrigin {
	return ReceivableOrigin{kind: OriginOrder, orderID: &orderID}
}

// FromBoleto is the shadow receivable of a boleto issued for an order
func FromBoleto(boletoID, orderID uuid.UUID) ReceivableOrigin {
	return ReceivableOrigin{kind: OriginBoleto, orderID: &orderID, boletoID: &boletoID}
}

// OriginFromColumns rebuilds an origin from nullable foreign keys
func OriginFromColumns(orderID, boletoID *uuid.UUID) ReceivableOrigin {
	switch {
	case boletoID != nil && orderID != nil:
		return FromBoleto(*boletoID, *orderID)
	case boletoID != nil:
		return ReceivableOrigin{kind: OriginBoleto, boletoID: boletoID}
	case orderID != nil:
		return FromOrder(*orderID)
	default:
		return Standalone()
	}
}

// Kind returns the variant tag
func (o ReceivableOrigin) Kind() OriginKind {
	if o.kind == "" {
		return OriginStandalone
	}
	return o.kind
}

// OrderID returns the invoiced order, if any
func (o ReceivableOrigin) OrderID() *uuid.UUID {
	return o.orderID
}

// BoletoID returns the backing boleto, if any
func (o ReceivableOrigin) BoletoID() *uuid.UUID {
	return o.boletoID
}

// CountsTowardCredit is false for boleto shadows
func (o ReceivableOrigin) CountsTowardCredit() bool {
	return o.Kind() != OriginBoleto
}

// withoutBoleto drops the boleto linkage, keeping the order if any
func (o ReceivableOrigin) withoutBoleto() ReceivableOrigin {
	if o.orderID != nil {
		return FromOrder(*o.orderID)
	}
	return Standalone()
}

// Payment describes one settlement increment applied to a receivable
type Payment struct {
	Amount        decimal.Decimal
	NetAmount     decimal.Decimal
	Method        string
	BankAccountID *uuid.UUID
	PaidBy        string
	PaidAt        time.Time

	// BatchID is set when the payment is part of a batch settlement
	BatchID *uuid.UUID
}

// Receivable is money a customer owes
type Receivable struct {
	shared.TenantAggregateRoot
	CustomerID    uuid.UUID
	Origin        ReceivableOrigin
	Amount        decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        ReceivableStatus
	DueDate       time.Time
	PaymentDate   *time.Time
	NetAmount     *decimal.Decimal
	PaymentMethod string
	BankAccountID *uuid.UUID
	PaidBy        string
	ExternalID    *string

	// SettlementBatchID names the batch whose deposit settled this receivable
	SettlementBatchID *uuid.UUID
}

// NewReceivable creates a PENDING receivable
func NewReceivable(tenantID, customerID uuid.UUID, amount decimal.Decimal, dueDate time.Time, origin ReceivableOrigin) (*Receivable, error) {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer is required")
	}
	r := &Receivable{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		Origin:              origin,
		Amount:              amount,
		PaidAmount:          decimal.Zero,
		Status:              ReceivableStatusPending,
		DueDate:             dueDate.UTC(),
	}
	r.AddDomainEvent(NewReceivableCreatedEvent(r))
	return r, nil
}

// Outstanding returns the amount still owed
func (r *Receivable) Outstanding() decimal.Decimal {
	return shared.RoundMoney(r.Amount.Sub(r.PaidAmount))
}

// IsPaid returns true once fully settled
func (r *Receivable) IsPaid() bool {
	return r.Status == ReceivableStatusPaid
}

// ApplyPayment records one payment increment. The receivable becomes PAID
// when the cumulative paid amount reaches its amount, PARTIAL otherwise.
// It returns true when this increment completed the receivable.
func (r *Receivable) ApplyPayment(p Payment) (bool, error) {
	if r.IsPaid() {
		return false, ErrAlreadyPaid
	}
	amount := shared.RoundMoney(p.Amount)
	if !amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	if amount.GreaterThan(r.Outstanding()) {
		return false, shared.NewDomainErrorf("INVALID_AMOUNT", "Payment %s exceeds outstanding %s", amount.StringFixed(2), r.Outstanding().StringFixed(2))
	}

	r.PaidAmount = r.PaidAmount.Add(amount)
	r.recordPayment(p)

	completed := r.Outstanding().IsZero()
	if completed {
		r.Status = ReceivableStatusPaid
		r.AddDomainEvent(NewReceivablePaidEvent(r))
	} else {
		r.Status = ReceivableStatusPartial
	}
	r.Touch()
	r.IncrementVersion()
	return completed, nil
}

// MarkPaid settles whatever is still outstanding in one step
func (r *Receivable) MarkPaid(p Payment) error {
	if r.IsPaid() {
		return ErrAlreadyPaid
	}
	p.Amount = r.Outstanding()
	_, err := r.ApplyPayment(p)
	return err
}

// MarkOverdue moves a PENDING receivable past its local due day to OVERDUE.
// It returns false when nothing changed.
func (r *Receivable) MarkOverdue(startOfToday time.Time) bool {
	if r.Status != ReceivableStatusPending || !r.DueDate.Before(startOfToday) {
		return false
	}
	r.Status = ReceivableStatusOverdue
	r.Touch()
	r.IncrementVersion()
	return true
}

// UnlinkBoleto turns a boleto shadow back into a plain, PENDING receivable
// with its bank linkage cleared. Used when the backing boleto is cancelled.
func (r *Receivable) UnlinkBoleto() error {
	if r.Origin.Kind() != OriginBoleto {
		return shared.NewDomainError("INVALID_STATE", "Receivable is not backed by a boleto")
	}
	if r.IsPaid() {
		return ErrAlreadyPaid
	}
	r.Origin = r.Origin.withoutBoleto()
	r.Status = ReceivableStatusPending
	r.PaidAmount = decimal.Zero
	r.PaymentDate = nil
	r.NetAmount = nil
	r.PaymentMethod = ""
	r.BankAccountID = nil
	r.PaidBy = ""
	r.ExternalID = nil
	r.Touch()
	r.IncrementVersion()
	return nil
}

func (r *Receivable) recordPayment(p Payment) {
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	paidAt = paidAt.UTC()
	r.PaymentDate = &paidAt

	net := shared.RoundMoney(p.NetAmount)
	if !net.IsPositive() {
		net = shared.RoundMoney(p.Amount)
	}
	if r.NetAmount != nil {
		net = r.NetAmount.Add(net)
	}
	r.NetAmount = &net

	r.PaymentMethod = p.Method
	if p.BankAccountID != nil {
		r.BankAccountID = p.BankAccountID
	}
	r.PaidBy = p.PaidBy
	if p.BatchID != nil {
		r.SettlementBatchID = p.BatchID
	}
}
