package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BoletoStatus represents the lifecycle state of a boleto
type BoletoStatus string

const (
	BoletoStatusPending   BoletoStatus = "PENDING"
	BoletoStatusOverdue   BoletoStatus = "OVERDUE"
	BoletoStatusPaid      BoletoStatus = "PAID"
	BoletoStatusCancelled BoletoStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s BoletoStatus) IsValid() bool {
	switch s {
	case BoletoStatusPending, BoletoStatusOverdue, BoletoStatusPaid, BoletoStatusCancelled:
		return true
	}
	return false
}

// IsOpen returns true while the boleto can still be paid
func (s BoletoStatus) IsOpen() bool {
	return s == BoletoStatusPending || s == BoletoStatusOverdue
}

// OpenBoletoStatuses lists the statuses that consume credit
func OpenBoletoStatuses() []BoletoStatus {
	return []BoletoStatus{BoletoStatusPending, BoletoStatusOverdue}
}

// Late payment charges applied to overdue boletos
var (
	BoletoFineRate          = decimal.RequireFromString("0.02")
	BoletoDailyInterestRate = decimal.RequireFromString("0.001")
)

// Boleto is a bank payment instrument issued against an order
type Boleto struct {
	shared.TenantAggregateRoot
	CustomerID uuid.UUID
	OrderID    *uuid.UUID
	Amount     decimal.Decimal
	DueDate    time.Time
	Status     BoletoStatus
	ExternalID *string
	Barcode    string
	QRCode     string
	PaidAt     *time.Time
	NetAmount  *decimal.Decimal
}

// NewBoleto creates a PENDING boleto
func NewBoleto(tenantID, customerID uuid.UUID, orderID *uuid.UUID, amount decimal.Decimal, dueDate time.Time) (*Boleto, error) {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer is required")
	}
	b := &Boleto{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		OrderID:             orderID,
		Amount:              amount,
		DueDate:             dueDate.UTC(),
		Status:              BoletoStatusPending,
	}
	b.AddDomainEvent(NewBoletoIssuedEvent(b))
	return b, nil
}

// AttachCharge stores the provider identifiers once the charge is registered
func (b *Boleto) AttachCharge(externalID, barcode, qrCode string) {
	if externalID != "" {
		b.ExternalID = &externalID
	}
	b.Barcode = barcode
	b.QRCode = qrCode
	b.Touch()
}

// MarkPaid settles the boleto
func (b *Boleto) MarkPaid(paidAt time.Time, netAmount decimal.Decimal) error {
	switch b.Status {
	case BoletoStatusPaid:
		return ErrAlreadyPaid
	case BoletoStatusCancelled:
		return shared.NewDomainError("INVALID_TRANSITION", "Cancelled boleto cannot be paid")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	paidAt = paidAt.UTC()
	b.PaidAt = &paidAt
	net := shared.RoundMoney(netAmount)
	if !net.IsPositive() {
		net = b.Amount
	}
	b.NetAmount = &net
	b.Status = BoletoStatusPaid
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBoletoPaidEvent(b))
	return nil
}

// MarkOverdue moves a PENDING boleto to OVERDUE. It returns false when
// nothing changed.
func (b *Boleto) MarkOverdue() bool {
	if b.Status != BoletoStatusPending {
		return false
	}
	b.Status = BoletoStatusOverdue
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBoletoOverdueEvent(b))
	return true
}

// Cancel voids an unpaid boleto
func (b *Boleto) Cancel() error {
	switch b.Status {
	case BoletoStatusPaid:
		return shared.NewDomainError("INVALID_TRANSITION", "Paid boleto cannot be cancelled")
	case BoletoStatusCancelled:
		return shared.NewDomainError("INVALID_TRANSITION", "Boleto is already cancelled")
	}
	b.Status = BoletoStatusCancelled
	b.Touch()
	b.IncrementVersion()
	b.AddDomainEvent(NewBoletoCancelledEvent(b))
	return nil
}

// Penalty is the late payment charge for a boleto on a given day
type Penalty struct {
	DaysOverdue int
	Fine        decimal.Decimal
	Interest    decimal.Decimal
}

// Total returns fine plus interest
func (p Penalty) Total() decimal.Decimal {
	return shared.RoundMoney(p.Fine.Add(p.Interest))
}

// CalculatePenalty computes the fine and daily interest owed when the boleto
// is paid on asOf. Days are counted in local calendar days after the due date.
// Paid and cancelled boletos carry no penalty.
func CalculatePenalty(b *Boleto, asOf time.Time) Penalty {
	if b == nil || b.Status == BoletoStatusPaid || b.Status == BoletoStatusCancelled {
		return Penalty{Fine: decimal.Zero, Interest: decimal.Zero}
	}
	days := shared.LocalDaysBetween(b.DueDate, asOf)
	if days <= 0 {
		return Penalty{Fine: decimal.Zero, Interest: decimal.Zero}
	}
	fine := shared.RoundMoney(b.Amount.Mul(BoletoFineRate))
	interest := shared.RoundMoney(b.Amount.Mul(BoletoDailyInterestRate).Mul(decimal.NewFromInt(int64(days))))
	return Penalty{DaysOverdue: days, Fine: fine, Interest: interest}
}
