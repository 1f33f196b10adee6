package trade

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is how much of an order has been paid
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "UNPAID"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// OrderOrigin tells routine orders apart from ones synthesized by reconciliation
type OrderOrigin string

const (
	OrderOriginStandard OrderOrigin = "STANDARD"
	OrderOriginRecovery OrderOrigin = "RECOVERY"
)

// Order is a customer sale as seen by the settlement engine
type Order struct {
	shared.TenantAggregateRoot
	CustomerID        uuid.UUID
	Total             decimal.Decimal
	PaidAmount        decimal.Decimal
	PaymentStatus     PaymentStatus
	Origin            OrderOrigin
	ExternalPaymentID *string
}

// NewOrder creates an UNPAID standard order
func NewOrder(tenantID, customerID uuid.UUID, total decimal.Decimal) (*Order, error) {
	total = shared.RoundMoney(total)
	if !total.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Order total must be positive")
	}
	return &Order{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		Total:               total,
		PaidAmount:          decimal.Zero,
		PaymentStatus:       PaymentStatusUnpaid,
		Origin:              OrderOriginStandard,
	}, nil
}

// NewRecoveryOrder records a payment that arrived with no matching record.
// The order is born PAID so it never consumes credit.
func NewRecoveryOrder(tenantID, customerID uuid.UUID, amount decimal.Decimal, externalPaymentID string) (*Order, error) {
	o, err := NewOrder(tenantID, customerID, amount)
	if err != nil {
		return nil, err
	}
	o.Origin = OrderOriginRecovery
	o.PaidAmount = o.Total
	o.PaymentStatus = PaymentStatusPaid
	o.ExternalPaymentID = &externalPaymentID
	return o, nil
}

// IsFullyPaid reports whether cumulative payments reached the total
func (o *Order) IsFullyPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// ApplyPayment adds one payment increment. It returns true only for the
// increment that brings the paid amount to the total.
func (o *Order) ApplyPayment(amount decimal.Decimal) (bool, error) {
	if o.PaymentStatus == PaymentStatusCancelled {
		return false, shared.NewDomainError("INVALID_TRANSITION", "Cancelled order cannot receive payments")
	}
	if o.IsFullyPaid() {
		return false, nil
	}
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return false, shared.NewDomainError("INVALID_AMOUNT", "Payment must be positive")
	}
	o.PaidAmount = o.PaidAmount.Add(amount)
	o.Touch()
	o.IncrementVersion()
	if o.PaidAmount.GreaterThanOrEqual(o.Total) {
		o.PaymentStatus = PaymentStatusPaid
		return true, nil
	}
	o.PaymentStatus = PaymentStatusPartial
	return false, nil
}

// Cancel voids an order that has not received any payment
func (o *Order) Cancel() error {
	if o.PaymentStatus != PaymentStatusUnpaid {
		return shared.NewDomainErrorf("INVALID_TRANSITION", "Order in status %s cannot be cancelled", o.PaymentStatus)
	}
	o.PaymentStatus = PaymentStatusCancelled
	o.Touch()
	o.IncrementVersion()
	return nil
}
