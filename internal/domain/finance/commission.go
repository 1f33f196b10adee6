package finance

import (
	"regexp"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionStatus represents the payout state of a commission
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "PENDING"
	CommissionStatusPaid    CommissionStatus = "PAID"
)

// Commission is a seller's cut of a sale
type Commission struct {
	shared.BaseEntity
	TenantID  uuid.UUID
	SellerID  uuid.UUID
	OrderID   *uuid.UUID
	Amount    decimal.Decimal
	Status    CommissionStatus
	ClosureID *uuid.UUID
}

// NewCommission creates a PENDING, unlinked commission
func NewCommission(tenantID, sellerID uuid.UUID, orderID *uuid.UUID, amount decimal.Decimal, earnedAt time.Time) (*Commission, error) {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	c := &Commission{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		SellerID:   sellerID,
		OrderID:    orderID,
		Amount:     amount,
		Status:     CommissionStatusPending,
	}
	if !earnedAt.IsZero() {
		c.CreatedAt = earnedAt.UTC()
	}
	return c, nil
}

// IsLinked reports whether a closure already covers this commission
func (c *Commission) IsLinked() bool {
	return c.ClosureID != nil
}

// ClosureStatus represents the state of a commission closure
type ClosureStatus string

const (
	ClosureStatusPending   ClosureStatus = "PENDING"
	ClosureStatusPaid      ClosureStatus = "PAID"
	ClosureStatusCancelled ClosureStatus = "CANCELLED"
)

var referenceMonthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidateReferenceMonth checks the YYYY-MM format
func ValidateReferenceMonth(month string) error {
	if !referenceMonthPattern.MatchString(month) {
		return shared.NewDomainErrorf("INVALID_INPUT", "Reference month %q must be formatted as YYYY-MM", month)
	}
	return nil
}

// CommissionClosure groups a seller's commissions for one reference month
type CommissionClosure struct {
	shared.TenantAggregateRoot
	SellerID        uuid.UUID
	ReferenceMonth  string
	TotalAmount     decimal.Decimal
	CommissionCount int
	Status          ClosureStatus
	PaidAt          *time.Time
	TransactionID   *uuid.UUID
}

// NewCommissionClosure totals the given unlinked commissions into a PENDING closure
func NewCommissionClosure(tenantID, sellerID uuid.UUID, referenceMonth string, commissions []*Commission) (*CommissionClosure, error) {
	if err := ValidateReferenceMonth(referenceMonth); err != nil {
		return nil, err
	}
	if len(commissions) == 0 {
		return nil, ErrNoCommissionsInPeriod
	}
	total := decimal.Zero
	for _, c := range commissions {
		if c.SellerID != sellerID {
			return nil, shared.NewDomainError("INVALID_INPUT", "Commission belongs to another seller")
		}
		if c.IsLinked() {
			return nil, shared.NewDomainError("INVALID_STATE", "Commission is already linked to a closure")
		}
		total = total.Add(c.Amount)
	}
	closure := &CommissionClosure{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SellerID:            sellerID,
		ReferenceMonth:      referenceMonth,
		TotalAmount:         shared.RoundMoney(total),
		CommissionCount:     len(commissions),
		Status:              ClosureStatusPending,
	}
	closure.AddDomainEvent(NewClosureCreatedEvent(closure))
	return closure, nil
}

// Pay settles a PENDING closure. transactionID is the ledger entry that paid
// it, nil when the payout happened outside the tracked accounts.
func (c *CommissionClosure) Pay(transactionID *uuid.UUID, paidAt time.Time) error {
	switch c.Status {
	case ClosureStatusPaid:
		return ErrAlreadyPaid
	case ClosureStatusCancelled:
		return shared.NewDomainError("INVALID_TRANSITION", "Cancelled closure cannot be paid")
	}
	at := paidAt.UTC()
	c.PaidAt = &at
	c.TransactionID = transactionID
	c.Status = ClosureStatusPaid
	c.Touch()
	c.IncrementVersion()
	c.AddDomainEvent(NewClosurePaidEvent(c))
	return nil
}

// Cancel voids a PENDING closure so its commissions can be closed again
func (c *CommissionClosure) Cancel() error {
	if c.Status != ClosureStatusPending {
		return shared.NewDomainErrorf("INVALID_TRANSITION", "Closure in status %s cannot be cancelled", c.Status)
	}
	c.Status = ClosureStatusCancelled
	c.Touch()
	c.IncrementVersion()
	c.AddDomainEvent(NewClosureCancelledEvent(c))
	return nil
}
