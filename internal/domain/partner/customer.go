package partner

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit errors
var (
	ErrInvalidCreditLimit = shared.NewDomainError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	ErrInvalidCreditDelta = shared.NewDomainError("INVALID_AMOUNT", "Credit adjustment must be positive")
)

// Customer is a buyer with a credit line.
// AvailableCredit stays within [0, CreditLimit] after every change.
type Customer struct {
	shared.TenantAggregateRoot
	Name            string
	CreditLimit     decimal.Decimal
	AvailableCredit decimal.Decimal
}

// NewCustomer creates a customer whose whole credit line is available
func NewCustomer(tenantID uuid.UUID, name string, creditLimit decimal.Decimal) (*Customer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Customer name cannot be empty")
	}
	limit := shared.RoundMoney(creditLimit)
	if limit.IsNegative() {
		return nil, ErrInvalidCreditLimit
	}
	return &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		CreditLimit:         limit,
		AvailableCredit:     limit,
	}, nil
}

// SetCreditLimit changes the ceiling and re-clamps what is available,
// keeping the consumed portion unchanged.
func (c *Customer) SetCreditLimit(limit decimal.Decimal) error {
	limit = shared.RoundMoney(limit)
	if limit.IsNegative() {
		return ErrInvalidCreditLimit
	}
	consumed := c.ConsumedCredit()
	c.CreditLimit = limit
	c.AvailableCredit = shared.ClampMoney(limit.Sub(consumed), decimal.Zero, limit)
	c.Touch()
	c.IncrementVersion()
	return nil
}

// ConsumedCredit returns the part of the line currently in use
func (c *Customer) ConsumedCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.AvailableCredit)
}

// Consume reserves credit for a new obligation, never going below zero
func (c *Customer) Consume(amount decimal.Decimal) error {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return ErrInvalidCreditDelta
	}
	c.AvailableCredit = shared.ClampMoney(c.AvailableCredit.Sub(amount), decimal.Zero, c.CreditLimit)
	c.Touch()
	return nil
}

// Restore releases credit of a settled or cancelled obligation,
// never exceeding the limit
func (c *Customer) Restore(amount decimal.Decimal) error {
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return ErrInvalidCreditDelta
	}
	c.AvailableCredit = shared.ClampMoney(c.AvailableCredit.Add(amount), decimal.Zero, c.CreditLimit)
	c.Touch()
	return nil
}

// Recalculate sets available credit from the consumed total
func (c *Customer) Recalculate(consumed decimal.Decimal) {
	c.AvailableCredit = shared.ClampMoney(c.CreditLimit.Sub(consumed), decimal.Zero, c.CreditLimit)
	c.Touch()
}
