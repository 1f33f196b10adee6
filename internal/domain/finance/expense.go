package finance

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseStatus represents the payment state of an expense
type ExpenseStatus string

const (
	ExpenseStatusPending ExpenseStatus = "PENDING"
	ExpenseStatusPaid    ExpenseStatus = "PAID"
)

// Expense is a bill the tenant owes
type Expense struct {
	shared.TenantAggregateRoot
	Description   string
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        ExpenseStatus
	AccountID     *uuid.UUID
	PaidAt        *time.Time
	TransactionID *uuid.UUID
}

// NewExpense creates a PENDING expense
func NewExpense(tenantID uuid.UUID, description string, amount decimal.Decimal, dueDate time.Time) (*Expense, error) {
	if strings.TrimSpace(description) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Expense description cannot be empty")
	}
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Expense{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Description:         strings.TrimSpace(description),
		Amount:              amount,
		DueDate:             dueDate.UTC(),
		Status:              ExpenseStatusPending,
	}, nil
}

// MarkPaid records the account and ledger entry that paid the expense
func (e *Expense) MarkPaid(accountID, transactionID uuid.UUID, paidAt time.Time) error {
	if e.Status == ExpenseStatusPaid {
		return ErrAlreadyPaid
	}
	at := paidAt.UTC()
	e.AccountID = &accountID
	e.TransactionID = &transactionID
	e.PaidAt = &at
	e.Status = ExpenseStatusPaid
	e.Touch()
	e.IncrementVersion()
	return nil
}
