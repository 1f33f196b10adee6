package finance

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository persists accounts. Balance changes go through the atomic
// methods only; Save never touches balance or sequence columns of an existing row.
type AccountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)

	// FindByIDForUpdate loads the account holding its row lock until the
	// enclosing transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)

	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Account, int64, error)

	// FindAllIDs lists every account id across tenants, for repair jobs
	FindAllIDs(ctx context.Context) ([]AccountKey, error)

	Create(ctx context.Context, account *Account) error
	Save(ctx context.Context, account *Account) error

	// IncrementBalance applies balance = balance + delta in the database
	IncrementBalance(ctx context.Context, tenantID, id uuid.UUID, delta decimal.Decimal) error

	// DecrementBalance applies balance = balance - amount in the database
	DecrementBalance(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error

	// RecordAppend atomically adds delta and advances last_sequence
	RecordAppend(ctx context.Context, tenantID, id uuid.UUID, delta decimal.Decimal, sequence int64) error

	SaveCheckpoint(ctx context.Context, tenantID, id uuid.UUID, sequence int64, balance decimal.Decimal) error

	// CorrectBalance overwrites the stored balance. Callers hold the row lock.
	CorrectBalance(ctx context.Context, tenantID, id uuid.UUID, balance decimal.Decimal) error
}

// AccountKey identifies an account across tenants
type AccountKey struct {
	TenantID  uuid.UUID
	AccountID uuid.UUID
}

// TransactionFilter narrows ledger listings
type TransactionFilter struct {
	shared.Filter
	From *time.Time
	To   *time.Time
	Type *TransactionType
}

// TransactionRepository persists ledger entries
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// FindByAccount lists entries newest sequence first
	FindByAccount(ctx context.Context, tenantID, accountID uuid.UUID, filter TransactionFilter) ([]*Transaction, int64, error)

	// FindAfterSequence returns entries with sequence > after in ascending order
	FindAfterSequence(ctx context.Context, tenantID, accountID uuid.UUID, after int64) ([]*Transaction, error)

	// FindByDateRange returns entries whose display date falls in [from, to)
	FindByDateRange(ctx context.Context, tenantID, accountID uuid.UUID, from, to time.Time) ([]*Transaction, error)

	UpdateBalanceAfter(ctx context.Context, id uuid.UUID, balanceAfter decimal.Decimal) error
	SetStatementRef(ctx context.Context, tenantID, id uuid.UUID, ref string) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ReceivableFilter narrows receivable listings
type ReceivableFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Statuses   []ReceivableStatus
	DueBefore  *time.Time

	SettlementBatchID *uuid.UUID
}

// ReceivableRepository persists receivables
type ReceivableRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Receivable, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Receivable, error)

	// FindByIDsForUpdate locks every listed receivable that exists, ordered by id
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Receivable, error)

	FindByExternalIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*Receivable, error)

	// FindShadowForUpdate locks the receivable backed by the given boleto
	FindShadowForUpdate(ctx context.Context, tenantID, boletoID uuid.UUID) (*Receivable, error)

	FindAll(ctx context.Context, tenantID uuid.UUID, filter ReceivableFilter) ([]*Receivable, int64, error)
	FindOutstandingByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]*Receivable, error)
	Create(ctx context.Context, r *Receivable) error
	Save(ctx context.Context, r *Receivable) error

	// MarkOverdueBefore flips PENDING receivables due before cutoff to OVERDUE
	MarkOverdueBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BoletoFilter narrows boleto listings
type BoletoFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Statuses   []BoletoStatus
}

// BoletoRepository persists boletos
type BoletoRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Boleto, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Boleto, error)
	FindByExternalIDForUpdate(ctx context.Context, tenantID uuid.UUID, externalID string) (*Boleto, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter BoletoFilter) ([]*Boleto, int64, error)
	Create(ctx context.Context, b *Boleto) error
	Save(ctx context.Context, b *Boleto) error

	// FindPendingDueBeforeForUpdate locks the PENDING boletos of all tenants
	// due before cutoff
	FindPendingDueBeforeForUpdate(ctx context.Context, cutoff time.Time) ([]*Boleto, error)
}

// ExpenseRepository persists expenses
type ExpenseRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Expense, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Expense, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]*Expense, int64, error)
	Create(ctx context.Context, e *Expense) error
	Save(ctx context.Context, e *Expense) error
}

// CommissionRepository persists commissions
type CommissionRepository interface {
	Create(ctx context.Context, c *Commission) error

	// FindUnlinkedInWindow returns commissions created in [start, next) with no closure
	FindUnlinkedInWindow(ctx context.Context, tenantID uuid.UUID, sellerID *uuid.UUID, start, next time.Time) ([]*Commission, error)

	FindByClosure(ctx context.Context, tenantID, closureID uuid.UUID) ([]*Commission, error)

	// LinkToClosure sets closure_id on the listed commissions that are still
	// unlinked and returns how many were linked
	LinkToClosure(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, closureID uuid.UUID) (int64, error)

	MarkPaidByClosure(ctx context.Context, tenantID, closureID uuid.UUID) error
	UnlinkClosure(ctx context.Context, tenantID, closureID uuid.UUID) error
}

// ClosureFilter narrows closure listings
type ClosureFilter struct {
	shared.Filter
	SellerID       *uuid.UUID
	ReferenceMonth string
	Status         *ClosureStatus
}

// CommissionClosureRepository persists commission closures
type CommissionClosureRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CommissionClosure, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*CommissionClosure, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ClosureFilter) ([]*CommissionClosure, int64, error)

	// ExistsActive reports whether a non-cancelled closure covers seller and month
	ExistsActive(ctx context.Context, tenantID, sellerID uuid.UUID, referenceMonth string) (bool, error)

	// Create returns ErrClosureAlreadyExists on a unique violation
	Create(ctx context.Context, c *CommissionClosure) error
	Save(ctx context.Context, c *CommissionClosure) error
}

// NotificationRepository records processed webhook deliveries
type NotificationRepository interface {
	// Claim inserts the claim and returns false when the external id was
	// already claimed for the tenant
	Claim(ctx context.Context, claim *NotificationClaim) (bool, error)

	Exists(ctx context.Context, tenantID uuid.UUID, externalID string) (bool, error)
}

// CreditExposureReader aggregates what a customer owes across receivables,
// boletos and uninvoiced orders
type CreditExposureReader interface {
	ExposureFor(ctx context.Context, tenantID, customerID uuid.UUID) (CreditExposure, error)
}
