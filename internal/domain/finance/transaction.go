package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry
type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "INCOME"
	TransactionTypeExpense    TransactionType = "EXPENSE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// IsValid checks if the type is known
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeAdjustment:
		return true
	}
	return false
}

// Signed applies the entry direction to a positive magnitude.
// INCOME and ADJUSTMENT add, EXPENSE subtracts.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionTypeExpense {
		return amount.Neg()
	}
	return amount
}

// ReferenceType names the kind of record a transaction was posted for
type ReferenceType string

const (
	ReferenceManual            ReferenceType = "MANUAL"
	ReferenceReceivable        ReferenceType = "RECEIVABLE"
	ReferenceOrder             ReferenceType = "ORDER"
	ReferenceBoleto            ReferenceType = "BOLETO"
	ReferenceBatchSettlement   ReferenceType = "BATCH_SETTLEMENT"
	ReferenceExpense           ReferenceType = "EXPENSE"
	ReferenceCommissionClosure ReferenceType = "COMMISSION_CLOSURE"
)

// Reference points at the record a transaction settles
type Reference struct {
	Type ReferenceType
	ID   *uuid.UUID
}

// ManualReference is used for adjustments typed in by an operator
func ManualReference() Reference {
	return Reference{Type: ReferenceManual}
}

// NewReference builds a reference to a persisted record
func NewReference(refType ReferenceType, id uuid.UUID) Reference {
	return Reference{Type: refType, ID: &id}
}

// GuardsSettledRecord reports whether reversing this entry requires the
// referenced record to be unsettled first. A batch reference guards every
// receivable the batch settled.
func (r Reference) GuardsSettledRecord() bool {
	if r.ID == nil {
		return false
	}
	switch r.Type {
	case ReferenceReceivable, ReferenceOrder, ReferenceBoleto, ReferenceBatchSettlement:
		return true
	}
	return false
}

// Transaction is one entry of an account's append-only ledger.
// Sequence is the insertion-order key, Date only the display date.
type Transaction struct {
	shared.BaseEntity
	TenantID     uuid.UUID
	AccountID    uuid.UUID
	Sequence     int64
	Type         TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reference    Reference
	Description  string
	Date         time.Time
	StatementRef *string
}

// NewTransaction validates and creates an unsequenced ledger entry
func NewTransaction(
	tenantID, accountID uuid.UUID,
	txType TransactionType,
	amount decimal.Decimal,
	date time.Time,
	ref Reference,
	description string,
) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_INPUT", "Unknown transaction type %q", txType)
	}
	amount = shared.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if accountID == uuid.Nil {
		return nil, ErrMissingBankAccount
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	if ref.Type == "" {
		ref = ManualReference()
	}
	return &Transaction{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		AccountID:   accountID,
		Type:        txType,
		Amount:      amount,
		Reference:   ref,
		Description: description,
		Date:        date.UTC(),
	}, nil
}

// SignedAmount returns the effect of this entry on the balance
func (t *Transaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}

// ReversalDelta returns the balance change that undoes this entry
func (t *Transaction) ReversalDelta() decimal.Decimal {
	return t.SignedAmount().Neg()
}

// IsReconciled reports whether a bank statement line was matched to this entry
func (t *Transaction) IsReconciled() bool {
	return t.StatementRef != nil && *t.StatementRef != ""
}
