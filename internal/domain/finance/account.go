package finance

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes bank accounts from cash boxes
type AccountKind string

const (
	AccountKindBank AccountKind = "BANK"
	AccountKindCash AccountKind = "CASH"
)

// IsValid checks if the kind is known
func (k AccountKind) IsValid() bool {
	return k == AccountKindBank || k == AccountKindCash
}

// Account is a bank or cash account whose balance is carried by an
// append-only transaction log.
//
// Balance always equals the implicit opening balance plus the signed sum of
// the account's transactions in sequence order. The checkpoint marks the last
// sequence whose balanceAfter is known to be correct, bounding replays.
type Account struct {
	shared.TenantAggregateRoot
	Name               string
	Kind               AccountKind
	Balance            decimal.Decimal
	IsActive           bool
	LastSequence       int64
	CheckpointSequence int64
	CheckpointBalance  decimal.Decimal
}

// NewAccount creates an active account with an opening balance
func NewAccount(tenantID uuid.UUID, name string, kind AccountKind, openingBalance decimal.Decimal) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Account name cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_INPUT", "Unknown account kind %q", kind)
	}
	opening := shared.RoundMoney(openingBalance)
	return &Account{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Kind:                kind,
		Balance:             opening,
		IsActive:            true,
		CheckpointBalance:   opening,
	}, nil
}

// EnsureActive rejects postings to a deactivated account
func (a *Account) EnsureActive() error {
	if !a.IsActive {
		return ErrAccountInactive
	}
	return nil
}

// HasCheckpoint reports whether a bounded replay can start from the checkpoint.
// Sequence 0 with the opening balance is a valid checkpoint for a fresh account.
func (a *Account) HasCheckpoint() bool {
	return a.CheckpointSequence >= 0 && a.CheckpointSequence <= a.LastSequence
}
