package finance

import (
	"cmp"
	"slices"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceCorrection is a balanceAfter snapshot that disagreed with replay
type BalanceCorrection struct {
	TransactionID uuid.UUID
	Sequence      int64
	Stored        decimal.Decimal
	Expected      decimal.Decimal
}

// ReplayResult summarizes a walk over an account's transactions
type ReplayResult struct {
	Opening     decimal.Decimal
	Final       decimal.Decimal
	Replayed    int
	LastSeq     int64
	Corrections []BalanceCorrection
}

// HasDrift reports whether any snapshot needed correction
func (r ReplayResult) HasDrift() bool {
	return len(r.Corrections) > 0
}

// SortBySequence orders transactions by insertion
func SortBySequence(txns []*Transaction) {
	slices.SortFunc(txns, func(a, b *Transaction) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
}

// SignedTotal sums the balance effect of the given transactions
func SignedTotal(txns []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txns {
		total = total.Add(tx.SignedAmount())
	}
	return total
}

// ImplicitOpeningBalance derives the balance the account had before its
// first transaction from the stored balance.
func ImplicitOpeningBalance(stored decimal.Decimal, txns []*Transaction) decimal.Decimal {
	return shared.RoundMoney(stored.Sub(SignedTotal(txns)))
}

// Drifted compares two snapshots at cent precision
func Drifted(stored, expected decimal.Decimal) bool {
	return !shared.RoundMoney(stored).Equal(shared.RoundMoney(expected))
}

// Replay walks txns in sequence order starting at opening and reports every
// snapshot that disagrees with the running balance. When lastSeq is given the
// result carries it forward for empty replays.
//
// Replay expects txns sorted by Sequence and does not mutate them.
func Replay(opening decimal.Decimal, lastSeq int64, txns []*Transaction) ReplayResult {
	running := shared.RoundMoney(opening)
	result := ReplayResult{
		Opening: running,
		LastSeq: lastSeq,
	}
	for _, tx := range txns {
		running = shared.RoundMoney(running.Add(tx.SignedAmount()))
		if Drifted(tx.BalanceAfter, running) {
			result.Corrections = append(result.Corrections, BalanceCorrection{
				TransactionID: tx.ID,
				Sequence:      tx.Sequence,
				Stored:        tx.BalanceAfter,
				Expected:      running,
			})
		}
		result.Replayed++
		result.LastSeq = tx.Sequence
	}
	result.Final = running
	return result
}
