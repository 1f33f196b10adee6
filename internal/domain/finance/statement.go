package finance

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StatementMatchWindowDays is how many local days a statement line may sit
// away from the ledger entry it matches.
const StatementMatchWindowDays = 2

// StatementLine is one record of an imported bank statement
type StatementLine struct {
	ExternalID string
	Amount     decimal.Decimal
	Date       time.Time
	Type       TransactionType
}

// StatementMatch pairs a statement line with the ledger entry it confirms
type StatementMatch struct {
	Line        StatementLine
	Transaction *Transaction
}

// StatementMatchResult is the outcome of matching a statement against a ledger
type StatementMatchResult struct {
	Matched             []StatementMatch
	UnmatchedLines      []StatementLine
	UnmatchedLedgerTxns []*Transaction
}

// lineDirection maps a statement line to the ledger direction it confirms.
// Adjustments credit the account like income does.
func lineDirection(t TransactionType) TransactionType {
	if t == TransactionTypeExpense {
		return TransactionTypeExpense
	}
	return TransactionTypeIncome
}

func matches(line StatementLine, tx *Transaction) bool {
	if lineDirection(line.Type) != lineDirection(tx.Type) {
		return false
	}
	if !shared.RoundMoney(line.Amount.Abs()).Equal(shared.RoundMoney(tx.Amount)) {
		return false
	}
	days := shared.LocalDaysBetween(tx.Date, line.Date)
	if days < 0 {
		days = -days
	}
	return days <= StatementMatchWindowDays
}

// MatchStatement greedily pairs each line with the closest-dated unmatched
// ledger entry of the same amount and direction. Entries already carrying a
// statement reference are never matched again.
func MatchStatement(lines []StatementLine, txns []*Transaction) StatementMatchResult {
	used := make(map[int]bool, len(txns))
	var result StatementMatchResult
	for _, line := range lines {
		best := -1
		bestDistance := time.Duration(0)
		for i, tx := range txns {
			if used[i] || tx.IsReconciled() || !matches(line, tx) {
				continue
			}
			distance := line.Date.Sub(tx.Date)
			if distance < 0 {
				distance = -distance
			}
			if best == -1 || distance < bestDistance {
				best = i
				bestDistance = distance
			}
		}
		if best == -1 {
			result.UnmatchedLines = append(result.UnmatchedLines, line)
			continue
		}
		used[best] = true
		result.Matched = append(result.Matched, StatementMatch{Line: line, Transaction: txns[best]})
	}
	for i, tx := range txns {
		if !used[i] && !tx.IsReconciled() {
			result.UnmatchedLedgerTxns = append(result.UnmatchedLedgerTxns, tx)
		}
	}
	return result
}
