package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreditExposure_AvailableCredit(t *testing.T) {
	tests := []struct {
		name     string
		exposure CreditExposure
		limit    string
		want     string
	}{
		{
			name:     "receivable plus boleto",
			exposure: CreditExposure{ReceivableTotal: dec("300"), BoletoTotal: dec("200"), UninvoicedOrderTotal: decimal.Zero},
			limit:    "1000",
			want:     "500",
		},
		{
			name:     "all three sources",
			exposure: CreditExposure{ReceivableTotal: dec("100"), BoletoTotal: dec("50.50"), UninvoicedOrderTotal: dec("49.50")},
			limit:    "1000",
			want:     "800",
		},
		{
			name:     "exposure above limit clamps at zero",
			exposure: CreditExposure{ReceivableTotal: dec("1500"), BoletoTotal: decimal.Zero, UninvoicedOrderTotal: decimal.Zero},
			limit:    "1000",
			want:     "0",
		},
		{
			name:     "nothing owed",
			exposure: CreditExposure{ReceivableTotal: decimal.Zero, BoletoTotal: decimal.Zero, UninvoicedOrderTotal: decimal.Zero},
			limit:    "1000",
			want:     "1000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.exposure.AvailableCredit(dec(tt.limit))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestMatchStatement(t *testing.T) {
	base := time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)
	mk := func(txType TransactionType, amount string, at time.Time) *Transaction {
		tx, _ := NewTransaction(uuid.New(), uuid.New(), txType, dec(amount), at, ManualReference(), "")
		return tx
	}
	income := mk(TransactionTypeIncome, "100.00", base)
	nextDay := mk(TransactionTypeIncome, "100.00", base.Add(24*time.Hour))
	expense := mk(TransactionTypeExpense, "40.00", base)
	reconciled := mk(TransactionTypeIncome, "75.00", base)
	ref := "already"
	reconciled.StatementRef = &ref

	lines := []StatementLine{
		{ExternalID: "L1", Amount: dec("100.00"), Date: base.Add(24 * time.Hour), Type: TransactionTypeIncome},
		{ExternalID: "L2", Amount: dec("40.00"), Date: base.Add(3 * 24 * time.Hour), Type: TransactionTypeExpense},
		{ExternalID: "L3", Amount: dec("75.00"), Date: base, Type: TransactionTypeIncome},
		{ExternalID: "L4", Amount: dec("100.00"), Date: base.Add(-2 * 24 * time.Hour), Type: TransactionTypeIncome},
	}

	result := MatchStatement(lines, []*Transaction{income, nextDay, expense, reconciled})

	assert.Len(t, result.Matched, 2)
	assert.Equal(t, "L1", result.Matched[0].Line.ExternalID)
	assert.Same(t, nextDay, result.Matched[0].Transaction, "closest date wins")
	assert.Equal(t, "L4", result.Matched[1].Line.ExternalID)
	assert.Same(t, income, result.Matched[1].Transaction)

	var unmatched []string
	for _, l := range result.UnmatchedLines {
		unmatched = append(unmatched, l.ExternalID)
	}
	assert.Equal(t, []string{"L2", "L3"}, unmatched)
	assert.Equal(t, []*Transaction{expense}, result.UnmatchedLedgerTxns)
}
