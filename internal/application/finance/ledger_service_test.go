package finance_test

import (
	"context"
	"sync"
	"testing"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_AppendTransaction(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, f.tenantID, appfinance.CreateAccountRequest{
		Name:           "Conta Movimento",
		Kind:           finance.AccountKindBank,
		OpeningBalance: testutil.Dec("1000"),
	})
	require.NoError(t, err)

	income, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      finance.TransactionTypeIncome,
		Amount:    testutil.Dec("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), income.Sequence)
	assertMoney(t, "1200", income.BalanceAfter)
	assert.Equal(t, string(finance.ReferenceManual), income.ReferenceType)

	expense, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      finance.TransactionTypeExpense,
		Amount:    testutil.Dec("50.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), expense.Sequence)
	assertMoney(t, "1149.75", expense.BalanceAfter)
	assertMoney(t, "1149.75", testutil.StoredBalance(t, f.db, account.ID))

	got, err := svc.GetAccount(ctx, f.tenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.LastSequence)
	assert.Equal(t, int64(2), got.CheckpointSequence)
	assert.Equal(t, []string{finance.EventTypeTransactionAppended, finance.EventTypeTransactionAppended}, f.outbox.Types())
}

func TestLedgerService_AppendTransaction_Validation(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
			AccountID: account.ID,
			Type:      finance.TransactionTypeIncome,
			Amount:    testutil.Dec("0"),
		})
		assert.ErrorIs(t, err, finance.ErrInvalidAmount)
	})

	t.Run("reference without id", func(t *testing.T) {
		_, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
			AccountID:     account.ID,
			Type:          finance.TransactionTypeIncome,
			Amount:        testutil.Dec("10"),
			ReferenceType: finance.ReferenceReceivable,
		})
		require.Error(t, err)
	})

	assertMoney(t, "0", testutil.StoredBalance(t, f.db, account.ID))
}

func TestLedgerService_RecomputeBalances_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "1000")

	var ids []string
	for _, amount := range []string{"200", "300", "50"} {
		tx, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
			AccountID: account.ID,
			Type:      finance.TransactionTypeIncome,
			Amount:    testutil.Dec(amount),
		})
		require.NoError(t, err)
		ids = append(ids, tx.ID.String())
	}

	require.NoError(t, f.db.Model(&models.TransactionModel{}).
		Where("id = ?", ids[1]).
		Update("balance_after", testutil.Dec("9999")).Error)

	result, err := svc.RecomputeBalances(ctx, f.tenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Replayed)
	assert.Equal(t, 1, result.Corrections)
	assert.False(t, result.BalanceCorrected)
	assertMoney(t, "1000", result.OpeningBalance)
	assertMoney(t, "1550", result.Balance)
	assert.True(t, f.hasEvent(finance.EventTypeBalanceDriftCorrected))

	var repaired models.TransactionModel
	require.NoError(t, f.db.Where("id = ?", ids[1]).First(&repaired).Error)
	assertMoney(t, "1500", repaired.BalanceAfter)

	again, err := svc.RecomputeBalances(ctx, f.tenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Corrections)
}

func TestLedgerService_RecomputeAll(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	testutil.SeedAccount(t, f.db, f.tenantID, "10")
	testutil.SeedAccount(t, f.db, f.tenantID, "20")

	results, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 0, r.Corrections)
	}
}

func TestLedgerService_ReverseTransaction(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "500")

	first, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      finance.TransactionTypeIncome,
		Amount:    testutil.Dec("200"),
	})
	require.NoError(t, err)
	_, err = svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      finance.TransactionTypeExpense,
		Amount:    testutil.Dec("100"),
	})
	require.NoError(t, err)

	result, err := svc.ReverseTransaction(ctx, f.tenantID, first.ID)
	require.NoError(t, err)
	assertMoney(t, "-200", result.Delta)
	assertMoney(t, "400", result.Balance)
	assertMoney(t, "400", testutil.StoredBalance(t, f.db, account.ID))
	assert.True(t, f.hasEvent(finance.EventTypeTransactionReversed))

	txns, total, err := svc.ListTransactions(ctx, f.tenantID, account.ID, appfinance.TransactionListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assertMoney(t, "400", txns[0].BalanceAfter)
}

func TestLedgerService_ReverseTransaction_SettledReceivable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	receivable := testutil.SeedReceivable(t, f.db, f.tenantID, customer.ID, "250", f.due(5), finance.Standalone())

	settled, err := f.settlement(appfinance.SettlementServiceConfig{}).SettleSingle(ctx, f.tenantID, appfinance.SettleSingleRequest{
		ReceivableID:  receivable.ID,
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)

	_, err = f.ledger().ReverseTransaction(ctx, f.tenantID, settled.Transaction.ID)
	assert.ErrorIs(t, err, finance.ErrReversalForbidden)
	assertMoney(t, "250", testutil.StoredBalance(t, f.db, account.ID))
}

func TestLedgerService_ReverseTransaction_SettledBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	receivable := testutil.SeedReceivable(t, f.db, f.tenantID, customer.ID, "250", f.due(5), finance.Standalone())

	batch, err := f.settlement(appfinance.SettlementServiceConfig{}).SettleBatch(ctx, f.tenantID, appfinance.SettleBatchRequest{
		ReceivableIDs: []uuid.UUID{receivable.ID},
		BankAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, batch.Transaction)

	settled, err := f.receivables().Get(ctx, f.tenantID, receivable.ID)
	require.NoError(t, err)
	require.NotNil(t, settled.SettlementBatchID)
	assert.Equal(t, batch.BatchID, *settled.SettlementBatchID)

	_, err = f.ledger().ReverseTransaction(ctx, f.tenantID, batch.Transaction.ID)
	assert.ErrorIs(t, err, finance.ErrReversalForbidden)
	assertMoney(t, "250", testutil.StoredBalance(t, f.db, account.ID))

	stillPaid, err := f.receivables().Get(ctx, f.tenantID, receivable.ID)
	require.NoError(t, err)
	assert.Equal(t, string(finance.ReceivableStatusPaid), stillPaid.Status)
}

func TestLedgerService_ReverseTransaction_PaidBoleto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "0")
	customer := testutil.SeedCustomer(t, f.db, f.tenantID, "1000")
	boletos := f.boletos(nil, nil)

	boleto, err := boletos.Create(ctx, f.tenantID, appfinance.CreateBoletoRequest{
		CustomerID: customer.ID,
		Amount:     testutil.Dec("180"),
		DueDate:    f.due(5),
	})
	require.NoError(t, err)
	paid, err := boletos.MarkPaid(ctx, f.tenantID, boleto.ID, appfinance.MarkBoletoPaidRequest{BankAccountID: &account.ID})
	require.NoError(t, err)
	require.NotNil(t, paid.Transaction)
	assert.Equal(t, string(finance.ReferenceBoleto), paid.Transaction.ReferenceType)

	_, err = f.ledger().ReverseTransaction(ctx, f.tenantID, paid.Transaction.ID)
	assert.ErrorIs(t, err, finance.ErrReversalForbidden)
	assertMoney(t, "180", testutil.StoredBalance(t, f.db, account.ID))
	assertMoney(t, "1000", testutil.AvailableCredit(t, f.db, customer.ID))
}

// Appends and reversals keep every snapshot consistent, so a full replay
// afterwards has nothing to repair.
func TestLedgerService_AppendAndReverseThenRecompute(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "100.10")

	steps := []struct {
		txType finance.TransactionType
		amount string
	}{
		{finance.TransactionTypeIncome, "0.10"},
		{finance.TransactionTypeIncome, "0.20"},
		{finance.TransactionTypeExpense, "33.33"},
		{finance.TransactionTypeAdjustment, "12.07"},
		{finance.TransactionTypeExpense, "0.01"},
		{finance.TransactionTypeIncome, "250.99"},
	}
	var ids []uuid.UUID
	for _, step := range steps {
		tx, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
			AccountID: account.ID,
			Type:      step.txType,
			Amount:    testutil.Dec(step.amount),
		})
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	for _, i := range []int{2, 0, 4} {
		_, err := svc.ReverseTransaction(ctx, f.tenantID, ids[i])
		require.NoError(t, err)
	}
	_, err := svc.AppendTransaction(ctx, f.tenantID, appfinance.AppendTransactionRequest{
		AccountID: account.ID,
		Type:      finance.TransactionTypeExpense,
		Amount:    testutil.Dec("45.45"),
	})
	require.NoError(t, err)

	// 100.10 + 0.20 + 12.07 + 250.99 - 45.45
	result, err := svc.RecomputeBalances(ctx, f.tenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Replayed)
	assert.Equal(t, 0, result.Corrections)
	assert.False(t, result.BalanceCorrected)
	assertMoney(t, "317.91", result.Balance)
	assertMoney(t, "317.91", testutil.StoredBalance(t, f.db, account.ID))
	assert.False(t, f.hasEvent(finance.EventTypeBalanceDriftCorrected))
}

func TestLedgerService_DecrementAtomically_Concurrent(t *testing.T) {
	f := newFixture(t)
	svc := f.ledger()
	ctx := context.Background()
	account := testutil.SeedAccount(t, f.db, f.tenantID, "100")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DecrementAtomically(ctx, f.tenantID, account.ID, testutil.Dec("50"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assertMoney(t, "0", testutil.StoredBalance(t, f.db, account.ID))

	got, err := svc.IncrementAtomically(ctx, f.tenantID, account.ID, testutil.Dec("12.5"))
	require.NoError(t, err)
	assertMoney(t, "12.5", got.Balance)

	_, err = svc.DecrementAtomically(ctx, f.tenantID, account.ID, testutil.Dec("-1"))
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)
}
