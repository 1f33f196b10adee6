package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_CommitAndRollback(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	outbox := &testutil.RecordingOutbox{}
	scope := NewGormTransactionScope(db, outbox)
	ctx := context.Background()
	account := testutil.SeedAccount(t, db, testutil.TestTenantID(), "100")

	err := scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		if err := repos.Accounts().IncrementBalance(ctx, account.TenantID, account.ID, testutil.Dec("25")); err != nil {
			return err
		}
		return repos.RecordEvents(ctx, testutil.NewTestEvent("Committed", account.TenantID))
	})
	require.NoError(t, err)
	assert.True(t, testutil.Dec("125").Equal(testutil.StoredBalance(t, db, account.ID)))
	assert.Equal(t, []string{"Committed"}, outbox.Types())

	boom := errors.New("boom")
	err = scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		if err := repos.Accounts().IncrementBalance(ctx, account.TenantID, account.ID, testutil.Dec("1000")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, testutil.Dec("125").Equal(testutil.StoredBalance(t, db, account.ID)))
}

func TestGormTransactionScope_NilOutboxDiscardsEvents(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	scope := NewGormTransactionScope(db, nil)

	err := scope.Execute(context.Background(), func(repos appfinance.TransactionalRepositories) error {
		return repos.RecordEvents(context.Background(), testutil.NewTestEvent("Dropped", testutil.TestTenantID()))
	})
	assert.NoError(t, err)
}

func TestGormNotificationRepository_ClaimOnce(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormNotificationRepository(db)
	ctx := context.Background()
	n := finance.PaymentNotification{TenantID: testutil.TestTenantID(), ExternalID: "pay_123", Status: finance.NotificationPaid}

	claimed, err := repo.Claim(ctx, finance.NewNotificationClaim(n, time.Now()))
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, finance.NewNotificationClaim(n, time.Now()))
	require.NoError(t, err)
	assert.False(t, claimed)

	exists, err := repo.Exists(ctx, n.TenantID, "pay_123")
	require.NoError(t, err)
	assert.True(t, exists)
}
