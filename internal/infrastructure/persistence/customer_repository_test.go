package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormCustomerRepository_CreditClampInSQL(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, db, testutil.TestTenantID(), "1000")

	steps := []struct {
		name  string
		apply func() error
		want  string
	}{
		{"consume 300", func() error { return repo.ConsumeCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("300")) }, "700"},
		{"consume past zero", func() error { return repo.ConsumeCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("900")) }, "0"},
		{"restore 200", func() error { return repo.RestoreCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("200")) }, "200"},
		{"restore past limit", func() error { return repo.RestoreCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("5000")) }, "1000"},
		{"set below zero", func() error { return repo.SetAvailableCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("-5")) }, "0"},
		{"set above limit", func() error { return repo.SetAvailableCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("2000")) }, "1000"},
		{"set within range", func() error { return repo.SetAvailableCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("250.5")) }, "250.5"},
	}
	for _, step := range steps {
		require.NoError(t, step.apply(), step.name)
		got := testutil.AvailableCredit(t, db, customer.ID)
		assert.True(t, testutil.Dec(step.want).Equal(got), "%s: got %s", step.name, got)
	}
}

func TestGormCustomerRepository_SaveCreditLimit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCustomerRepository(db)
	ctx := context.Background()
	customer := testutil.SeedCustomer(t, db, testutil.TestTenantID(), "1000")
	require.NoError(t, repo.ConsumeCredit(ctx, customer.TenantID, customer.ID, testutil.Dec("400")))

	locked, err := repo.FindByIDForUpdate(ctx, customer.TenantID, customer.ID)
	require.NoError(t, err)
	require.NoError(t, locked.SetCreditLimit(testutil.Dec("1500")))
	require.NoError(t, repo.SaveCreditLimit(ctx, locked))

	got, err := repo.FindByID(ctx, customer.TenantID, customer.ID)
	require.NoError(t, err)
	assert.True(t, testutil.Dec("1500").Equal(got.CreditLimit))
	assert.True(t, testutil.Dec("1100").Equal(got.AvailableCredit))
}

func TestGormCustomerRepository_ConsumeCredit_SQL(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := NewGormCustomerRepository(mockDB.DB)
	tenantID, customerID := uuid.New(), uuid.New()
	amount := testutil.Dec("300")

	mockDB.Mock.ExpectExec(`UPDATE "customers" SET "available_credit"=CASE WHEN available_credit - \$1 < 0 THEN 0 ELSE available_credit - \$2 END,"updated_at"=\$3 WHERE tenant_id = \$4 AND id = \$5`).
		WithArgs(amount, amount, sqlmock.AnyArg(), tenantID, customerID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ConsumeCredit(context.Background(), tenantID, customerID, amount))
	mockDB.ExpectationsWereMet(t)
}

func TestGormCustomerRepository_UnknownCustomer(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCustomerRepository(db)
	err := repo.RestoreCredit(context.Background(), uuid.New(), uuid.New(), testutil.Dec("10"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
