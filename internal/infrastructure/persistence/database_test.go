package persistence

import (
	"testing"

	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_Stats(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	db := &Database{DB: mockDB.DB}

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	db := &Database{DB: testutil.NewMockDB(t).DB}
	require.NoError(t, db.Ping())
}

func TestDatabase_Close(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	mockDB.Mock.ExpectClose()

	db := &Database{DB: mockDB.DB}
	require.NoError(t, db.Close())
	mockDB.ExpectationsWereMet(t)
}

func TestAutoMigrate_CreatesLedgerTables(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{
		"accounts", "transactions", "customers", "orders", "receivables", "boletos",
		"expenses", "commissions", "commission_closures", "processed_notifications", "outbox_events",
	} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.TransactionModel{}, "idx_transaction_account_seq"))
	assert.True(t, db.Migrator().HasIndex(&models.CommissionClosureModel{}, "idx_closure_seller_month"))
}
