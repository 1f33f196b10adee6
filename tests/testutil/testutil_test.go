package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	mockDB.ExpectationsWereMet(t)
}

func TestNewSQLiteDB_IsolatedSchema(t *testing.T) {
	first := NewSQLiteDB(t)
	second := NewSQLiteDB(t)
	tenantID := TestTenantID()

	account := SeedAccount(t, first, tenantID, "150.00")

	var count int64
	require.NoError(t, first.Model(&models.AccountModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, second.Model(&models.AccountModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.True(t, Dec("150").Equal(StoredBalance(t, first, account.ID)))
}

func TestSeedCustomer_FullCreditAvailable(t *testing.T) {
	db := NewSQLiteDB(t)
	customer := SeedCustomer(t, db, TestTenantID(), "1000")
	assert.True(t, Dec("1000").Equal(AvailableCredit(t, db, customer.ID)))
}

func TestNewTestContext(t *testing.T) {
	tc := NewTestContext(t)

	assert.NotNil(t, tc.Context)
	assert.NotNil(t, tc.Engine)
	assert.Equal(t, http.MethodGet, tc.Context.Request.Method)

	tc.SetTenantID("tenant-456")
	val, exists := tc.Context.Get("X-Tenant-ID")
	assert.True(t, exists)
	assert.Equal(t, "tenant-456", val)
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("seed"), NewTestUUID("seed"))
	assert.NotEqual(t, NewTestUUID("seed"), NewTestUUID("other"))
	assert.Equal(t, NewTestUUID("test-tenant"), TestTenantID())
}

func TestAssertEventually(t *testing.T) {
	start := time.Now()
	AssertEventually(t, func() bool {
		return time.Since(start) > 20*time.Millisecond
	}, time.Second, 5*time.Millisecond)
}
