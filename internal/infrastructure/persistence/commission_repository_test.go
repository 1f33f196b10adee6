package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCommission(t *testing.T, repo *GormCommissionRepository, tenantID, sellerID uuid.UUID, amount string, earnedAt time.Time) *finance.Commission {
	t.Helper()
	c, err := finance.NewCommission(tenantID, sellerID, nil, testutil.Dec(amount), earnedAt)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestGormCommissionRepository_WindowAndLinking(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCommissionRepository(db)
	ctx := context.Background()
	tenantID, sellerID := testutil.TestTenantID(), uuid.New()
	start, next, err := shared.LocalMonthWindow("2024-03")
	require.NoError(t, err)

	first := seedCommission(t, repo, tenantID, sellerID, "10", start)
	seedCommission(t, repo, tenantID, sellerID, "20", next.Add(-time.Second))
	seedCommission(t, repo, tenantID, sellerID, "40", next)
	seedCommission(t, repo, tenantID, sellerID, "80", start.Add(-time.Second))

	inWindow, err := repo.FindUnlinkedInWindow(ctx, tenantID, &sellerID, start, next)
	require.NoError(t, err)
	require.Len(t, inWindow, 2)
	assert.Equal(t, first.ID, inWindow[0].ID)

	closureID := uuid.New()
	linked, err := repo.LinkToClosure(ctx, tenantID, []uuid.UUID{inWindow[0].ID, inWindow[1].ID}, closureID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), linked)

	linked, err = repo.LinkToClosure(ctx, tenantID, []uuid.UUID{inWindow[0].ID}, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), linked)

	remaining, err := repo.FindUnlinkedInWindow(ctx, tenantID, nil, start, next)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	require.NoError(t, repo.UnlinkClosure(ctx, tenantID, closureID))
	remaining, err = repo.FindUnlinkedInWindow(ctx, tenantID, nil, start, next)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestGormCommissionClosureRepository_OneActivePerSellerMonth(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormCommissionClosureRepository(db)
	ctx := context.Background()
	tenantID, sellerID := testutil.TestTenantID(), uuid.New()
	commission, err := finance.NewCommission(tenantID, sellerID, nil, testutil.Dec("10"), time.Now())
	require.NoError(t, err)

	closure, err := finance.NewCommissionClosure(tenantID, sellerID, "2024-03", []*finance.Commission{commission})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, closure))

	exists, err := repo.ExistsActive(ctx, tenantID, sellerID, "2024-03")
	require.NoError(t, err)
	assert.True(t, exists)

	duplicate, err := finance.NewCommissionClosure(tenantID, sellerID, "2024-03", []*finance.Commission{commission})
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, duplicate), finance.ErrClosureAlreadyExists)

	require.NoError(t, closure.Cancel())
	require.NoError(t, repo.Save(ctx, closure))

	exists, err = repo.ExistsActive(ctx, tenantID, sellerID, "2024-03")
	require.NoError(t, err)
	assert.False(t, exists)

	reopened, err := finance.NewCommissionClosure(tenantID, sellerID, "2024-03", []*finance.Commission{commission})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, reopened))

	list, total, err := repo.FindAll(ctx, tenantID, finance.ClosureFilter{Filter: shared.DefaultFilter(), SellerID: &sellerID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}
