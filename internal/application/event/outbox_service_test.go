package event

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	infraevent "github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type outboxFixture struct {
	repo    *infraevent.GormOutboxRepository
	service *OutboxService
	tenant  uuid.UUID
}

func newOutboxFixture(t *testing.T) *outboxFixture {
	t.Helper()
	repo := infraevent.NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	return &outboxFixture{
		repo:    repo,
		service: NewOutboxService(repo, zap.NewNop()),
		tenant:  testutil.TestTenantID(),
	}
}

func (f *outboxFixture) seed(t *testing.T, tenantID uuid.UUID, dead bool) *shared.OutboxEntry {
	t.Helper()
	ctx := context.Background()
	entry := shared.NewOutboxEntry(testutil.NewTestEvent("ReceivablePaid", tenantID), []byte(`{}`))
	require.NoError(t, f.repo.Save(ctx, entry))
	if dead {
		for i := 0; i < entry.MaxRetries; i++ {
			entry.MarkFailed("kafka: leader not available")
		}
		require.NoError(t, f.repo.Update(ctx, entry))
	}
	return entry
}

func TestOutboxService_ListDeadAndStats(t *testing.T) {
	f := newOutboxFixture(t)
	ctx := context.Background()
	dead := f.seed(t, f.tenant, true)
	f.seed(t, f.tenant, false)
	f.seed(t, uuid.New(), true)

	entries, total, err := f.service.ListDead(ctx, f.tenant, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, dead.ID, entries[0].ID)
	assert.Equal(t, "kafka: leader not available", entries[0].LastError)

	stats, err := f.service.Stats(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(2), stats.Total)
}

func TestOutboxService_Retry(t *testing.T) {
	f := newOutboxFixture(t)
	ctx := context.Background()
	dead := f.seed(t, f.tenant, true)
	pending := f.seed(t, f.tenant, false)
	foreign := f.seed(t, uuid.New(), true)

	got, err := f.service.Retry(ctx, f.tenant, dead.ID)
	require.NoError(t, err)
	assert.Equal(t, string(shared.OutboxStatusPending), got.Status)
	assert.Zero(t, got.RetryCount)

	_, err = f.service.Retry(ctx, f.tenant, pending.ID)
	assert.ErrorIs(t, err, shared.NewDomainError("INVALID_STATE", ""))

	_, err = f.service.Retry(ctx, f.tenant, foreign.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.Get(ctx, f.tenant, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxService_RetryAll(t *testing.T) {
	f := newOutboxFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.seed(t, f.tenant, true)
	}
	other := f.seed(t, uuid.New(), true)

	n, err := f.service.RetryAll(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, total, err := f.service.ListDead(ctx, f.tenant, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)

	untouched, err := f.repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, untouched.IsDead())
}
