package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type processorFixture struct {
	db        *gorm.DB
	repo      *GormOutboxRepository
	bus       *InMemoryEventBus
	handler   *testutil.MockEventHandler
	publisher *OutboxPublisher
	processor *OutboxProcessor
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	serializer := ledgerSerializer()
	serializer.Register("BoletoPaid", &testutil.TestEvent{})

	bus := NewInMemoryEventBus(nil)
	handler := testutil.NewMockEventHandler()
	bus.Subscribe(handler)

	repo := NewGormOutboxRepository(db)
	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupEnabled = false

	return &processorFixture{
		db:        db,
		repo:      repo,
		bus:       bus,
		handler:   handler,
		publisher: NewOutboxPublisher(serializer),
		processor: NewOutboxProcessor(repo, bus, serializer, cfg, nil),
	}
}

func (f *processorFixture) entry(t *testing.T) *shared.OutboxEntry {
	t.Helper()
	entries, err := f.repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0]
}

func TestOutboxProcessor_DeliversPendingEntries(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	evt := testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())
	require.NoError(t, f.publisher.PublishWithTx(ctx, f.db, evt))
	saved := f.entry(t)

	assert.Equal(t, 1, f.processor.ProcessBatch(ctx))
	require.Equal(t, 1, f.handler.HandledCount())
	assert.Equal(t, evt.EventID(), f.handler.Handled()[0].EventID())

	got, err := f.repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusSent, got.Status)
	require.NotNil(t, got.ProcessedAt)

	assert.Equal(t, 0, f.processor.ProcessBatch(ctx), "sent entries are not redelivered")
	assert.Equal(t, 1, f.handler.HandledCount())
}

func TestOutboxProcessor_RetriesFailedDelivery(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	require.NoError(t, f.publisher.PublishWithTx(ctx, f.db, testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())))
	saved := f.entry(t)

	f.handler.SetError(errors.New("broker down"))
	assert.Equal(t, 0, f.processor.ProcessBatch(ctx))

	failed, err := f.repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Contains(t, failed.LastError, "broker down")

	// make the retry due
	require.NoError(t, f.db.Model(&models.OutboxEntryModel{}).
		Where("id = ?", saved.ID).
		Update("next_retry_at", time.Now().UTC().Add(-time.Minute)).Error)

	f.handler.SetError(nil)
	assert.Equal(t, 1, f.processor.ProcessBatch(ctx))

	sent, err := f.repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusSent, sent.Status)
	assert.Equal(t, 2, f.handler.HandledCount())
}

func TestOutboxProcessor_UnknownEventTypeFails(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	require.NoError(t, f.publisher.PublishWithTx(ctx, f.db, testutil.NewTestEvent("Mystery", testutil.TestTenantID())))
	saved := f.entry(t)

	assert.Equal(t, 0, f.processor.ProcessBatch(ctx))
	assert.Equal(t, 0, f.handler.HandledCount())

	got, err := f.repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, got.Status)
	assert.Contains(t, got.LastError, "unknown event type")
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	require.NoError(t, f.publisher.PublishWithTx(ctx, f.db, testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())))

	require.NoError(t, f.processor.Start(ctx))
	assert.True(t, testutil.WaitForEventCount(t, f.handler, 1, 2*time.Second))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.processor.Stop(stopCtx))
}
