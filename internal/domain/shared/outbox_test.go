package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvent struct {
	BaseDomainEvent
}

func newPendingEntry() *OutboxEntry {
	evt := &stubEvent{BaseDomainEvent: NewBaseDomainEvent("StubEvent", "Stub", uuid.New(), uuid.New())}
	return NewOutboxEntry(evt, []byte(`{}`))
}

func TestNewOutboxEntry(t *testing.T) {
	evt := &stubEvent{BaseDomainEvent: NewBaseDomainEvent("StubEvent", "Stub", uuid.New(), uuid.New())}
	entry := NewOutboxEntry(evt, []byte(`{"a":1}`))

	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, evt.TenantID(), entry.TenantID)
	assert.Equal(t, "StubEvent", entry.EventType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	t.Run("claims pending and failed entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusFailed} {
			entry := newPendingEntry()
			entry.Status = status
			require.NoError(t, entry.MarkProcessing())
			assert.Equal(t, OutboxStatusProcessing, entry.Status)
		}
	})

	t.Run("rejects sent and dead entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusSent, OutboxStatusDead, OutboxStatusProcessing} {
			entry := newPendingEntry()
			entry.Status = status
			assert.Error(t, entry.MarkProcessing())
		}
	})
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules retries with exponential backoff", func(t *testing.T) {
		entry := newPendingEntry()

		entry.MarkFailed("broker down")
		require.NotNil(t, entry.NextRetryAt)
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		assert.WithinDuration(t, entry.UpdatedAt.Add(time.Second), *entry.NextRetryAt, time.Millisecond)
		assert.True(t, entry.CanRetry())

		entry.MarkFailed("broker down")
		assert.WithinDuration(t, entry.UpdatedAt.Add(2*time.Second), *entry.NextRetryAt, time.Millisecond)
	})

	t.Run("moves to dead after max retries", func(t *testing.T) {
		entry := newPendingEntry()
		for i := 0; i < DefaultMaxRetries; i++ {
			entry.MarkFailed("still down")
		}
		assert.True(t, entry.IsDead())
		assert.Nil(t, entry.NextRetryAt)
		assert.False(t, entry.CanRetry())
		assert.Equal(t, "still down", entry.LastError)
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := newPendingEntry()
	entry.MarkSent()

	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	entry := newPendingEntry()
	assert.Error(t, entry.ResetForRetry())

	for i := 0; i < DefaultMaxRetries; i++ {
		entry.MarkFailed("broker down")
	}
	require.True(t, entry.IsDead())

	require.NoError(t, entry.ResetForRetry())
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Zero(t, entry.RetryCount)
	assert.Empty(t, entry.LastError)
	assert.Nil(t, entry.NextRetryAt)
}
