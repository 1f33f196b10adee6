package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	*cache.InMemoryIdempotencyStore
}

func (brokenStore) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis unavailable")
}

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := testutil.NewMockEventHandler("BoletoPaid")
	h := NewIdempotentHandler("kafka", inner, store, time.Hour, nil)
	evt := testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, evt))
	require.NoError(t, h.Handle(ctx, evt))

	assert.Equal(t, 1, inner.HandledCount())
	assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 1}, h.Stats())
	assert.Equal(t, []string{"BoletoPaid"}, h.EventTypes())

	// a second handler sees the same event independently
	other := testutil.NewMockEventHandler()
	require.NoError(t, NewIdempotentHandler("audit", other, store, time.Hour, nil).Handle(ctx, evt))
	assert.Equal(t, 1, other.HandledCount())
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := testutil.NewMockEventHandler()
	inner.SetError(errors.New("broker down"))
	h := NewIdempotentHandler("kafka", inner, store, time.Hour, nil)
	evt := testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())
	ctx := context.Background()

	require.Error(t, h.Handle(ctx, evt))

	inner.SetError(nil)
	require.NoError(t, h.Handle(ctx, evt))
	assert.Equal(t, 2, inner.HandledCount())
	assert.Equal(t, IdempotencyStats{Processed: 1, Failed: 1}, h.Stats())
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	store := brokenStore{cache.NewInMemoryIdempotencyStore()}
	defer store.Close()
	inner := testutil.NewMockEventHandler()
	h := NewIdempotentHandler("kafka", inner, store, 0, nil)

	require.NoError(t, h.Handle(context.Background(), testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())))
	assert.Equal(t, 1, inner.HandledCount())
}
