package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                           { return nil }

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	paid := testutil.NewMockEventHandler("BoletoPaid")
	all := testutil.NewMockEventHandler()
	bus.Subscribe(paid)
	bus.Subscribe(all)

	tenant := uuid.New()
	require.NoError(t, bus.Publish(context.Background(),
		testutil.NewTestEvent("BoletoPaid", tenant),
		testutil.NewTestEvent("BoletoIssued", tenant),
	))

	assert.Equal(t, 1, paid.HandledCount())
	assert.Equal(t, 2, all.HandledCount())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := testutil.NewMockEventHandler("BoletoPaid")
	bus.Subscribe(handler, "ReceivablePaid")

	_ = bus.Publish(context.Background(), testutil.NewTestEvent("BoletoPaid", uuid.New()))
	assert.Equal(t, 0, handler.HandledCount())

	_ = bus.Publish(context.Background(), testutil.NewTestEvent("ReceivablePaid", uuid.New()))
	assert.Equal(t, 1, handler.HandledCount())
}

func TestInMemoryEventBus_FailuresReachEveryHandler(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	failing := testutil.NewMockEventHandler()
	failing.SetError(errors.New("broker down"))
	healthy := testutil.NewMockEventHandler()
	bus.Subscribe(failing)
	bus.Subscribe(panickingHandler{})
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), testutil.NewTestEvent("TransactionAppended", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, healthy.HandledCount())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	handler := testutil.NewMockEventHandler("BoletoPaid")
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), testutil.NewTestEvent("BoletoPaid", uuid.New())))
	assert.Equal(t, 0, handler.HandledCount())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.Running())
	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.Running())
}
