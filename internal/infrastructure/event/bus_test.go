package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/barterloop/backend/internal/domain/shared"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	fail     error
	panicMsg string
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.received = append(h.received, event)
	return h.fail
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func newTestEvent(eventType string) shared.DomainEvent {
	evt := shared.NewBaseDomainEvent(eventType, "ChainProposal", uuid.New())
	return &evt
}

func TestBus_PublishToSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	h := &recordingHandler{types: []string{"barter.proposal.created"}}
	bus.Subscribe(h)

	evt := newTestEvent("barter.proposal.created")
	require.NoError(t, bus.Publish(context.Background(), evt))

	require.Len(t, h.received, 1)
	assert.Equal(t, evt.EventID(), h.received[0].EventID())
}

func TestBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	h := &recordingHandler{types: []string{"barter.proposal.created"}}
	bus.Subscribe(h, "barter.item.listed")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("barter.proposal.created")))
	assert.Empty(t, h.received, "handler's own types are ignored when explicit types given")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("barter.item.listed")))
	assert.Len(t, h.received, 1)
}

func TestBus_WildcardHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	h := &recordingHandler{} // no types: wildcard
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("barter.proposal.created"),
		newTestEvent("barter.item.listed"),
	))

	assert.Len(t, h.received, 2)
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	failing := &recordingHandler{types: []string{"barter.proposal.created"}, fail: errors.New("boom")}
	healthy := &recordingHandler{types: []string{"barter.proposal.created"}}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("barter.proposal.created")))

	assert.Len(t, healthy.received, 1, "later handlers still run")
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	panicking := &recordingHandler{types: []string{"barter.proposal.created"}, panicMsg: "corrupt state"}
	healthy := &recordingHandler{types: []string{"barter.proposal.created"}}
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NotPanics(t, func() {
		require.NoError(t, bus.Publish(context.Background(), newTestEvent("barter.proposal.created")))
	})
	assert.Len(t, healthy.received, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	h := &recordingHandler{types: []string{"barter.proposal.created"}}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("barter.proposal.created")))
	assert.Empty(t, h.received)
}

func TestBus_Lifecycle(t *testing.T) {
	bus := NewInMemoryEventBus(zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))
}
