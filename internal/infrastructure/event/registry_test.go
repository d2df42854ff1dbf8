package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/barterloop/backend/internal/domain/shared"
)

type stubHandler struct {
	types []string
}

func (h *stubHandler) Handle(ctx context.Context, event shared.DomainEvent) error { return nil }
func (h *stubHandler) EventTypes() []string                                       { return h.types }

func TestRegistry_TypedSubscription(t *testing.T) {
	r := NewHandlerRegistry()
	h := &stubHandler{}

	r.Register(h, "barter.item.listed")

	assert.Len(t, r.GetHandlers("barter.item.listed"), 1)
	assert.Empty(t, r.GetHandlers("barter.proposal.created"))
}

func TestRegistry_WildcardReceivesEverything(t *testing.T) {
	r := NewHandlerRegistry()
	wild := &stubHandler{}
	typed := &stubHandler{}

	r.Register(wild)
	r.Register(typed, "barter.item.listed")

	assert.Len(t, r.GetHandlers("barter.item.listed"), 2)
	assert.Len(t, r.GetHandlers("barter.proposal.created"), 1)
}

func TestRegistry_MultipleTypes(t *testing.T) {
	r := NewHandlerRegistry()
	h := &stubHandler{}

	r.Register(h, "barter.proposal.created", "barter.proposal.activated")

	assert.Len(t, r.GetHandlers("barter.proposal.created"), 1)
	assert.Len(t, r.GetHandlers("barter.proposal.activated"), 1)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewHandlerRegistry()
	keep := &stubHandler{}
	drop := &stubHandler{}

	r.Register(keep, "barter.item.listed")
	r.Register(drop, "barter.item.listed")
	r.Register(drop) // wildcard too

	r.Unregister(drop)

	handlers := r.GetHandlers("barter.item.listed")
	assert.Len(t, handlers, 1)
	assert.Same(t, keep, handlers[0].(*stubHandler))
}

func TestRegistry_GetAllHandlersDeduplicates(t *testing.T) {
	r := NewHandlerRegistry()
	h := &stubHandler{}

	r.Register(h, "barter.proposal.created", "barter.proposal.activated")
	r.Register(h)

	assert.Len(t, r.GetAllHandlers(), 1)
}

func TestRegistry_GetHandlersReturnsCopy(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(&stubHandler{}, "barter.item.listed")

	first := r.GetHandlers("barter.item.listed")
	first[0] = nil

	assert.NotNil(t, r.GetHandlers("barter.item.listed")[0])
}
