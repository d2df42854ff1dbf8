package barter

import (
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeItem = "BarterItem"

// Event type constants
const (
	EventTypeItemLocked   = "BarterItemLocked"
	EventTypeItemUnlocked = "BarterItemUnlocked"
	EventTypeItemTraded   = "BarterItemTraded"
)

// ItemLockedEvent is raised when an item is locked for a proposal
type ItemLockedEvent struct {
	shared.BaseDomainEvent
	ItemID     uuid.UUID `json:"item_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	ProposalID uuid.UUID `json:"proposal_id"`
}

// NewItemLockedEvent creates a new ItemLockedEvent
func NewItemLockedEvent(itemID, ownerID, proposalID uuid.UUID) *ItemLockedEvent {
	return &ItemLockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemLocked, AggregateTypeItem, itemID),
		ItemID:          itemID,
		OwnerID:         ownerID,
		ProposalID:      proposalID,
	}
}

// EventType returns the event type name
func (e *ItemLockedEvent) EventType() string {
	return EventTypeItemLocked
}

// ItemUnlockedEvent is raised when an item lock is released
type ItemUnlockedEvent struct {
	shared.BaseDomainEvent
	ItemID  uuid.UUID `json:"item_id"`
	OwnerID uuid.UUID `json:"owner_id"`
}

// NewItemUnlockedEvent creates a new ItemUnlockedEvent
func NewItemUnlockedEvent(itemID, ownerID uuid.UUID) *ItemUnlockedEvent {
	return &ItemUnlockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemUnlocked, AggregateTypeItem, itemID),
		ItemID:          itemID,
		OwnerID:         ownerID,
	}
}

// EventType returns the event type name
func (e *ItemUnlockedEvent) EventType() string {
	return EventTypeItemUnlocked
}

// ItemTradedEvent is raised when ownership of an item is transferred
type ItemTradedEvent struct {
	shared.BaseDomainEvent
	ItemID        uuid.UUID `json:"item_id"`
	PreviousOwner uuid.UUID `json:"previous_owner"`
	NewOwner      uuid.UUID `json:"new_owner"`
}

// NewItemTradedEvent creates a new ItemTradedEvent
func NewItemTradedEvent(itemID, previousOwner, newOwner uuid.UUID) *ItemTradedEvent {
	return &ItemTradedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemTraded, AggregateTypeItem, itemID),
		ItemID:          itemID,
		PreviousOwner:   previousOwner,
		NewOwner:        newOwner,
	}
}

// EventType returns the event type name
func (e *ItemTradedEvent) EventType() string {
	return EventTypeItemTraded
}
