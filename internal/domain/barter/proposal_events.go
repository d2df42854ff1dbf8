package barter

import (
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeChainProposal = "ChainProposal"

// Event type constants
const (
	EventTypeProposalCreated   = "ChainProposalCreated"
	EventTypeProposalAccepted  = "ChainProposalAccepted"
	EventTypeProposalRejected  = "ChainProposalRejected"
	EventTypeProposalCancelled = "ChainProposalCancelled"
	EventTypeProposalExpired   = "ChainProposalExpired"
	EventTypeProposalCompleted = "ChainProposalCompleted"
	EventTypeProposalFailed    = "ChainProposalFailed"
)

// participantIDs collects the user ids of a proposal for event payloads
func participantIDs(p *ChainProposal) []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Participants))
	for i, participant := range p.Participants {
		ids[i] = participant.UserID
	}
	return ids
}

// ProposalCreatedEvent is raised when a proposal enters
// PENDING_ACCEPTANCE with all item locks held
type ProposalCreatedEvent struct {
	shared.BaseDomainEvent
	ProposalID   uuid.UUID   `json:"proposal_id"`
	Participants []uuid.UUID `json:"participants"`
	ItemIDs      []uuid.UUID `json:"item_ids"`
	CycleLength  int         `json:"cycle_length"`
}

// NewProposalCreatedEvent creates a new ProposalCreatedEvent
func NewProposalCreatedEvent(p *ChainProposal) *ProposalCreatedEvent {
	return &ProposalCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalCreated, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		Participants:    participantIDs(p),
		ItemIDs:         p.ItemIDs(),
		CycleLength:     p.Candidate.Length(),
	}
}

// EventType returns the event type name
func (e *ProposalCreatedEvent) EventType() string {
	return EventTypeProposalCreated
}

// ProposalAcceptedEvent is raised when one participant accepts
type ProposalAcceptedEvent struct {
	shared.BaseDomainEvent
	ProposalID    uuid.UUID   `json:"proposal_id"`
	AcceptedBy    uuid.UUID   `json:"accepted_by"`
	AcceptedCount int         `json:"accepted_count"`
	Participants  []uuid.UUID `json:"participants"`
}

// NewProposalAcceptedEvent creates a new ProposalAcceptedEvent
func NewProposalAcceptedEvent(p *ChainProposal, acceptedBy uuid.UUID) *ProposalAcceptedEvent {
	return &ProposalAcceptedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalAccepted, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		AcceptedBy:      acceptedBy,
		AcceptedCount:   p.AcceptedCount(),
		Participants:    participantIDs(p),
	}
}

// EventType returns the event type name
func (e *ProposalAcceptedEvent) EventType() string {
	return EventTypeProposalAccepted
}

// ProposalRejectedEvent is raised when any participant rejects,
// killing the proposal for everyone
type ProposalRejectedEvent struct {
	shared.BaseDomainEvent
	ProposalID   uuid.UUID   `json:"proposal_id"`
	RejectedBy   uuid.UUID   `json:"rejected_by"`
	Reason       string      `json:"reason,omitempty"`
	Participants []uuid.UUID `json:"participants"`
}

// NewProposalRejectedEvent creates a new ProposalRejectedEvent
func NewProposalRejectedEvent(p *ChainProposal, rejectedBy uuid.UUID, reason string) *ProposalRejectedEvent {
	return &ProposalRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalRejected, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		RejectedBy:      rejectedBy,
		Reason:          reason,
		Participants:    participantIDs(p),
	}
}

// EventType returns the event type name
func (e *ProposalRejectedEvent) EventType() string {
	return EventTypeProposalRejected
}

// ProposalCancelledEvent is raised when the proposal is cancelled
// before execution
type ProposalCancelledEvent struct {
	shared.BaseDomainEvent
	ProposalID   uuid.UUID   `json:"proposal_id"`
	Reason       string      `json:"reason,omitempty"`
	Participants []uuid.UUID `json:"participants"`
}

// NewProposalCancelledEvent creates a new ProposalCancelledEvent
func NewProposalCancelledEvent(p *ChainProposal, reason string) *ProposalCancelledEvent {
	return &ProposalCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalCancelled, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		Reason:          reason,
		Participants:    participantIDs(p),
	}
}

// EventType returns the event type name
func (e *ProposalCancelledEvent) EventType() string {
	return EventTypeProposalCancelled
}

// ProposalExpiredEvent is raised by the background sweep when a
// pending proposal passes its acceptance deadline
type ProposalExpiredEvent struct {
	shared.BaseDomainEvent
	ProposalID   uuid.UUID   `json:"proposal_id"`
	Participants []uuid.UUID `json:"participants"`
}

// NewProposalExpiredEvent creates a new ProposalExpiredEvent
func NewProposalExpiredEvent(p *ChainProposal) *ProposalExpiredEvent {
	return &ProposalExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalExpired, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		Participants:    participantIDs(p),
	}
}

// EventType returns the event type name
func (e *ProposalExpiredEvent) EventType() string {
	return EventTypeProposalExpired
}

// ProposalCompletedEvent is raised after a fully successful execution
type ProposalCompletedEvent struct {
	shared.BaseDomainEvent
	ProposalID       uuid.UUID       `json:"proposal_id"`
	Participants     []uuid.UUID     `json:"participants"`
	ItemIDs          []uuid.UUID     `json:"item_ids"`
	CashDifferential decimal.Decimal `json:"cash_differential"`
}

// NewProposalCompletedEvent creates a new ProposalCompletedEvent
func NewProposalCompletedEvent(p *ChainProposal) *ProposalCompletedEvent {
	return &ProposalCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeProposalCompleted, AggregateTypeChainProposal, p.ID),
		ProposalID:       p.ID,
		Participants:     participantIDs(p),
		ItemIDs:          p.ItemIDs(),
		CashDifferential: p.Candidate.CashDifferential,
	}
}

// EventType returns the event type name
func (e *ProposalCompletedEvent) EventType() string {
	return EventTypeProposalCompleted
}

// ProposalFailedEvent is raised when execution hit a fault and was
// rolled back. Never a silent drop: participants are notified.
type ProposalFailedEvent struct {
	shared.BaseDomainEvent
	ProposalID   uuid.UUID   `json:"proposal_id"`
	Reason       string      `json:"reason"`
	Participants []uuid.UUID `json:"participants"`
}

// NewProposalFailedEvent creates a new ProposalFailedEvent
func NewProposalFailedEvent(p *ChainProposal, reason string) *ProposalFailedEvent {
	return &ProposalFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposalFailed, AggregateTypeChainProposal, p.ID),
		ProposalID:      p.ID,
		Reason:          reason,
		Participants:    participantIDs(p),
	}
}

// EventType returns the event type name
func (e *ProposalFailedEvent) EventType() string {
	return EventTypeProposalFailed
}
