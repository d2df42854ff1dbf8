package barter

import (
	"time"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProposalStatus represents the status of a chain proposal
type ProposalStatus string

const (
	ProposalStatusDraft             ProposalStatus = "DRAFT"
	ProposalStatusPendingAcceptance ProposalStatus = "PENDING_ACCEPTANCE"
	ProposalStatusExecuting         ProposalStatus = "EXECUTING"
	ProposalStatusCompleted         ProposalStatus = "COMPLETED"
	ProposalStatusCancelled         ProposalStatus = "CANCELLED"
	ProposalStatusRejected          ProposalStatus = "REJECTED"
	ProposalStatusExpired           ProposalStatus = "EXPIRED"
	ProposalStatusFailed            ProposalStatus = "FAILED"
)

// IsValid checks if the status is a valid ProposalStatus
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusPendingAcceptance, ProposalStatusExecuting,
		ProposalStatusCompleted, ProposalStatusCancelled, ProposalStatusRejected,
		ProposalStatusExpired, ProposalStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of ProposalStatus
func (s ProposalStatus) String() string {
	return string(s)
}

// IsTerminal returns true for absorbing states
func (s ProposalStatus) IsTerminal() bool {
	switch s {
	case ProposalStatusCompleted, ProposalStatusCancelled, ProposalStatusRejected,
		ProposalStatusExpired, ProposalStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target.
// Transitions are monotonic: terminal states absorb, and the happy
// path only moves forward.
func (s ProposalStatus) CanTransitionTo(target ProposalStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch target {
	case ProposalStatusCancelled, ProposalStatusRejected, ProposalStatusExpired, ProposalStatusFailed:
		return true // absorbing terminals reachable from any non-terminal state
	case ProposalStatusPendingAcceptance:
		return s == ProposalStatusDraft
	case ProposalStatusExecuting:
		return s == ProposalStatusPendingAcceptance
	case ProposalStatusCompleted:
		return s == ProposalStatusExecuting
	}
	return false
}

// ProposalParticipant is one user's role in a chain proposal
type ProposalParticipant struct {
	UserID      uuid.UUID       `json:"user_id"`
	GivesItemID uuid.UUID       `json:"gives_item_id"`
	GetsItemID  uuid.UUID       `json:"gets_item_id"`
	NetBalance  decimal.Decimal `json:"net_balance"` // value received - value given
	Accepted    bool            `json:"accepted"`
	AcceptedAt  *time.Time      `json:"accepted_at,omitempty"`
}

// LockedItem records a lock token held by the proposal
type LockedItem struct {
	ItemID uuid.UUID `json:"item_id"`
	Token  LockToken `json:"token"`
}

// ChainProposal is a binding multi-party instantiation of one
// discovered cycle. The candidate is frozen at creation time; items
// and sequence never change afterwards. Proposals are never physically
// deleted: terminal states are kept for audit.
type ChainProposal struct {
	shared.BaseAggregateRoot
	Candidate     CycleCandidate        `gorm:"serializer:json"`
	Participants  []ProposalParticipant `gorm:"serializer:json"`
	LockedItems   []LockedItem          `gorm:"serializer:json"`
	Status        ProposalStatus        `gorm:"type:varchar(30);not null;index"`
	ExpiresAt     time.Time             `gorm:"not null;index"`
	ActivatedAt   *time.Time
	ExecutingAt   *time.Time
	CompletedAt   *time.Time
	ClosedAt      *time.Time // set when a terminal failure state is reached
	RejectedBy    *uuid.UUID `gorm:"type:uuid"`
	CloseReason   string     `gorm:"type:varchar(500)"`
	FailureReason string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ChainProposal) TableName() string {
	return "chain_proposals"
}

// NewChainProposal creates a proposal in DRAFT from a candidate
// snapshot. Participants are derived from the cycle edges: the owner
// of each edge's source item gives it and receives the target item.
func NewChainProposal(candidate CycleCandidate, ttl time.Duration) (*ChainProposal, error) {
	if candidate.Length() < MinCycleLength {
		return nil, shared.NewDomainError("INVALID_CANDIDATE",
			"A proposal requires a cycle of at least two edges")
	}
	if ttl <= 0 {
		return nil, shared.NewDomainError("INVALID_TTL", "Proposal TTL must be positive")
	}

	seenUsers := make(map[uuid.UUID]struct{}, candidate.Length())
	seenItems := make(map[uuid.UUID]struct{}, candidate.Length())
	participants := make([]ProposalParticipant, 0, candidate.Length())
	for _, e := range candidate.Edges {
		if _, dup := seenUsers[e.FromOwnerID]; dup {
			return nil, shared.NewDomainError("INVALID_CANDIDATE",
				"A participant appears more than once in the cycle")
		}
		if _, dup := seenItems[e.FromItemID]; dup {
			return nil, shared.NewDomainError("INVALID_CANDIDATE",
				"An item appears more than once in the cycle")
		}
		seenUsers[e.FromOwnerID] = struct{}{}
		seenItems[e.FromItemID] = struct{}{}
		participants = append(participants, ProposalParticipant{
			UserID:      e.FromOwnerID,
			GivesItemID: e.FromItemID,
			GetsItemID:  e.ToItemID,
			NetBalance:  candidate.PerParticipantNet[e.FromOwnerID],
		})
	}

	return &ChainProposal{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Candidate:         candidate,
		Participants:      participants,
		Status:            ProposalStatusDraft,
		ExpiresAt:         time.Now().Add(ttl),
	}, nil
}

// ItemIDs returns the item ids frozen in the proposal, in cycle order
func (p *ChainProposal) ItemIDs() []uuid.UUID {
	return p.Candidate.ItemIDs()
}

// ParticipantByUser returns the participant entry for a user
func (p *ChainProposal) ParticipantByUser(userID uuid.UUID) (*ProposalParticipant, bool) {
	for i := range p.Participants {
		if p.Participants[i].UserID == userID {
			return &p.Participants[i], true
		}
	}
	return nil, false
}

// AllAccepted returns true once every participant has accepted
func (p *ChainProposal) AllAccepted() bool {
	for _, participant := range p.Participants {
		if !participant.Accepted {
			return false
		}
	}
	return len(p.Participants) > 0
}

// AcceptedCount returns how many participants have accepted so far
func (p *ChainProposal) AcceptedCount() int {
	var n int
	for _, participant := range p.Participants {
		if participant.Accepted {
			n++
		}
	}
	return n
}

// TokenFor returns the lock token recorded for an item
func (p *ChainProposal) TokenFor(itemID uuid.UUID) (LockToken, bool) {
	for _, locked := range p.LockedItems {
		if locked.ItemID == itemID {
			return locked.Token, true
		}
	}
	return LockToken{}, false
}

// transition enforces the monotonic state machine
func (p *ChainProposal) transition(target ProposalStatus) error {
	if !p.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			"Proposal cannot transition from "+p.Status.String()+" to "+target.String())
	}
	p.Status = target
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// Activate records the acquired locks and opens the proposal for
// acceptance. Called by the proposal manager after every item lock
// succeeded.
func (p *ChainProposal) Activate(tokens map[uuid.UUID]LockToken) error {
	if len(tokens) != p.Candidate.Length() {
		return shared.NewDomainError("INVALID_INPUT",
			"Lock token count does not match cycle length")
	}
	if err := p.transition(ProposalStatusPendingAcceptance); err != nil {
		return err
	}
	p.LockedItems = p.LockedItems[:0]
	for _, itemID := range p.ItemIDs() {
		p.LockedItems = append(p.LockedItems, LockedItem{ItemID: itemID, Token: tokens[itemID]})
	}
	now := time.Now()
	p.ActivatedAt = &now
	p.AddDomainEvent(NewProposalCreatedEvent(p))
	return nil
}

// Accept records a participant's acceptance. Returns true when this
// acceptance was the last one outstanding.
func (p *ChainProposal) Accept(userID uuid.UUID) (bool, error) {
	if p.Status != ProposalStatusPendingAcceptance {
		return false, shared.NewDomainError("INVALID_STATE",
			"Proposal is not open for acceptance in status "+p.Status.String())
	}
	participant, ok := p.ParticipantByUser(userID)
	if !ok {
		return false, shared.NewDomainError("NOT_PARTICIPANT",
			"User is not a participant of this proposal")
	}
	if participant.Accepted {
		return false, shared.NewDomainError("ALREADY_ACCEPTED",
			"Participant has already accepted this proposal")
	}

	now := time.Now()
	participant.Accepted = true
	participant.AcceptedAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()
	p.AddDomainEvent(NewProposalAcceptedEvent(p, userID))
	return p.AllAccepted(), nil
}

// Reject kills the whole proposal: a cycle with a missing edge is not
// a cycle, so one rejection ends it for everyone.
func (p *ChainProposal) Reject(userID uuid.UUID, reason string) error {
	if p.Status != ProposalStatusPendingAcceptance {
		return shared.NewDomainError("INVALID_STATE",
			"Proposal cannot be rejected in status "+p.Status.String())
	}
	if _, ok := p.ParticipantByUser(userID); !ok {
		return shared.NewDomainError("NOT_PARTICIPANT",
			"User is not a participant of this proposal")
	}
	if err := p.transition(ProposalStatusRejected); err != nil {
		return err
	}
	now := time.Now()
	p.ClosedAt = &now
	p.RejectedBy = &userID
	p.CloseReason = reason
	p.AddDomainEvent(NewProposalRejectedEvent(p, userID, reason))
	return nil
}

// Cancel closes the proposal before execution starts. Only a
// participant may cancel. Once execution has begun the transfer must
// run to completion or roll back on its own, so cancellation is
// refused.
func (p *ChainProposal) Cancel(userID uuid.UUID, reason string) error {
	if p.Status != ProposalStatusDraft && p.Status != ProposalStatusPendingAcceptance {
		return shared.NewDomainError("INVALID_STATE",
			"Proposal cannot be cancelled in status "+p.Status.String())
	}
	if _, ok := p.ParticipantByUser(userID); !ok {
		return shared.NewDomainError("NOT_PARTICIPANT",
			"User is not a participant of this proposal")
	}
	if err := p.transition(ProposalStatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	p.ClosedAt = &now
	p.CloseReason = reason
	p.AddDomainEvent(NewProposalCancelledEvent(p, reason))
	return nil
}

// MarkExecuting transitions to EXECUTING once every participant has
// accepted.
func (p *ChainProposal) MarkExecuting() error {
	if !p.AllAccepted() {
		return shared.NewDomainError("INVALID_STATE",
			"Proposal cannot execute before every participant has accepted")
	}
	if err := p.transition(ProposalStatusExecuting); err != nil {
		return err
	}
	now := time.Now()
	p.ExecutingAt = &now
	return nil
}

// Complete marks the proposal COMPLETED after a successful execution
func (p *ChainProposal) Complete() error {
	if err := p.transition(ProposalStatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	p.CompletedAt = &now
	p.AddDomainEvent(NewProposalCompletedEvent(p))
	return nil
}

// Fail marks the proposal FAILED after execution was rolled back
func (p *ChainProposal) Fail(reason string) error {
	if err := p.transition(ProposalStatusFailed); err != nil {
		return err
	}
	now := time.Now()
	p.ClosedAt = &now
	p.FailureReason = reason
	p.AddDomainEvent(NewProposalFailedEvent(p, reason))
	return nil
}

// Expire transitions a pending proposal past its deadline to EXPIRED.
// Returns false without error when the proposal is not yet expired or
// no longer pending, so the background sweep stays idempotent.
func (p *ChainProposal) Expire(now time.Time) (bool, error) {
	if p.Status != ProposalStatusPendingAcceptance {
		return false, nil
	}
	if now.Before(p.ExpiresAt) {
		return false, nil
	}
	if err := p.transition(ProposalStatusExpired); err != nil {
		return false, err
	}
	p.ClosedAt = &now
	p.AddDomainEvent(NewProposalExpiredEvent(p))
	return true, nil
}
