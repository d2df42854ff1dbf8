package barter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCandidate builds a balanced three-party candidate
func newTestCandidate(t *testing.T) CycleCandidate {
	t.Helper()
	edges, _ := threeWayEdges(1000, 950, 1050)
	diff := NewValueBalancer().ComputeDifferential(edges)

	cand := CycleCandidate{
		ID:                uuid.New(),
		Edges:             edges,
		AggregateScore:    0.85,
		CashDifferential:  diff.TotalDifferential.Amount(),
		PerParticipantNet: diff.NetAmounts(),
		ExpiresAt:         time.Now().Add(15 * time.Minute),
	}
	for _, e := range edges {
		cand.Participants = append(cand.Participants, e.FromOwnerID)
	}
	return cand
}

// newPendingProposal creates a proposal and activates it with matching
// lock tokens
func newPendingProposal(t *testing.T) *ChainProposal {
	t.Helper()
	p, err := NewChainProposal(newTestCandidate(t), time.Hour)
	require.NoError(t, err)

	tokens := make(map[uuid.UUID]LockToken, len(p.ItemIDs()))
	for i, itemID := range p.ItemIDs() {
		tokens[itemID] = LockToken{
			Version:    uint64(i + 1),
			ProposalID: p.ID,
			ExpiresAt:  time.Now().Add(time.Hour),
		}
	}
	require.NoError(t, p.Activate(tokens))
	return p
}

func TestNewChainProposal(t *testing.T) {
	cand := newTestCandidate(t)

	p, err := NewChainProposal(cand, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusDraft, p.Status)
	require.Len(t, p.Participants, 3)

	// Participants mirror the cycle edges: give the source, get the target
	for i, e := range cand.Edges {
		assert.Equal(t, e.FromOwnerID, p.Participants[i].UserID)
		assert.Equal(t, e.FromItemID, p.Participants[i].GivesItemID)
		assert.Equal(t, e.ToItemID, p.Participants[i].GetsItemID)
		assert.False(t, p.Participants[i].Accepted)
	}
	assert.False(t, p.AllAccepted())
}

func TestNewChainProposal_Validation(t *testing.T) {
	cand := newTestCandidate(t)

	_, err := NewChainProposal(cand, 0)
	assert.Error(t, err)

	_, err = NewChainProposal(CycleCandidate{Edges: cand.Edges[:1]}, time.Hour)
	assert.Error(t, err)

	// Duplicate participant
	dup := newTestCandidate(t)
	dup.Edges[2].FromOwnerID = dup.Edges[0].FromOwnerID
	_, err = NewChainProposal(dup, time.Hour)
	assert.Error(t, err)

	// Duplicate item
	dup = newTestCandidate(t)
	dup.Edges[2].FromItemID = dup.Edges[0].FromItemID
	_, err = NewChainProposal(dup, time.Hour)
	assert.Error(t, err)
}

func TestChainProposal_Activate(t *testing.T) {
	p, err := NewChainProposal(newTestCandidate(t), time.Hour)
	require.NoError(t, err)

	// Token count must cover every item in the cycle
	err = p.Activate(map[uuid.UUID]LockToken{})
	assert.Error(t, err)
	assert.Equal(t, ProposalStatusDraft, p.Status)

	tokens := make(map[uuid.UUID]LockToken)
	for _, itemID := range p.ItemIDs() {
		tokens[itemID] = LockToken{Version: 1, ProposalID: p.ID, ExpiresAt: time.Now().Add(time.Hour)}
	}
	require.NoError(t, p.Activate(tokens))
	assert.Equal(t, ProposalStatusPendingAcceptance, p.Status)
	require.NotNil(t, p.ActivatedAt)
	require.Len(t, p.LockedItems, 3)

	token, ok := p.TokenFor(p.ItemIDs()[0])
	require.True(t, ok)
	assert.Equal(t, p.ID, token.ProposalID)

	events := p.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeProposalCreated, events[0].EventType())
}

func TestChainProposal_AcceptFlow(t *testing.T) {
	p := newPendingProposal(t)

	// A stranger cannot accept
	_, err := p.Accept(uuid.New())
	assert.Error(t, err)

	last, err := p.Accept(p.Participants[0].UserID)
	require.NoError(t, err)
	assert.False(t, last)
	assert.Equal(t, 1, p.AcceptedCount())

	// Double acceptance is rejected
	_, err = p.Accept(p.Participants[0].UserID)
	assert.Error(t, err)

	last, err = p.Accept(p.Participants[1].UserID)
	require.NoError(t, err)
	assert.False(t, last)

	last, err = p.Accept(p.Participants[2].UserID)
	require.NoError(t, err)
	assert.True(t, last, "final acceptance should be flagged")
	assert.True(t, p.AllAccepted())

	// Acceptance alone does not move the status; the manager does
	assert.Equal(t, ProposalStatusPendingAcceptance, p.Status)

	require.NoError(t, p.MarkExecuting())
	assert.Equal(t, ProposalStatusExecuting, p.Status)
}

func TestChainProposal_RejectKillsProposal(t *testing.T) {
	p := newPendingProposal(t)
	rejector := p.Participants[1].UserID

	require.NoError(t, p.Reject(rejector, "changed my mind"))
	assert.Equal(t, ProposalStatusRejected, p.Status)
	require.NotNil(t, p.RejectedBy)
	assert.Equal(t, rejector, *p.RejectedBy)

	// Terminal: nothing works anymore
	_, err := p.Accept(p.Participants[0].UserID)
	assert.Error(t, err)
	assert.Error(t, p.Cancel(p.Participants[0].UserID, "x"))
	assert.Error(t, p.MarkExecuting())
}

func TestChainProposal_RejectByStranger(t *testing.T) {
	p := newPendingProposal(t)
	err := p.Reject(uuid.New(), "not mine")
	assert.Error(t, err)
	assert.Equal(t, ProposalStatusPendingAcceptance, p.Status)
}

func TestChainProposal_Cancel(t *testing.T) {
	p := newPendingProposal(t)
	require.NoError(t, p.Cancel(p.Participants[0].UserID, "pool changed"))
	assert.Equal(t, ProposalStatusCancelled, p.Status)
	assert.Equal(t, "pool changed", p.CloseReason)

	// Once executing, cancellation is refused
	p2 := newPendingProposal(t)
	for _, participant := range p2.Participants {
		_, err := p2.Accept(participant.UserID)
		require.NoError(t, err)
	}
	require.NoError(t, p2.MarkExecuting())
	assert.Error(t, p2.Cancel(p2.Participants[0].UserID, "too late"))
}

func TestChainProposal_CancelByStranger(t *testing.T) {
	p := newPendingProposal(t)
	err := p.Cancel(uuid.New(), "not mine")
	assert.Error(t, err)
	assert.Equal(t, ProposalStatusPendingAcceptance, p.Status)
}

func TestChainProposal_ExecuteToCompletion(t *testing.T) {
	p := newPendingProposal(t)

	// Cannot execute before everyone accepted
	assert.Error(t, p.MarkExecuting())

	for _, participant := range p.Participants {
		_, err := p.Accept(participant.UserID)
		require.NoError(t, err)
	}
	require.NoError(t, p.MarkExecuting())
	require.NoError(t, p.Complete())
	assert.Equal(t, ProposalStatusCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
}

func TestChainProposal_Fail(t *testing.T) {
	p := newPendingProposal(t)
	for _, participant := range p.Participants {
		_, err := p.Accept(participant.UserID)
		require.NoError(t, err)
	}
	require.NoError(t, p.MarkExecuting())

	require.NoError(t, p.Fail("transfer 2 of 3 hit a version conflict"))
	assert.Equal(t, ProposalStatusFailed, p.Status)
	assert.NotEmpty(t, p.FailureReason)
	require.NotNil(t, p.ClosedAt)
}

func TestChainProposal_Expire(t *testing.T) {
	p := newPendingProposal(t)

	// Not yet due
	expired, err := p.Expire(p.ExpiresAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, ProposalStatusPendingAcceptance, p.Status)

	expired, err = p.Expire(p.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, ProposalStatusExpired, p.Status)

	// Idempotent: a second sweep pass is a no-op
	expired, err = p.Expire(p.ExpiresAt.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestProposalStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, ProposalStatusDraft.CanTransitionTo(ProposalStatusPendingAcceptance))
	assert.False(t, ProposalStatusDraft.CanTransitionTo(ProposalStatusExecuting))
	assert.False(t, ProposalStatusDraft.CanTransitionTo(ProposalStatusCompleted))

	assert.True(t, ProposalStatusPendingAcceptance.CanTransitionTo(ProposalStatusExecuting))
	assert.False(t, ProposalStatusPendingAcceptance.CanTransitionTo(ProposalStatusCompleted))

	assert.True(t, ProposalStatusExecuting.CanTransitionTo(ProposalStatusCompleted))
	assert.True(t, ProposalStatusExecuting.CanTransitionTo(ProposalStatusFailed))

	for _, terminal := range []ProposalStatus{
		ProposalStatusCompleted, ProposalStatusCancelled, ProposalStatusRejected,
		ProposalStatusExpired, ProposalStatusFailed,
	} {
		assert.True(t, terminal.IsTerminal())
		for _, target := range []ProposalStatus{
			ProposalStatusDraft, ProposalStatusPendingAcceptance, ProposalStatusExecuting,
			ProposalStatusCompleted, ProposalStatusCancelled,
		} {
			assert.False(t, terminal.CanTransitionTo(target))
		}
	}
}
