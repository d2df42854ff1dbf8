package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
)

// swapCandidate builds a balanced two-party swap between fresh users
func swapCandidate(t *testing.T) barter.CycleCandidate {
	t.Helper()
	alice, bob := uuid.New(), uuid.New()
	book, toy := uuid.New(), uuid.New()
	hundred := decimal.NewFromInt(100)

	return barter.CycleCandidate{
		ID: uuid.New(),
		Edges: []barter.CandidateEdge{
			{FromItemID: book, ToItemID: toy, FromOwnerID: alice, ToOwnerID: bob,
				FromValue: hundred, ToValue: hundred, Score: 0.9},
			{FromItemID: toy, ToItemID: book, FromOwnerID: bob, ToOwnerID: alice,
				FromValue: hundred, ToValue: hundred, Score: 0.9},
		},
		Participants:   []uuid.UUID{alice, bob},
		AggregateScore: 0.9,
		PerParticipantNet: map[uuid.UUID]decimal.Decimal{
			alice: decimal.Zero,
			bob:   decimal.Zero,
		},
	}
}

// newPendingStoredProposal activates and persists a proposal
func newPendingStoredProposal(t *testing.T, repo *GormProposalRepository, ttl time.Duration) *barter.ChainProposal {
	t.Helper()
	proposal, err := barter.NewChainProposal(swapCandidate(t), ttl)
	require.NoError(t, err)

	tokens := make(map[uuid.UUID]barter.LockToken, 2)
	for _, itemID := range proposal.ItemIDs() {
		tokens[itemID] = barter.LockToken{
			Version:    1,
			ProposalID: proposal.ID,
			ExpiresAt:  time.Now().Add(time.Hour),
		}
	}
	require.NoError(t, proposal.Activate(tokens))
	proposal.ClearDomainEvents()

	require.NoError(t, repo.Save(context.Background(), proposal))
	return proposal
}

func TestGormProposalRepository_SaveAndFindByID(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	proposal := newPendingStoredProposal(t, repo, 48*time.Hour)

	found, err := repo.FindByID(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, barter.ProposalStatusPendingAcceptance, found.Status)

	// The serialized candidate, participants and lock tokens all round-trip
	require.Len(t, found.Candidate.Edges, 2)
	assert.Equal(t, proposal.Candidate.Edges[0].FromItemID, found.Candidate.Edges[0].FromItemID)
	require.Len(t, found.Participants, 2)
	assert.Equal(t, proposal.Participants[0].UserID, found.Participants[0].UserID)
	for _, itemID := range proposal.ItemIDs() {
		token, ok := found.TokenFor(itemID)
		require.True(t, ok)
		assert.Equal(t, proposal.ID, token.ProposalID)
	}
}

func TestGormProposalRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProposalRepository_FindByStatus(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	pending := newPendingStoredProposal(t, repo, 48*time.Hour)
	rejected := newPendingStoredProposal(t, repo, 48*time.Hour)
	require.NoError(t, rejected.Reject(rejected.Participants[0].UserID, "changed my mind"))
	require.NoError(t, repo.Save(ctx, rejected))

	found, err := repo.FindByStatus(ctx, barter.ProposalStatusPendingAcceptance, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, pending.ID, found[0].ID)
}

func TestGormProposalRepository_FindActiveByItem(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	proposal := newPendingStoredProposal(t, repo, 48*time.Hour)
	itemID := proposal.ItemIDs()[0]

	found, err := repo.FindActiveByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, proposal.ID, found.ID)

	// Items of closed proposals are free again
	require.NoError(t, proposal.Cancel(proposal.Participants[0].UserID, "initiator withdrew"))
	require.NoError(t, repo.Save(ctx, proposal))

	_, err = repo.FindActiveByItem(ctx, itemID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProposalRepository_FindExpiredPending(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	overdue := newPendingStoredProposal(t, repo, time.Minute)
	fresh := newPendingStoredProposal(t, repo, 48*time.Hour)

	cutoff := time.Now().Add(time.Hour)
	due, err := repo.FindExpiredPending(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, overdue.ID, due[0].ID)

	// A zero cutoff in the past catches nothing
	none, err := repo.FindExpiredPending(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	_ = fresh
}

func TestGormProposalRepository_SaveWithVersion_Conflict(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	proposal := newPendingStoredProposal(t, repo, 48*time.Hour)

	rival, err := repo.FindByID(ctx, proposal.ID)
	require.NoError(t, err)
	require.NoError(t, rival.Cancel(rival.Participants[0].UserID, "beaten to it"))
	require.NoError(t, repo.SaveWithVersion(ctx, rival))

	require.NoError(t, proposal.Reject(proposal.Participants[0].UserID, "too slow"))
	err = repo.SaveWithVersion(ctx, proposal)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	found, err := repo.FindByID(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, barter.ProposalStatusCancelled, found.Status)
}

func TestGormProposalRepository_Count(t *testing.T) {
	repo := NewGormProposalRepository(setupTestDB(t))
	ctx := context.Background()

	newPendingStoredProposal(t, repo, 48*time.Hour)
	newPendingStoredProposal(t, repo, 48*time.Hour)

	total, err := repo.Count(ctx, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	pending, err := repo.Count(ctx, shared.Filter{
		Filters: map[string]interface{}{"status": barter.ProposalStatusPendingAcceptance},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)
}
