package barter

import (
	"context"
	"testing"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fourParties builds a balanced four-way cycle pool
func fourParties(t *testing.T) []*barter.Item {
	t.Helper()
	return []*barter.Item{
		newPoolItem(t, uuid.New(), "Encyclopedia set", "books", 500, "toys"),
		newPoolItem(t, uuid.New(), "Model train set", "toys", 500, "electronics"),
		newPoolItem(t, uuid.New(), "Tablet", "electronics", 500, "furniture"),
		newPoolItem(t, uuid.New(), "Armchair", "furniture", 500, "books"),
	}
}

// acceptAll drives a pending proposal through every acceptance; the
// last call triggers execution and its error is returned.
func acceptAll(ctx context.Context, f *fixture, proposal *ProposalResponse) error {
	var err error
	for _, participant := range proposal.Participants {
		if _, acceptErr := f.service.Accept(ctx, proposal.ID, participant.UserID); acceptErr != nil {
			err = acceptErr
		}
	}
	return err
}

func TestExecutionService_RollbackOnMidCycleFault(t *testing.T) {
	items := fourParties(t)
	f := newFixture(t, items...)
	ctx := context.Background()

	created, err := f.service.Create(ctx, CreateProposalRequest{Edges: cycleEdges(items...)})
	require.NoError(t, err)

	originalOwners := make(map[uuid.UUID]uuid.UUID, len(items))
	for _, item := range items {
		originalOwners[item.ID] = item.OwnerID
	}

	// The third transfer target refuses to save: two transfers have
	// already been applied when the fault hits
	stored, err := f.proposals.FindByID(ctx, created.ID)
	require.NoError(t, err)
	faultItem := stored.Candidate.Edges[2].ToItemID
	f.items.failSaveFor(faultItem)

	err = acceptAll(ctx, f, created)
	require.Error(t, err)

	// The proposal is FAILED with the cause recorded
	failed, err := f.proposals.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, barter.ProposalStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.FailureReason)

	// Every item is back with its original owner, unlocked and ACTIVE
	for _, item := range items {
		fresh, err := f.items.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, originalOwners[item.ID], fresh.OwnerID,
			"item %s must return to its original owner", item.Name)
		if fresh.ID != faultItem {
			assert.Equal(t, barter.ItemStatusActive, fresh.Status)
		}
		assert.False(t, f.locks.IsLocked(item.ID))
	}

	// No ledger entries for a rolled-back execution
	assert.Empty(t, f.ledger.posted())
}

func TestExecutionService_RollbackOnLedgerFault(t *testing.T) {
	items := fourParties(t)
	f := newFixture(t, items...)
	f.ledger.fail = true
	ctx := context.Background()

	created, err := f.service.Create(ctx, CreateProposalRequest{Edges: cycleEdges(items...)})
	require.NoError(t, err)

	originalOwners := make(map[uuid.UUID]uuid.UUID, len(items))
	for _, item := range items {
		originalOwners[item.ID] = item.OwnerID
	}

	err = acceptAll(ctx, f, created)
	require.Error(t, err)

	failed, err := f.proposals.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, barter.ProposalStatusFailed, failed.Status)

	// All four transfers had applied; all four must be undone
	for _, item := range items {
		fresh, err := f.items.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, originalOwners[item.ID], fresh.OwnerID)
		assert.Equal(t, barter.ItemStatusActive, fresh.Status)
		assert.False(t, f.locks.IsLocked(item.ID))
	}
	assert.Empty(t, f.ledger.posted())
}

func TestExecutionService_StaleLockToken(t *testing.T) {
	book, toy, gadget := threeParties(t)
	f := newFixture(t, book, toy, gadget)
	ctx := context.Background()

	created, err := f.service.Create(ctx, CreateProposalRequest{Edges: cycleEdges(book, toy, gadget)})
	require.NoError(t, err)

	// Someone yanks a lock out from under the proposal before the final
	// acceptance: execution must refuse to move anything
	f.locks.Release(toy.ID, created.ID)

	err = acceptAll(ctx, f, created)
	require.Error(t, err)

	failed, err := f.proposals.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, barter.ProposalStatusFailed, failed.Status)

	// No transfer was applied at all
	for _, item := range []*barter.Item{book, toy, gadget} {
		fresh, err := f.items.FindByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.OwnerID, fresh.OwnerID)
	}
	assert.Empty(t, f.ledger.posted())
}

func TestExecutionService_RefusesNonExecutingProposal(t *testing.T) {
	book, toy, gadget := threeParties(t)
	f := newFixture(t, book, toy, gadget)
	ctx := context.Background()

	created, err := f.service.Create(ctx, CreateProposalRequest{Edges: cycleEdges(book, toy, gadget)})
	require.NoError(t, err)

	pending, err := f.proposals.FindByID(ctx, created.ID)
	require.NoError(t, err)

	executor := NewExecutionService(f.items, f.proposals, f.locks, f.ledger, zap.NewNop())
	err = executor.Execute(ctx, pending)
	assert.Error(t, err)
	assert.Empty(t, f.ledger.posted())
}
