package barter

import (
	"context"
	"fmt"
	"time"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExecutionService performs the atomic multi-party transfer of a fully
// accepted proposal: every ownership change applies, or none of them.
type ExecutionService struct {
	items     barter.ItemRepository
	proposals barter.ProposalRepository
	locks     barter.LockTable
	ledger    barter.LedgerPoster
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(
	items barter.ItemRepository,
	proposals barter.ProposalRepository,
	locks barter.LockTable,
	ledger barter.LedgerPoster,
	logger *zap.Logger,
) *ExecutionService {
	return &ExecutionService{
		items:     items,
		proposals: proposals,
		locks:     locks,
		ledger:    ledger,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *ExecutionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// appliedTransfer is one entry of the undo log kept during execution
type appliedTransfer struct {
	item          *barter.Item
	previousOwner uuid.UUID
}

// Execute runs the transfer for an EXECUTING proposal. Lock tokens are
// re-validated first; then each item moves to its receiver one edge at
// a time with an undo log. Any fault rolls back every applied transfer,
// marks the proposal FAILED and releases the locks. On success items
// are TRADED, ledger entries posted, the proposal COMPLETED and its
// locks consumed.
func (s *ExecutionService) Execute(ctx context.Context, proposal *barter.ChainProposal) error {
	if proposal.Status != barter.ProposalStatusExecuting {
		return shared.NewDomainError("INVALID_STATE",
			"Only an executing proposal can be transferred")
	}

	// Stale proposals must not move items: every token has to match the
	// live lock table before anything changes hands.
	for _, itemID := range proposal.ItemIDs() {
		token, ok := proposal.TokenFor(itemID)
		if !ok || !s.locks.Validate(itemID, token) {
			return s.fail(ctx, proposal, nil,
				fmt.Sprintf("lock token for item %s is no longer valid", itemID))
		}
	}

	applied := make([]appliedTransfer, 0, proposal.Candidate.Length())
	for _, edge := range proposal.Candidate.Edges {
		item, err := s.items.FindByID(ctx, edge.ToItemID)
		if err != nil {
			return s.fail(ctx, proposal, applied,
				fmt.Sprintf("loading item %s: %v", edge.ToItemID, err))
		}
		if err := item.MarkTraded(edge.FromOwnerID); err != nil {
			return s.fail(ctx, proposal, applied,
				fmt.Sprintf("transferring item %s: %v", edge.ToItemID, err))
		}
		if err := s.items.SaveWithVersion(ctx, item); err != nil {
			return s.fail(ctx, proposal, applied,
				fmt.Sprintf("saving item %s: %v", edge.ToItemID, err))
		}
		applied = append(applied, appliedTransfer{item: item, previousOwner: edge.ToOwnerID})

		s.logger.Debug("item transferred",
			zap.String("proposal_id", proposal.ID.String()),
			zap.String("item_id", item.ID.String()),
			zap.String("new_owner", edge.FromOwnerID.String()),
		)
	}

	if err := s.ledger.PostTransfer(ctx, s.ledgerEntries(proposal)); err != nil {
		return s.fail(ctx, proposal, applied, fmt.Sprintf("posting ledger entries: %v", err))
	}

	// Past this point the ledger is written: the transfer stands even
	// if bookkeeping below hits an error.
	if err := proposal.Complete(); err != nil {
		s.logger.Error("completed transfer could not be marked",
			zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
		return err
	}
	if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
		s.logger.Error("completed proposal could not be saved",
			zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
		return err
	}

	s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
	s.publishEvents(ctx, proposal)

	s.logger.Info("proposal executed",
		zap.String("proposal_id", proposal.ID.String()),
		zap.Int("transfers", len(applied)),
		zap.String("cash_differential", proposal.Candidate.CashDifferential.String()),
	)
	return nil
}

// ledgerEntries materializes one entry per ownership transfer
func (s *ExecutionService) ledgerEntries(proposal *barter.ChainProposal) []barter.LedgerEntry {
	now := time.Now()
	entries := make([]barter.LedgerEntry, 0, proposal.Candidate.Length())
	for _, edge := range proposal.Candidate.Edges {
		entries = append(entries, barter.LedgerEntry{
			ProposalID:       proposal.ID,
			ItemID:           edge.ToItemID,
			FromUserID:       edge.ToOwnerID,
			ToUserID:         edge.FromOwnerID,
			ItemValue:        edge.ToValue,
			CashDifferential: proposal.Candidate.PerParticipantNet[edge.FromOwnerID],
			TransferredAt:    now,
		})
	}
	return entries
}

// fail rolls back every applied transfer in reverse order, marks the
// proposal FAILED, releases its locks and returns the items to the
// pool. Participants learn about it through the failure event; silent
// drops are not an option here.
func (s *ExecutionService) fail(ctx context.Context, proposal *barter.ChainProposal, applied []appliedTransfer, reason string) error {
	s.logger.Error("execution failed, rolling back",
		zap.String("proposal_id", proposal.ID.String()),
		zap.Int("applied_transfers", len(applied)),
		zap.String("reason", reason),
	)

	for i := len(applied) - 1; i >= 0; i-- {
		transfer := applied[i]
		if err := transfer.item.RevertTrade(transfer.previousOwner); err != nil {
			s.logger.Error("rollback revert failed",
				zap.String("item_id", transfer.item.ID.String()), zap.Error(err))
			continue
		}
		if err := s.items.SaveWithVersion(ctx, transfer.item); err != nil {
			s.logger.Error("rollback save failed",
				zap.String("item_id", transfer.item.ID.String()), zap.Error(err))
		}
	}

	if err := proposal.Fail(reason); err != nil {
		s.logger.Error("failed proposal could not be marked",
			zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
	} else if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
		s.logger.Error("failed proposal could not be saved",
			zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
	}

	s.releaseItems(ctx, proposal)
	s.publishEvents(ctx, proposal)

	return shared.NewDomainError("EXECUTION_FAILED", reason)
}

// releaseItems releases the proposal's locks and returns its LOCKED
// items to ACTIVE. Best effort: individual failures are logged, not
// propagated.
func (s *ExecutionService) releaseItems(ctx context.Context, proposal *barter.ChainProposal) {
	s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
	for _, itemID := range proposal.ItemIDs() {
		item, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			s.logger.Warn("lock release could not load item",
				zap.String("item_id", itemID.String()), zap.Error(err))
			continue
		}
		if item.Status != barter.ItemStatusLocked {
			continue
		}
		if err := item.Unlock(); err != nil {
			s.logger.Warn("lock release could not unlock item",
				zap.String("item_id", itemID.String()), zap.Error(err))
			continue
		}
		if err := s.items.SaveWithVersion(ctx, item); err != nil {
			s.logger.Warn("lock release could not save item",
				zap.String("item_id", itemID.String()), zap.Error(err))
		}
	}
}

// publishEvents drains the proposal's pending events onto the bus
func (s *ExecutionService) publishEvents(ctx context.Context, proposal *barter.ChainProposal) {
	if s.publisher == nil {
		return
	}
	for _, event := range proposal.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("event_type", event.EventType()), zap.Error(err))
		}
	}
	proposal.ClearDomainEvents()
}
