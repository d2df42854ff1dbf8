package barter

import (
	"context"
	"time"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemRepository persists barter items
type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	FindActiveBarterEligible(ctx context.Context) ([]*Item, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
	// SaveWithVersion saves only if the stored version matches the
	// aggregate's pre-increment version; returns ErrConcurrencyConflict
	// otherwise
	SaveWithVersion(ctx context.Context, item *Item) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// ProposalRepository persists chain proposals. Proposals are never
// deleted; terminal rows remain for audit.
type ProposalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ChainProposal, error)
	FindByStatus(ctx context.Context, status ProposalStatus, filter shared.Filter) ([]*ChainProposal, error)
	// FindActiveByItem returns the non-terminal proposal referencing
	// the item, if any
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*ChainProposal, error)
	// FindExpiredPending returns PENDING_ACCEPTANCE proposals whose
	// deadline passed before the given time
	FindExpiredPending(ctx context.Context, before time.Time, limit int) ([]*ChainProposal, error)
	Save(ctx context.Context, proposal *ChainProposal) error
	SaveWithVersion(ctx context.Context, proposal *ChainProposal) error
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
