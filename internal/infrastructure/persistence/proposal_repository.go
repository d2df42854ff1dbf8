package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
)

// GormProposalRepository implements barter.ProposalRepository using GORM.
// Proposals are never deleted; terminal rows stay behind for audit.
type GormProposalRepository struct {
	db *gorm.DB
}

// NewGormProposalRepository creates a new GormProposalRepository
func NewGormProposalRepository(db *gorm.DB) *GormProposalRepository {
	return &GormProposalRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormProposalRepository) WithTx(tx *gorm.DB) *GormProposalRepository {
	return &GormProposalRepository{db: tx}
}

// activeStatuses are the non-terminal states a persisted proposal can
// hold. DRAFT never reaches the database: proposals are saved only
// after activation.
var activeStatuses = []barter.ProposalStatus{
	barter.ProposalStatusPendingAcceptance,
	barter.ProposalStatusExecuting,
}

// FindByID finds a proposal by its ID
func (r *GormProposalRepository) FindByID(ctx context.Context, id uuid.UUID) (*barter.ChainProposal, error) {
	var proposal barter.ChainProposal
	if err := r.db.WithContext(ctx).First(&proposal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &proposal, nil
}

// FindByStatus finds proposals in the given status
func (r *GormProposalRepository) FindByStatus(ctx context.Context, status barter.ProposalStatus, filter shared.Filter) ([]*barter.ChainProposal, error) {
	var proposals []*barter.ChainProposal
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&barter.ChainProposal{}).Where("status = ?", status),
		filter,
	)
	if err := query.Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// FindActiveByItem returns the non-terminal proposal referencing the
// item, if any. Item membership lives inside the serialized candidate,
// so the (small) set of active proposals is scanned in memory rather
// than through JSON path queries that would tie us to one dialect.
func (r *GormProposalRepository) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*barter.ChainProposal, error) {
	var proposals []*barter.ChainProposal
	if err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Find(&proposals).Error; err != nil {
		return nil, err
	}

	for _, proposal := range proposals {
		for _, id := range proposal.ItemIDs() {
			if id == itemID {
				return proposal, nil
			}
		}
	}
	return nil, shared.ErrNotFound
}

// FindExpiredPending returns PENDING_ACCEPTANCE proposals whose
// deadline passed before the given time, oldest first
func (r *GormProposalRepository) FindExpiredPending(ctx context.Context, before time.Time, limit int) ([]*barter.ChainProposal, error) {
	var proposals []*barter.ChainProposal
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", barter.ProposalStatusPendingAcceptance, before).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// Save creates or updates a proposal
func (r *GormProposalRepository) Save(ctx context.Context, proposal *barter.ChainProposal) error {
	return r.db.WithContext(ctx).Save(proposal).Error
}

// SaveWithVersion saves with optimistic locking on the aggregate version
func (r *GormProposalRepository) SaveWithVersion(ctx context.Context, proposal *barter.ChainProposal) error {
	result := r.db.WithContext(ctx).
		Model(&barter.ChainProposal{}).
		Where("id = ? AND version = ?", proposal.ID, proposal.Version-1).
		Select("candidate", "participants", "locked_items", "status", "expires_at",
			"activated_at", "executing_at", "completed_at", "closed_at",
			"rejected_by", "close_reason", "failure_reason", "version", "updated_at").
		Updates(proposal)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts proposals matching the filter
func (r *GormProposalRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&barter.ChainProposal{}),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filters, pagination and ordering
func (r *GormProposalRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, ProposalSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormProposalRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "expires_before":
			query = query.Where("expires_at < ?", value)
		}
	}
	return query
}

// Ensure GormProposalRepository implements barter.ProposalRepository
var _ barter.ProposalRepository = (*GormProposalRepository)(nil)
