package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/barterloop/backend/internal/domain/barter"
)

// MarketplaceStats answers the point-in-time pool health queries the
// periodic metrics collector polls. Counts go straight to the database
// so the gauges reflect committed state, not in-process caches.
type MarketplaceStats struct {
	db *gorm.DB
}

// NewMarketplaceStats creates a new MarketplaceStats
func NewMarketplaceStats(db *gorm.DB) *MarketplaceStats {
	return &MarketplaceStats{db: db}
}

// GetOpenPoolSize returns the number of ACTIVE, barter-eligible items
func (s *MarketplaceStats) GetOpenPoolSize(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&barter.Item{}).
		Where("status = ? AND barter_eligible = ?", barter.ItemStatusActive, true).
		Count(&count).Error
	return count, err
}

// GetLockedItemCount returns the number of items currently LOCKED
func (s *MarketplaceStats) GetLockedItemCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&barter.Item{}).
		Where("status = ?", barter.ItemStatusLocked).
		Count(&count).Error
	return count, err
}

// GetActiveProposalCount returns the number of non-terminal proposals
func (s *MarketplaceStats) GetActiveProposalCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&barter.ChainProposal{}).
		Where("status IN ?", []barter.ProposalStatus{
			barter.ProposalStatusPendingAcceptance,
			barter.ProposalStatusExecuting,
		}).
		Count(&count).Error
	return count, err
}
