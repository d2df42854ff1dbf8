package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
)

// GormItemRepository implements barter.ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormItemRepository) WithTx(tx *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: tx}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*barter.Item, error) {
	var item barter.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// FindActiveBarterEligible returns the open pool: ACTIVE items whose
// owners opted into matching. Ordered by id so graph construction sees
// a stable pool regardless of query plan.
func (r *GormItemRepository) FindActiveBarterEligible(ctx context.Context) ([]*barter.Item, error) {
	var items []*barter.Item
	if err := r.db.WithContext(ctx).
		Where("status = ? AND barter_eligible = ?", barter.ItemStatusActive, true).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByOwner finds all items listed by the given owner
func (r *GormItemRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]*barter.Item, error) {
	var items []*barter.Item
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&barter.Item{}).Where("owner_id = ?", ownerID),
		filter,
	)
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save creates or updates an item
func (r *GormItemRepository) Save(ctx context.Context, item *barter.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// SaveWithVersion saves with optimistic locking: the update only lands
// if the stored row still carries the aggregate's pre-increment version
func (r *GormItemRepository) SaveWithVersion(ctx context.Context, item *barter.Item) error {
	result := r.db.WithContext(ctx).
		Model(&barter.Item{}).
		Where("id = ? AND version = ?", item.ID, item.Version-1).
		Select("owner_id", "name", "category", "kind", "condition", "estimated_value",
			"barter_eligible", "wants", "status", "traded_at", "version", "updated_at").
		Updates(item)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GetActiveBarterItems returns the open matching pool. The engine and
// the listing service share one store in this deployment, so the
// catalog surface is served by the same table the repository owns.
func (r *GormItemRepository) GetActiveBarterItems(ctx context.Context) ([]*barter.Item, error) {
	return r.FindActiveBarterEligible(ctx)
}

// GetItem returns the current state of one item
func (r *GormItemRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*barter.Item, error) {
	return r.FindByID(ctx, itemID)
}

// SetItemStatus transitions an item's status guarded by the expected
// aggregate version: the update only lands if the stored row still
// carries expectedVersion, and bumps the version on success.
func (r *GormItemRepository) SetItemStatus(ctx context.Context, itemID uuid.UUID, status barter.ItemStatus, expectedVersion int) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput
	}

	updates := map[string]interface{}{
		"status":     status,
		"version":    expectedVersion + 1,
		"updated_at": time.Now(),
	}
	if status == barter.ItemStatusTraded {
		updates["traded_at"] = time.Now()
	}

	result := r.db.WithContext(ctx).
		Model(&barter.Item{}).
		Where("id = ? AND version = ?", itemID, expectedVersion).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Count counts items matching the filter
func (r *GormItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&barter.Item{}),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies search, filters, pagination and ordering
func (r *GormItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, ItemSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormItemRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		// LOWER+LIKE instead of ILIKE so the query also runs on the
		// sqlite test database
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(category) LIKE ?",
			searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "category":
			query = query.Where("category = ?", value)
		case "kind":
			query = query.Where("kind = ?", value)
		case "owner_id":
			query = query.Where("owner_id = ?", value)
		case "barter_eligible":
			query = query.Where("barter_eligible = ?", value)
		}
	}

	return query
}

// Ensure GormItemRepository implements both the repository and the
// catalog port the discovery service consumes
var (
	_ barter.ItemRepository = (*GormItemRepository)(nil)
	_ barter.ItemCatalog    = (*GormItemRepository)(nil)
)
