package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/barterloop/backend/internal/domain/barter"
)

// LedgerRecord is the persisted form of a barter.LedgerEntry. The
// domain type carries no identity of its own; the record adds one so
// entries are individually addressable for reconciliation.
type LedgerRecord struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProposalID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID           uuid.UUID       `gorm:"type:uuid;not null"`
	FromUserID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ToUserID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemValue        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CashDifferential decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TransferredAt    time.Time       `gorm:"not null"`
	CreatedAt        time.Time
}

// TableName returns the table name for GORM
func (LedgerRecord) TableName() string {
	return "barter_ledger_entries"
}

// GormLedgerRepository implements barter.LedgerPoster against the local
// database. In a deployment with a separate wallet service this would
// be replaced by its client; the write contract is the same.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// PostTransfer records all entries of one executed cycle atomically
func (r *GormLedgerRepository) PostTransfer(ctx context.Context, entries []barter.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	records := make([]LedgerRecord, len(entries))
	for i, e := range entries {
		records[i] = LedgerRecord{
			ID:               uuid.New(),
			ProposalID:       e.ProposalID,
			ItemID:           e.ItemID,
			FromUserID:       e.FromUserID,
			ToUserID:         e.ToUserID,
			ItemValue:        e.ItemValue,
			CashDifferential: e.CashDifferential,
			TransferredAt:    e.TransferredAt,
		}
	}

	return r.db.WithContext(ctx).Create(&records).Error
}

// FindByProposal returns the posted entries of one proposal, in
// transfer order
func (r *GormLedgerRepository) FindByProposal(ctx context.Context, proposalID uuid.UUID) ([]LedgerRecord, error) {
	var records []LedgerRecord
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Ensure GormLedgerRepository implements barter.LedgerPoster
var _ barter.LedgerPoster = (*GormLedgerRepository)(nil)
