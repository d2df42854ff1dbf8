package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/barterloop/backend/internal/domain/shared/valueobject"
)

// The sqlite round-trip tests prove behavior; these prove the exact
// SQL shape of the optimistic-lock guard against the postgres dialect.

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func versionedItem(t *testing.T) *barter.Item {
	t.Helper()
	item, err := barter.NewItem(uuid.New(), "Record player", "music",
		barter.ItemKindGoods, barter.ConditionGood,
		valueobject.NewMoneyUSDFromFloat(120), barter.WantSpec{Categories: []string{"books"}})
	require.NoError(t, err)
	item.IncrementVersion() // simulate a loaded aggregate being mutated
	return item
}

func TestSaveWithVersion_GuardsOnPreviousVersion(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormItemRepository(db)

	item := versionedItem(t)

	mock.ExpectExec(`UPDATE "barter_items" SET .+ WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveWithVersion(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveWithVersion_StaleRowIsConcurrencyConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormItemRepository(db)

	item := versionedItem(t)

	mock.ExpectExec(`UPDATE "barter_items" SET .+ WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithVersion(context.Background(), item)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalSaveWithVersion_StaleRowIsConcurrencyConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormProposalRepository(db)

	proposal := &barter.ChainProposal{}
	proposal.ID = uuid.New()
	proposal.Version = 2
	proposal.Status = barter.ProposalStatusPendingAcceptance

	mock.ExpectExec(`UPDATE "chain_proposals" SET .+ WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithVersion(context.Background(), proposal)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
