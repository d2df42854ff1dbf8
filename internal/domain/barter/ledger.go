package barter

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry records one ownership transfer of an executed cycle and
// the net cash differential owed by the giver. Entries are owned by
// the external wallet/ledger collaborator; the engine only emits them.
type LedgerEntry struct {
	ProposalID       uuid.UUID       `json:"proposal_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	FromUserID       uuid.UUID       `json:"from_user_id"`
	ToUserID         uuid.UUID       `json:"to_user_id"`
	ItemValue        decimal.Decimal `json:"item_value"`
	CashDifferential decimal.Decimal `json:"cash_differential"` // net owed by ToUserID, may be negative
	TransferredAt    time.Time       `json:"transferred_at"`
}
