package barter

import (
	"context"

	"github.com/google/uuid"
)

// External collaborators consumed by the engine. Item/listing CRUD,
// identity, the wallet ledger and notifications live outside this
// service and are reached through these narrow interfaces.

// ItemCatalog is the listing service's read/write surface for items
type ItemCatalog interface {
	// GetActiveBarterItems returns all ACTIVE, barter-eligible items
	GetActiveBarterItems(ctx context.Context) ([]*Item, error)
	// GetItem returns the current state of one item
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)
	// SetItemStatus transitions an item's status, guarded by the
	// expected aggregate version (optimistic concurrency)
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status ItemStatus, expectedVersion int) error
}

// User is the minimal participant identity the engine needs
type User struct {
	ID          uuid.UUID
	DisplayName string
}

// UserDirectory resolves participant identities
type UserDirectory interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
}

// LedgerPoster records ownership transfers and cash differentials in
// the external wallet/ledger service. Invoked only after a fully
// successful execution.
type LedgerPoster interface {
	PostTransfer(ctx context.Context, entries []LedgerEntry) error
}

// NotificationEvent identifies what happened for a user notification
type NotificationEvent string

const (
	NotifyProposalCreated  NotificationEvent = "PROPOSAL_CREATED"
	NotifyProposalAccepted NotificationEvent = "PROPOSAL_ACCEPTED"
	NotifyProposalRejected NotificationEvent = "PROPOSAL_REJECTED"
	NotifyProposalExpired  NotificationEvent = "PROPOSAL_EXPIRED"
	NotifyProposalExecuted NotificationEvent = "PROPOSAL_EXECUTED"
	NotifyProposalFailed   NotificationEvent = "PROPOSAL_FAILED"
)

// Notifier delivers proposal lifecycle notifications to users
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event NotificationEvent, proposalID uuid.UUID) error
}
