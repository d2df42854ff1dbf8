package barter

import (
	"strings"
	"time"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/barterloop/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the lifecycle status of a barter item
type ItemStatus string

const (
	ItemStatusActive    ItemStatus = "ACTIVE"
	ItemStatusLocked    ItemStatus = "LOCKED"
	ItemStatusTraded    ItemStatus = "TRADED"
	ItemStatusWithdrawn ItemStatus = "WITHDRAWN"
)

// IsValid checks if the status is a valid ItemStatus
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusActive, ItemStatusLocked, ItemStatusTraded, ItemStatusWithdrawn:
		return true
	}
	return false
}

// String returns the string representation of ItemStatus
func (s ItemStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	switch s {
	case ItemStatusActive:
		return target == ItemStatusLocked || target == ItemStatusWithdrawn
	case ItemStatusLocked:
		return target == ItemStatusActive || target == ItemStatusTraded
	case ItemStatusTraded, ItemStatusWithdrawn:
		return false // Terminal states
	}
	return false
}

// ItemKind distinguishes what is being bartered. Scoring strategies
// dispatch on this tag rather than on subtypes.
type ItemKind string

const (
	ItemKindGoods   ItemKind = "GOODS"
	ItemKindService ItemKind = "SERVICE"
	ItemKindCash    ItemKind = "CASH"
)

// IsValid checks if the kind is a valid ItemKind
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindGoods, ItemKindService, ItemKindCash:
		return true
	}
	return false
}

// ItemCondition represents the physical condition of a goods item
type ItemCondition string

const (
	ConditionNew     ItemCondition = "NEW"
	ConditionLikeNew ItemCondition = "LIKE_NEW"
	ConditionGood    ItemCondition = "GOOD"
	ConditionFair    ItemCondition = "FAIR"
	ConditionPoor    ItemCondition = "POOR"
)

// conditionRank orders conditions from worst (0) to best (4)
var conditionRank = map[ItemCondition]int{
	ConditionPoor:    0,
	ConditionFair:    1,
	ConditionGood:    2,
	ConditionLikeNew: 3,
	ConditionNew:     4,
}

// Rank returns the ordinal rank of the condition, -1 if unknown
func (c ItemCondition) Rank() int {
	if r, ok := conditionRank[c]; ok {
		return r
	}
	return -1
}

// IsValid checks if the condition is known
func (c ItemCondition) IsValid() bool {
	return c.Rank() >= 0
}

// WantSpec describes what an item's owner wants in return
type WantSpec struct {
	Categories   []string        `json:"categories"`
	Keywords     []string        `json:"keywords"`
	MinValue     decimal.Decimal `json:"min_value"`
	MaxValue     decimal.Decimal `json:"max_value"`
	MinCondition ItemCondition   `json:"min_condition,omitempty"`
}

// WantsCategory returns true if the spec names the given category
// (case-insensitive)
func (w WantSpec) WantsCategory(category string) bool {
	for _, c := range w.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// HasPriceBand returns true if the spec constrains the value range
func (w WantSpec) HasPriceBand() bool {
	return w.MinValue.IsPositive() || w.MaxValue.IsPositive()
}

// InPriceBand returns true if the value falls inside the wanted band.
// An unset bound does not constrain.
func (w WantSpec) InPriceBand(value decimal.Decimal) bool {
	if w.MinValue.IsPositive() && value.LessThan(w.MinValue) {
		return false
	}
	if w.MaxValue.IsPositive() && value.GreaterThan(w.MaxValue) {
		return false
	}
	return true
}

// Item represents a barter-listed item. The listing service owns item
// content; this engine mutates only the status (LOCKED/TRADED) and the
// owner on execution.
type Item struct {
	shared.BaseAggregateRoot
	OwnerID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name           string          `gorm:"type:varchar(200);not null"`
	Category       string          `gorm:"type:varchar(100);not null;index"`
	Kind           ItemKind        `gorm:"type:varchar(20);not null;default:'GOODS'"`
	Condition      ItemCondition   `gorm:"type:varchar(20);not null;default:'GOOD'"`
	EstimatedValue decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BarterEligible bool            `gorm:"not null;default:true"`
	Wants          WantSpec        `gorm:"serializer:json"`
	Status         ItemStatus      `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	TradedAt       *time.Time
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "barter_items"
}

// NewItem creates a new barter item
func NewItem(ownerID uuid.UUID, name, category string, kind ItemKind, condition ItemCondition, estimatedValue valueobject.Money, wants WantSpec) (*Item, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Item name cannot be empty")
	}
	if category == "" {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Item category cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Unknown item kind")
	}
	if kind == ItemKindGoods && !condition.IsValid() {
		return nil, shared.NewDomainError("INVALID_CONDITION", "Unknown item condition")
	}
	if !estimatedValue.IsPositive() {
		return nil, shared.NewDomainError("INVALID_VALUE", "Estimated value must be positive")
	}

	item := &Item{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		Name:              name,
		Category:          category,
		Kind:              kind,
		Condition:         condition,
		EstimatedValue:    estimatedValue.Amount(),
		BarterEligible:    true,
		Wants:             wants,
		Status:            ItemStatusActive,
	}
	return item, nil
}

// Value returns the estimated value as a Money value object
func (i *Item) Value() valueobject.Money {
	return valueobject.NewMoneyUSD(i.EstimatedValue)
}

// IsAvailableForBarter returns true if the item can enter a new cycle
func (i *Item) IsAvailableForBarter() bool {
	return i.Status == ItemStatusActive && i.BarterEligible
}

// Lock transitions the item to LOCKED for a proposal
func (i *Item) Lock(proposalID uuid.UUID) error {
	if !i.Status.CanTransitionTo(ItemStatusLocked) {
		return shared.NewDomainError("INVALID_STATE",
			"Item cannot be locked in status "+i.Status.String())
	}
	i.Status = ItemStatusLocked
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	i.AddDomainEvent(NewItemLockedEvent(i.ID, i.OwnerID, proposalID))
	return nil
}

// Unlock returns a locked item to ACTIVE
func (i *Item) Unlock() error {
	if !i.Status.CanTransitionTo(ItemStatusActive) {
		return shared.NewDomainError("INVALID_STATE",
			"Item cannot be unlocked in status "+i.Status.String())
	}
	i.Status = ItemStatusActive
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	i.AddDomainEvent(NewItemUnlockedEvent(i.ID, i.OwnerID))
	return nil
}

// MarkTraded transfers ownership and marks the item TRADED. Only valid
// from LOCKED: execution always runs against locked items.
func (i *Item) MarkTraded(newOwnerID uuid.UUID) error {
	if newOwnerID == uuid.Nil {
		return shared.NewDomainError("INVALID_OWNER", "New owner ID cannot be empty")
	}
	if newOwnerID == i.OwnerID {
		return shared.NewDomainError("INVALID_OWNER", "Item cannot be traded to its current owner")
	}
	if !i.Status.CanTransitionTo(ItemStatusTraded) {
		return shared.NewDomainError("INVALID_STATE",
			"Item cannot be traded in status "+i.Status.String())
	}
	now := time.Now()
	previousOwner := i.OwnerID
	i.OwnerID = newOwnerID
	i.Status = ItemStatusTraded
	i.TradedAt = &now
	i.UpdatedAt = now
	i.IncrementVersion()
	i.AddDomainEvent(NewItemTradedEvent(i.ID, previousOwner, newOwnerID))
	return nil
}

// RevertTrade undoes a MarkTraded during execution rollback, restoring
// the previous owner and the LOCKED status.
func (i *Item) RevertTrade(previousOwnerID uuid.UUID) error {
	if i.Status != ItemStatusTraded {
		return shared.NewDomainError("INVALID_STATE",
			"Only traded items can be reverted")
	}
	i.OwnerID = previousOwnerID
	i.Status = ItemStatusLocked
	i.TradedAt = nil
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	return nil
}

// Withdraw removes the item from the barter pool
func (i *Item) Withdraw() error {
	if !i.Status.CanTransitionTo(ItemStatusWithdrawn) {
		return shared.NewDomainError("INVALID_STATE",
			"Item cannot be withdrawn in status "+i.Status.String())
	}
	i.Status = ItemStatusWithdrawn
	i.UpdatedAt = time.Now()
	i.IncrementVersion()
	return nil
}
