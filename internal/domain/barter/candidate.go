package barter

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CandidateEdge is one give/receive leg of a candidate cycle: the
// owner of FromItem receives ToItem.
type CandidateEdge struct {
	FromItemID  uuid.UUID       `json:"from_item_id"`
	ToItemID    uuid.UUID       `json:"to_item_id"`
	FromOwnerID uuid.UUID       `json:"from_owner_id"`
	ToOwnerID   uuid.UUID       `json:"to_owner_id"`
	FromValue   decimal.Decimal `json:"from_value"`
	ToValue     decimal.Decimal `json:"to_value"`
	Score       float64         `json:"score"`
}

// CycleCandidate is a closed exchange walk discovered in the
// compatibility graph. Candidates are ephemeral: computed per request,
// never persisted, and only frozen into a ChainProposal on promotion.
type CycleCandidate struct {
	ID                uuid.UUID                       `json:"id"`
	Edges             []CandidateEdge                 `json:"edges"`
	Participants      []uuid.UUID                     `json:"participants"`
	AggregateScore    float64                         `json:"aggregate_score"`
	CashDifferential  decimal.Decimal                 `json:"cash_differential"`
	PerParticipantNet map[uuid.UUID]decimal.Decimal   `json:"per_participant_net"`
	ExpiresAt         time.Time                       `json:"expires_at"`
}

// Length returns the cycle length (number of edges)
func (c *CycleCandidate) Length() int {
	return len(c.Edges)
}

// ItemIDs returns the item ids along the cycle in edge order
func (c *CycleCandidate) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Edges))
	for i, e := range c.Edges {
		ids[i] = e.FromItemID
	}
	return ids
}

// CanonicalKey identifies a cycle independent of rotation: the same
// edge set discovered from any seed produces the same key.
func (c *CycleCandidate) CanonicalKey() string {
	pairs := make([]string, len(c.Edges))
	for i, e := range c.Edges {
		pairs[i] = e.FromItemID.String() + ">" + e.ToItemID.String()
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// ContainsItem returns true if the cycle references the given item
func (c *CycleCandidate) ContainsItem(itemID uuid.UUID) bool {
	for _, e := range c.Edges {
		if e.FromItemID == itemID {
			return true
		}
	}
	return false
}

// ReceiverOf returns the user who receives the given item in this
// cycle: the owner of the edge whose target is the item.
func (c *CycleCandidate) ReceiverOf(itemID uuid.UUID) (uuid.UUID, bool) {
	for _, e := range c.Edges {
		if e.ToItemID == itemID {
			return e.FromOwnerID, true
		}
	}
	return uuid.Nil, false
}
