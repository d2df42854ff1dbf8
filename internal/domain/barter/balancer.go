package barter

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/barterloop/backend/internal/domain/shared/valueobject"
)

// DefaultMaxImbalanceRatio is the default ceiling for the total cash
// differential relative to the average item value in the cycle.
// Inferred from observed product behavior; a default, not a contract.
const DefaultMaxImbalanceRatio = 0.30

// Differential is the value-imbalance accounting of one cycle
type Differential struct {
	// PerParticipantNet is value(received) - value(given) per user.
	// Positive means the participant came out ahead and owes the
	// difference in cash; the nets of a cycle always sum to zero.
	PerParticipantNet map[uuid.UUID]valueobject.Money

	// TotalDifferential is the sum of the positive nets: the total
	// cash that has to change hands to make the cycle fair. Always >= 0.
	TotalDifferential valueobject.Money

	// AverageItemValue is the mean estimated value of the cycle's items
	AverageItemValue valueobject.Money
}

// NetAmounts flattens the per-participant nets to raw decimal amounts
// for candidate snapshots and ledger entries
func (d Differential) NetAmounts() map[uuid.UUID]decimal.Decimal {
	nets := make(map[uuid.UUID]decimal.Decimal, len(d.PerParticipantNet))
	for userID, net := range d.PerParticipantNet {
		nets[userID] = net.Amount()
	}
	return nets
}

// ValueBalancer computes cash differentials and filters value-lopsided
// cycles before they reach the caller.
type ValueBalancer struct {
	maxImbalanceRatio decimal.Decimal
}

// ValueBalancerOption is a functional option for configuring ValueBalancer
type ValueBalancerOption func(*ValueBalancer)

// WithMaxImbalanceRatio overrides the default imbalance ceiling
func WithMaxImbalanceRatio(ratio float64) ValueBalancerOption {
	return func(b *ValueBalancer) {
		if ratio > 0 {
			b.maxImbalanceRatio = decimal.NewFromFloat(ratio)
		}
	}
}

// NewValueBalancer creates a new ValueBalancer
func NewValueBalancer(opts ...ValueBalancerOption) *ValueBalancer {
	b := &ValueBalancer{
		maxImbalanceRatio: decimal.NewFromFloat(DefaultMaxImbalanceRatio),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxImbalanceRatio returns the configured ceiling
func (b *ValueBalancer) MaxImbalanceRatio() decimal.Decimal {
	return b.maxImbalanceRatio
}

// ComputeDifferential aggregates the signed value gaps of a cycle into
// net per-participant balances. For each edge the owner of the source
// item gives it away and receives the target item.
func (b *ValueBalancer) ComputeDifferential(edges []CandidateEdge) Differential {
	nets := make(map[uuid.UUID]valueobject.Money, len(edges))
	totalValue := valueobject.ZeroUSD()
	for _, e := range edges {
		received := valueobject.NewMoneyUSD(e.ToValue)
		given := valueobject.NewMoneyUSD(e.FromValue)
		nets[e.FromOwnerID] = nets[e.FromOwnerID].Add(received.Sub(given))
		totalValue = totalValue.Add(given)
	}

	total := valueobject.ZeroUSD()
	for _, net := range nets {
		if net.IsPositive() {
			total = total.Add(net)
		}
	}

	return Differential{
		PerParticipantNet: nets,
		TotalDifferential: total,
		AverageItemValue:  totalValue.MeanOver(len(edges)),
	}
}

// Check returns ErrImbalance when the total differential reaches the
// ceiling (avg item value * max ratio). Used as an internal filter
// during discovery, never surfaced to callers as a hard failure.
func (b *ValueBalancer) Check(d Differential) error {
	limit := d.AverageItemValue.Multiply(b.maxImbalanceRatio)
	if d.TotalDifferential.GreaterThanOrEqual(limit) {
		return shared.ErrImbalance
	}
	return nil
}
