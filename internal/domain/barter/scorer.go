package barter

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ScoreWeights controls the relative weight of each edge-score component.
// Weights should sum to 1; NewMatchScorer normalizes them if they don't.
type ScoreWeights struct {
	Category  float64
	Price     float64
	Condition float64
	Keyword   float64
}

// DefaultScoreWeights returns the default component weights
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Category:  0.40,
		Price:     0.30,
		Condition: 0.15,
		Keyword:   0.15,
	}
}

// priceDecay controls how fast the price-proximity score falls off with
// the relative value gap. exp(-3*gap) gives ~0.74 at a 10% gap and
// ~0.22 at a 50% gap.
const priceDecay = 3.0

// MatchScorer scores "offer satisfies want" edges and whole cycles.
// Scoring is pure and deterministic for identical inputs.
type MatchScorer struct {
	weights    ScoreWeights
	strategies map[ItemKind]scoringStrategy
}

// MatchScorerOption is a functional option for configuring MatchScorer
type MatchScorerOption func(*MatchScorer)

// WithScoreWeights overrides the default component weights
func WithScoreWeights(w ScoreWeights) MatchScorerOption {
	return func(s *MatchScorer) {
		s.weights = w
	}
}

// NewMatchScorer creates a new MatchScorer
func NewMatchScorer(opts ...MatchScorerOption) *MatchScorer {
	s := &MatchScorer{
		weights: DefaultScoreWeights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	sum := s.weights.Category + s.weights.Price + s.weights.Condition + s.weights.Keyword
	if sum > 0 && math.Abs(sum-1.0) > 1e-9 {
		s.weights.Category /= sum
		s.weights.Price /= sum
		s.weights.Condition /= sum
		s.weights.Keyword /= sum
	}
	s.strategies = map[ItemKind]scoringStrategy{
		ItemKindGoods:   goodsScoring{},
		ItemKindService: serviceScoring{},
		ItemKindCash:    cashScoring{},
	}
	return s
}

// ScoreEdge scores how well the offered item satisfies the wanter's
// stated wants. Returns a value in [0,1]. The strategy is selected by
// the offered item's kind.
func (s *MatchScorer) ScoreEdge(wanter, offer *Item) float64 {
	strategy, ok := s.strategies[offer.Kind]
	if !ok {
		strategy = goodsScoring{}
	}
	return clamp01(strategy.score(wanter, offer, s.weights))
}

// ScoreCycle returns the aggregate score of a cycle as the arithmetic
// mean of its edge scores: one weak edge drags the whole cycle down
// instead of being hidden by strong ones.
func (s *MatchScorer) ScoreCycle(edgeScores []float64) float64 {
	if len(edgeScores) == 0 {
		return 0
	}
	var sum float64
	for _, es := range edgeScores {
		sum += es
	}
	return clamp01(sum / float64(len(edgeScores)))
}

// scoringStrategy computes an edge score for one offered-item kind
type scoringStrategy interface {
	score(wanter, offer *Item, w ScoreWeights) float64
}

// goodsScoring is the full four-component blend
type goodsScoring struct{}

func (goodsScoring) score(wanter, offer *Item, w ScoreWeights) float64 {
	return w.Category*categoryScore(wanter.Wants, offer) +
		w.Price*priceScore(wanter, offer) +
		w.Condition*conditionScore(wanter.Wants, offer) +
		w.Keyword*keywordScore(wanter.Wants, offer)
}

// serviceScoring ignores physical condition; its weight is folded into
// category and keyword relevance
type serviceScoring struct{}

func (serviceScoring) score(wanter, offer *Item, w ScoreWeights) float64 {
	category := w.Category + w.Condition/2
	keyword := w.Keyword + w.Condition/2
	return category*categoryScore(wanter.Wants, offer) +
		w.Price*priceScore(wanter, offer) +
		keyword*keywordScore(wanter.Wants, offer)
}

// cashScoring scores cash offers purely on value proximity, with the
// category component satisfied only when the wanter accepts cash
type cashScoring struct{}

func (cashScoring) score(wanter, offer *Item, w ScoreWeights) float64 {
	categoryWeight := w.Category + w.Condition + w.Keyword
	var category float64
	if wanter.Wants.WantsCategory("cash") || wanter.Wants.WantsCategory(offer.Category) {
		category = 1.0
	}
	return categoryWeight*category + w.Price*priceScore(wanter, offer)
}

// categoryScore is binary on an exact category match with fuzzy credit
// when a wanted category and the offered category overlap textually
func categoryScore(want WantSpec, offer *Item) float64 {
	if want.WantsCategory(offer.Category) {
		return 1.0
	}
	offered := strings.ToLower(offer.Category)
	for _, c := range want.Categories {
		wanted := strings.ToLower(c)
		if wanted == "" {
			continue
		}
		if strings.Contains(offered, wanted) || strings.Contains(wanted, offered) {
			return 0.6
		}
	}
	return 0
}

// priceScore decays exponentially with the relative gap between the
// wanter's item value and the offered item value. Offers outside an
// explicit wanted price band are heavily discounted, not excluded.
func priceScore(wanter, offer *Item) float64 {
	gap := relativeValueGap(wanter.EstimatedValue, offer.EstimatedValue)
	score := math.Exp(-priceDecay * gap)
	if wanter.Wants.HasPriceBand() && !wanter.Wants.InPriceBand(offer.EstimatedValue) {
		score *= 0.25
	}
	return score
}

// relativeValueGap returns |a-b| / max(a,b) in [0,1]
func relativeValueGap(a, b decimal.Decimal) float64 {
	max := a
	if b.GreaterThan(a) {
		max = b
	}
	if !max.IsPositive() {
		return 0
	}
	gap, _ := a.Sub(b).Abs().Div(max).Float64()
	return gap
}

// conditionScore rates the offered condition against the wanted minimum.
// Without a stated minimum the absolute condition sets the score, so a
// NEW offer still outscores a POOR one.
func conditionScore(want WantSpec, offer *Item) float64 {
	rank := offer.Condition.Rank()
	if rank < 0 {
		return 0.5
	}
	if want.MinCondition == "" {
		return 0.5 + float64(rank)*0.125
	}
	minRank := want.MinCondition.Rank()
	switch {
	case rank >= minRank:
		return 1.0
	case rank == minRank-1:
		return 0.5
	default:
		return 0.2
	}
}

// keywordScore is the Jaccard overlap between the wanted keywords and
// the tokens of the offered item's name and category
func keywordScore(want WantSpec, offer *Item) float64 {
	if len(want.Keywords) == 0 {
		return 0.5 // no stated keywords: neutral, not zero
	}
	offered := tokenize(offer.Name + " " + offer.Category)
	if len(offered) == 0 {
		return 0
	}
	wanted := make(map[string]struct{}, len(want.Keywords))
	for _, k := range want.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			wanted[k] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return 0.5
	}
	var intersection int
	for tok := range offered {
		if _, ok := wanted[tok]; ok {
			intersection++
		}
	}
	union := len(wanted) + len(offered) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokenize lower-cases and splits on non-alphanumeric runes
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(tok) > 1 {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
