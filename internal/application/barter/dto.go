package barter

import (
	"time"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscoverRequest bounds one discovery run
type DiscoverRequest struct {
	SeedItemID  uuid.UUID `json:"seed_item_id" binding:"required"`
	MaxLength   int       `json:"max_length" binding:"omitempty,min=2,max=8"`
	MinScore    float64   `json:"min_score" binding:"omitempty,gt=0,lte=1"`
	MaxResults  int       `json:"max_results" binding:"omitempty,min=1,max=20"`
	TimeoutMs   int       `json:"timeout_ms" binding:"omitempty,min=50,max=30000"`
	TopKPerNode int       `json:"top_k_per_node" binding:"omitempty,min=1,max=10"`
}

// BatchDiscoverRequest runs discovery across several seeds in parallel
type BatchDiscoverRequest struct {
	SeedItemIDs []uuid.UUID `json:"seed_item_ids" binding:"required,min=1,max=50"`
	MaxLength   int         `json:"max_length" binding:"omitempty,min=2,max=8"`
	MinScore    float64     `json:"min_score" binding:"omitempty,gt=0,lte=1"`
	MaxResults  int         `json:"max_results" binding:"omitempty,min=1,max=20"`
	TimeoutMs   int         `json:"timeout_ms" binding:"omitempty,min=50,max=60000"`
}

// CandidateEdgeResponse is one leg of a discovered cycle
type CandidateEdgeResponse struct {
	FromItemID  uuid.UUID       `json:"from_item_id"`
	ToItemID    uuid.UUID       `json:"to_item_id"`
	FromOwnerID uuid.UUID       `json:"from_owner_id"`
	ToOwnerID   uuid.UUID       `json:"to_owner_id"`
	FromValue   decimal.Decimal `json:"from_value"`
	ToValue     decimal.Decimal `json:"to_value"`
	Score       float64         `json:"score"`
}

// CandidateResponse is a discovered cycle candidate
type CandidateResponse struct {
	ID                uuid.UUID                  `json:"id"`
	Length            int                        `json:"length"`
	Edges             []CandidateEdgeResponse    `json:"edges"`
	Participants      []uuid.UUID                `json:"participants"`
	AggregateScore    float64                    `json:"aggregate_score"`
	CashDifferential  decimal.Decimal            `json:"cash_differential"`
	PerParticipantNet map[string]decimal.Decimal `json:"per_participant_net"`
	ExpiresAt         time.Time                  `json:"expires_at"`
}

// DiscoverResponse carries the ranked candidates of one run. Partial is
// set when the run hit its deadline before exhausting the search space.
type DiscoverResponse struct {
	SeedItemID uuid.UUID           `json:"seed_item_id"`
	Candidates []CandidateResponse `json:"candidates"`
	Partial    bool                `json:"partial"`
}

// ProposalEdgeRequest names one give/receive leg of a proposed cycle
type ProposalEdgeRequest struct {
	FromItemID uuid.UUID `json:"from_item_id" binding:"required"`
	ToItemID   uuid.UUID `json:"to_item_id" binding:"required"`
}

// CreateProposalRequest promotes a discovered cycle into a binding
// proposal. The edge list is re-validated against live item state; the
// server recomputes owners, values and balances rather than trusting
// the client's copy.
type CreateProposalRequest struct {
	Edges      []ProposalEdgeRequest `json:"edges" binding:"required,min=2,max=8,dive"`
	TTLMinutes int                   `json:"ttl_minutes" binding:"omitempty,min=1,max=10080"`
}

// RejectProposalRequest carries the optional rejection reason. The
// rejecting participant is the authenticated caller.
type RejectProposalRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// CancelProposalRequest carries the cancellation reason
type CancelProposalRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ParticipantResponse is one user's slice of a proposal
type ParticipantResponse struct {
	UserID      uuid.UUID       `json:"user_id"`
	GivesItemID uuid.UUID       `json:"gives_item_id"`
	GetsItemID  uuid.UUID       `json:"gets_item_id"`
	NetBalance  decimal.Decimal `json:"net_balance"`
	Accepted    bool            `json:"accepted"`
	AcceptedAt  *time.Time      `json:"accepted_at,omitempty"`
}

// ProposalResponse is the full proposal view
type ProposalResponse struct {
	ID               uuid.UUID             `json:"id"`
	Status           string                `json:"status"`
	Length           int                   `json:"length"`
	Participants     []ParticipantResponse `json:"participants"`
	AcceptedCount    int                   `json:"accepted_count"`
	AggregateScore   float64               `json:"aggregate_score"`
	CashDifferential decimal.Decimal       `json:"cash_differential"`
	ExpiresAt        time.Time             `json:"expires_at"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	RejectedBy       *uuid.UUID            `json:"rejected_by,omitempty"`
	CloseReason      string                `json:"close_reason,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
}

// ToCandidateResponse converts a domain candidate
func ToCandidateResponse(c *barter.CycleCandidate) CandidateResponse {
	edges := make([]CandidateEdgeResponse, len(c.Edges))
	for i, e := range c.Edges {
		edges[i] = CandidateEdgeResponse{
			FromItemID:  e.FromItemID,
			ToItemID:    e.ToItemID,
			FromOwnerID: e.FromOwnerID,
			ToOwnerID:   e.ToOwnerID,
			FromValue:   e.FromValue,
			ToValue:     e.ToValue,
			Score:       e.Score,
		}
	}
	nets := make(map[string]decimal.Decimal, len(c.PerParticipantNet))
	for userID, net := range c.PerParticipantNet {
		nets[userID.String()] = net
	}
	return CandidateResponse{
		ID:                c.ID,
		Length:            c.Length(),
		Edges:             edges,
		Participants:      c.Participants,
		AggregateScore:    c.AggregateScore,
		CashDifferential:  c.CashDifferential,
		PerParticipantNet: nets,
		ExpiresAt:         c.ExpiresAt,
	}
}

// ToCandidateResponses converts a slice of domain candidates
func ToCandidateResponses(candidates []*barter.CycleCandidate) []CandidateResponse {
	responses := make([]CandidateResponse, len(candidates))
	for i, c := range candidates {
		responses[i] = ToCandidateResponse(c)
	}
	return responses
}

// ToProposalResponse converts a domain proposal
func ToProposalResponse(p *barter.ChainProposal) ProposalResponse {
	participants := make([]ParticipantResponse, len(p.Participants))
	for i, participant := range p.Participants {
		participants[i] = ParticipantResponse{
			UserID:      participant.UserID,
			GivesItemID: participant.GivesItemID,
			GetsItemID:  participant.GetsItemID,
			NetBalance:  participant.NetBalance,
			Accepted:    participant.Accepted,
			AcceptedAt:  participant.AcceptedAt,
		}
	}
	return ProposalResponse{
		ID:               p.ID,
		Status:           p.Status.String(),
		Length:           p.Candidate.Length(),
		Participants:     participants,
		AcceptedCount:    p.AcceptedCount(),
		AggregateScore:   p.Candidate.AggregateScore,
		CashDifferential: p.Candidate.CashDifferential,
		ExpiresAt:        p.ExpiresAt,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
		RejectedBy:       p.RejectedBy,
		CloseReason:      p.CloseReason,
		FailureReason:    p.FailureReason,
	}
}
