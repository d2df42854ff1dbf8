package barter

import (
	"context"
	"time"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Proposal lifecycle defaults
const (
	DefaultProposalTTL = 48 * time.Hour
	// Lock TTL outlives the proposal TTL so the expiry sweep, not lock
	// decay, is what frees items of an abandoned proposal.
	DefaultLockTTL = 72 * time.Hour
)

// ProposalService manages the chain proposal lifecycle from promotion
// of a candidate through acceptance to execution or closure.
type ProposalService struct {
	items       barter.ItemRepository
	proposals   barter.ProposalRepository
	locks       barter.LockTable
	scorer      *barter.MatchScorer
	balancer    *barter.ValueBalancer
	executor    *ExecutionService
	publisher   shared.EventPublisher
	logger      *zap.Logger
	proposalTTL time.Duration
	lockTTL     time.Duration
}

// ProposalServiceOption is a functional option for configuring ProposalService
type ProposalServiceOption func(*ProposalService)

// WithProposalTTL overrides the default acceptance window
func WithProposalTTL(ttl time.Duration) ProposalServiceOption {
	return func(s *ProposalService) {
		if ttl > 0 {
			s.proposalTTL = ttl
		}
	}
}

// WithLockTTL overrides the default item lock lifetime
func WithLockTTL(ttl time.Duration) ProposalServiceOption {
	return func(s *ProposalService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// NewProposalService creates a new ProposalService
func NewProposalService(
	items barter.ItemRepository,
	proposals barter.ProposalRepository,
	locks barter.LockTable,
	scorer *barter.MatchScorer,
	balancer *barter.ValueBalancer,
	executor *ExecutionService,
	logger *zap.Logger,
	opts ...ProposalServiceOption,
) *ProposalService {
	s := &ProposalService{
		items:       items,
		proposals:   proposals,
		locks:       locks,
		scorer:      scorer,
		balancer:    balancer,
		executor:    executor,
		logger:      logger,
		proposalTTL: DefaultProposalTTL,
		lockTTL:     DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *ProposalService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Create promotes a cycle into a binding proposal. The edge list is
// re-validated against live item state (the discovery snapshot may have
// drifted), the balance gate re-applied, and every item locked
// all-or-nothing before the proposal opens for acceptance.
func (s *ProposalService) Create(ctx context.Context, req CreateProposalRequest) (*ProposalResponse, error) {
	candidate, err := s.rebuildCandidate(ctx, req.Edges)
	if err != nil {
		return nil, err
	}

	ttl := s.proposalTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}

	proposal, err := barter.NewChainProposal(*candidate, ttl)
	if err != nil {
		return nil, err
	}

	tokens, err := s.locks.AcquireAll(proposal.ItemIDs(), proposal.ID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if err := proposal.Activate(tokens); err != nil {
		s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
		return nil, err
	}

	if err := s.lockItems(ctx, proposal); err != nil {
		s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
		return nil, err
	}

	if err := s.proposals.Save(ctx, proposal); err != nil {
		s.unlockItems(ctx, proposal)
		s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
		return nil, err
	}

	s.publishEvents(ctx, proposal)
	s.logger.Info("proposal created",
		zap.String("proposal_id", proposal.ID.String()),
		zap.Int("participants", len(proposal.Participants)),
		zap.Time("expires_at", proposal.ExpiresAt),
	)

	response := ToProposalResponse(proposal)
	return &response, nil
}

// rebuildCandidate loads the named items and reconstructs the cycle
// from live state: current owners, values and scores, not the client's
// snapshot.
func (s *ProposalService) rebuildCandidate(ctx context.Context, edges []ProposalEdgeRequest) (*barter.CycleCandidate, error) {
	if len(edges) < barter.MinCycleLength {
		return nil, shared.NewDomainError("INVALID_INPUT",
			"A proposal requires at least two edges")
	}

	next := make(map[uuid.UUID]uuid.UUID, len(edges))
	items := make(map[uuid.UUID]*barter.Item, len(edges))
	for _, e := range edges {
		if _, dup := next[e.FromItemID]; dup {
			return nil, shared.NewDomainError("INVALID_INPUT",
				"An item appears as the source of more than one edge")
		}
		next[e.FromItemID] = e.ToItemID

		item, err := s.items.FindByID(ctx, e.FromItemID)
		if err != nil {
			return nil, err
		}
		if !item.IsAvailableForBarter() || s.locks.IsLocked(item.ID) {
			return nil, shared.NewDomainError("ITEM_UNAVAILABLE",
				"Item "+item.ID.String()+" is no longer available for barter")
		}
		items[item.ID] = item
	}

	// The edges must form one closed walk visiting each item exactly once
	start := edges[0].FromItemID
	visited := map[uuid.UUID]struct{}{start: {}}
	current := start
	for i := 0; i < len(edges); i++ {
		to, ok := next[current]
		if !ok {
			return nil, shared.NewDomainError("INVALID_INPUT",
				"Edges do not form a closed cycle")
		}
		if _, known := items[to]; !known {
			return nil, shared.NewDomainError("INVALID_INPUT",
				"Edge target "+to.String()+" is not part of the cycle")
		}
		if i < len(edges)-1 {
			if _, dup := visited[to]; dup {
				return nil, shared.NewDomainError("INVALID_INPUT",
					"Edges do not form a single cycle")
			}
			visited[to] = struct{}{}
		} else if to != start {
			return nil, shared.NewDomainError("INVALID_INPUT",
				"Edges do not form a closed cycle")
		}
		current = to
	}

	// Rebuild candidate edges in walk order
	candidateEdges := make([]barter.CandidateEdge, 0, len(edges))
	scores := make([]float64, 0, len(edges))
	current = start
	for i := 0; i < len(edges); i++ {
		from := items[current]
		to := items[next[current]]
		score := s.scorer.ScoreEdge(from, to)
		scores = append(scores, score)
		candidateEdges = append(candidateEdges, barter.CandidateEdge{
			FromItemID:  from.ID,
			ToItemID:    to.ID,
			FromOwnerID: from.OwnerID,
			ToOwnerID:   to.OwnerID,
			FromValue:   from.EstimatedValue,
			ToValue:     to.EstimatedValue,
			Score:       score,
		})
		current = next[current]
	}

	diff := s.balancer.ComputeDifferential(candidateEdges)
	if err := s.balancer.Check(diff); err != nil {
		return nil, err
	}

	candidate := &barter.CycleCandidate{
		ID:                uuid.New(),
		Edges:             candidateEdges,
		AggregateScore:    s.scorer.ScoreCycle(scores),
		CashDifferential:  diff.TotalDifferential.Amount(),
		PerParticipantNet: diff.NetAmounts(),
		ExpiresAt:         time.Now().Add(s.proposalTTL),
	}
	for _, e := range candidateEdges {
		candidate.Participants = append(candidate.Participants, e.FromOwnerID)
	}
	return candidate, nil
}

// lockItems persists the LOCKED status on every item, undoing already
// locked items if one save fails.
func (s *ProposalService) lockItems(ctx context.Context, proposal *barter.ChainProposal) error {
	locked := make([]*barter.Item, 0, len(proposal.ItemIDs()))
	for _, itemID := range proposal.ItemIDs() {
		item, err := s.items.FindByID(ctx, itemID)
		if err == nil {
			if lockErr := item.Lock(proposal.ID); lockErr != nil {
				err = lockErr
			} else if saveErr := s.items.SaveWithVersion(ctx, item); saveErr != nil {
				err = saveErr
			}
		}
		if err != nil {
			for _, done := range locked {
				if undoErr := done.Unlock(); undoErr == nil {
					if saveErr := s.items.SaveWithVersion(ctx, done); saveErr != nil {
						s.logger.Warn("lock rollback save failed",
							zap.String("item_id", done.ID.String()), zap.Error(saveErr))
					}
				}
			}
			return shared.ErrLockConflict
		}
		locked = append(locked, item)
	}
	return nil
}

// unlockItems returns every LOCKED item of the proposal to ACTIVE
func (s *ProposalService) unlockItems(ctx context.Context, proposal *barter.ChainProposal) {
	for _, itemID := range proposal.ItemIDs() {
		item, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			s.logger.Warn("unlock could not load item",
				zap.String("item_id", itemID.String()), zap.Error(err))
			continue
		}
		if item.Status != barter.ItemStatusLocked {
			continue
		}
		if err := item.Unlock(); err != nil {
			s.logger.Warn("unlock failed",
				zap.String("item_id", itemID.String()), zap.Error(err))
			continue
		}
		if err := s.items.SaveWithVersion(ctx, item); err != nil {
			s.logger.Warn("unlock save failed",
				zap.String("item_id", itemID.String()), zap.Error(err))
		}
	}
}

// Get returns one proposal by id
func (s *ProposalService) Get(ctx context.Context, proposalID uuid.UUID) (*ProposalResponse, error) {
	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	response := ToProposalResponse(proposal)
	return &response, nil
}

// Accept records one participant's acceptance. The final acceptance
// moves the proposal to EXECUTING and runs the transfer before
// returning, so the caller sees COMPLETED or FAILED, never a limbo
// state.
func (s *ProposalService) Accept(ctx context.Context, proposalID, userID uuid.UUID) (*ProposalResponse, error) {
	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	last, err := proposal.Accept(userID)
	if err != nil {
		return nil, err
	}
	if !last {
		if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
			return nil, err
		}
		s.publishEvents(ctx, proposal)
		response := ToProposalResponse(proposal)
		return &response, nil
	}

	if err := proposal.MarkExecuting(); err != nil {
		return nil, err
	}
	if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, proposal)

	if err := s.executor.Execute(ctx, proposal); err != nil {
		// The executor has already rolled back and marked the proposal
		// FAILED; surface the failure with the final state attached.
		response := ToProposalResponse(proposal)
		return &response, err
	}

	response := ToProposalResponse(proposal)
	return &response, nil
}

// Reject kills the proposal for every participant and frees its items
func (s *ProposalService) Reject(ctx context.Context, proposalID, userID uuid.UUID, reason string) (*ProposalResponse, error) {
	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if err := proposal.Reject(userID, reason); err != nil {
		return nil, err
	}
	if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
		return nil, err
	}

	s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
	s.unlockItems(ctx, proposal)
	s.publishEvents(ctx, proposal)

	s.logger.Info("proposal rejected",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("rejected_by", userID.String()),
	)
	response := ToProposalResponse(proposal)
	return &response, nil
}

// Cancel closes a proposal that has not started executing. Only a
// participant of the proposal may cancel it.
func (s *ProposalService) Cancel(ctx context.Context, proposalID, userID uuid.UUID, reason string) (*ProposalResponse, error) {
	proposal, err := s.proposals.FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if err := proposal.Cancel(userID, reason); err != nil {
		return nil, err
	}
	if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
		return nil, err
	}

	s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
	s.unlockItems(ctx, proposal)
	s.publishEvents(ctx, proposal)

	s.logger.Info("proposal cancelled",
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("cancelled_by", userID.String()),
	)
	response := ToProposalResponse(proposal)
	return &response, nil
}

// ExpireDue sweeps PENDING_ACCEPTANCE proposals past their deadline,
// releasing their locks and items. Returns the number expired. Called
// periodically by the scheduler; idempotent per proposal.
func (s *ProposalService) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.proposals.FindExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, proposal := range due {
		didExpire, err := proposal.Expire(now)
		if err != nil {
			s.logger.Warn("expiry transition failed",
				zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
			continue
		}
		if !didExpire {
			continue
		}
		if err := s.proposals.SaveWithVersion(ctx, proposal); err != nil {
			s.logger.Warn("expired proposal save failed",
				zap.String("proposal_id", proposal.ID.String()), zap.Error(err))
			continue
		}
		s.locks.ReleaseAll(proposal.ItemIDs(), proposal.ID)
		s.unlockItems(ctx, proposal)
		s.publishEvents(ctx, proposal)
		expired++
	}

	if expired > 0 {
		s.logger.Info("expired pending proposals", zap.Int("count", expired))
	}
	return expired, nil
}

// publishEvents drains the proposal's pending events onto the bus
func (s *ProposalService) publishEvents(ctx context.Context, proposal *barter.ChainProposal) {
	if s.publisher == nil {
		return
	}
	for _, event := range proposal.GetDomainEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("event_type", event.EventType()), zap.Error(err))
		}
	}
	proposal.ClearDomainEvents()
}
