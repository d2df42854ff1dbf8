package handler

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appbarter "github.com/barterloop/backend/internal/application/barter"
	"github.com/barterloop/backend/internal/infrastructure/telemetry"
	"github.com/barterloop/backend/internal/interfaces/http/dto"
	"github.com/barterloop/backend/internal/interfaces/http/middleware"
)

// BarterHandler exposes cycle discovery and chain proposal endpoints
type BarterHandler struct {
	BaseHandler
	discovery *appbarter.DiscoveryService
	proposals *appbarter.ProposalService
	metrics   *telemetry.BarterMetrics
}

// BarterHandlerOption configures optional collaborators
type BarterHandlerOption func(*BarterHandler)

// WithBarterMetrics wires business metrics recording into the handler
func WithBarterMetrics(m *telemetry.BarterMetrics) BarterHandlerOption {
	return func(h *BarterHandler) {
		h.metrics = m
	}
}

// NewBarterHandler creates a new BarterHandler
func NewBarterHandler(
	discovery *appbarter.DiscoveryService,
	proposals *appbarter.ProposalService,
	opts ...BarterHandlerOption,
) *BarterHandler {
	h := &BarterHandler{
		discovery: discovery,
		proposals: proposals,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers barter routes under the given group
func (h *BarterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	barter := rg.Group("/barter")
	barter.Use(middleware.RequireIdentity())
	{
		barter.POST("/discover", h.Discover)
		barter.POST("/discover/batch", h.DiscoverBatch)

		proposals := barter.Group("/proposals")
		{
			proposals.POST("", h.CreateProposal)
			proposals.GET("/:id", h.GetProposal)
			proposals.POST("/:id/accept", h.AcceptProposal)
			proposals.POST("/:id/reject", h.RejectProposal)
			proposals.POST("/:id/cancel", h.CancelProposal)
		}
	}
}

// Discover runs cycle discovery from a single seed item
func (h *BarterHandler) Discover(c *gin.Context) {
	var req appbarter.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	resp, err := h.discovery.DiscoverOpportunities(ctx, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordDiscoveryError(ctx, telemetry.DiscoveryTriggerAPI)
		}
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDiscovery(ctx, telemetry.DiscoveryTriggerAPI, len(resp.Candidates), time.Since(start))
	}
	span := telemetry.SpanFromContext(ctx)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemID, req.SeedItemID.String(),
		telemetry.SpanAttrCycleCount, len(resp.Candidates),
	)

	h.Success(c, resp)
}

// DiscoverBatch runs discovery across several seed items in parallel
func (h *BarterHandler) DiscoverBatch(c *gin.Context) {
	var req appbarter.BatchDiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	results, err := h.discovery.DiscoverBatch(ctx, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordDiscoveryError(ctx, telemetry.DiscoveryTriggerBatch)
		}
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		total := 0
		for _, r := range results {
			total += len(r.Candidates)
		}
		h.metrics.RecordDiscovery(ctx, telemetry.DiscoveryTriggerBatch, total, time.Since(start))
	}

	h.Success(c, results)
}

// CreateProposal promotes a discovered cycle into a binding proposal
func (h *BarterHandler) CreateProposal(c *gin.Context) {
	var req appbarter.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	ctx := c.Request.Context()

	resp, err := h.proposals.Create(ctx, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProposalCreated(ctx, resp.Length)
	}
	span := telemetry.SpanFromContext(ctx)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProposalID, resp.ID.String(),
		telemetry.SpanAttrCycleLength, resp.Length,
	)

	h.Created(c, resp)
}

// GetProposal returns a proposal by ID
func (h *BarterHandler) GetProposal(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}

	resp, err := h.proposals.Get(c.Request.Context(), proposalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// AcceptProposal records the caller's acceptance. The final acceptance
// triggers execution of the chain.
func (h *BarterHandler) AcceptProposal(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "caller identity required")
		return
	}

	ctx := c.Request.Context()

	resp, err := h.proposals.Accept(ctx, proposalID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAcceptance(ctx)
		switch resp.Status {
		case "COMPLETED":
			h.metrics.RecordProposalClosed(ctx, telemetry.ProposalOutcomeCompleted)
		case "FAILED":
			h.metrics.RecordProposalClosed(ctx, telemetry.ProposalOutcomeFailed)
		}
	}
	span := telemetry.SpanFromContext(ctx)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProposalID, resp.ID.String(),
		telemetry.SpanAttrProposalStatus, resp.Status,
	)

	h.Success(c, resp)
}

// RejectProposal rejects the proposal on behalf of the caller. Any
// participant's rejection closes the whole proposal.
func (h *BarterHandler) RejectProposal(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "caller identity required")
		return
	}

	var req appbarter.RejectProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.bindError(c, err)
		return
	}

	ctx := c.Request.Context()

	resp, err := h.proposals.Reject(ctx, proposalID, userID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProposalClosed(ctx, telemetry.ProposalOutcomeRejected)
	}

	h.Success(c, resp)
}

// CancelProposal cancels a proposal on behalf of the caller, who must
// be one of its participants
func (h *BarterHandler) CancelProposal(c *gin.Context) {
	proposalID, ok := h.proposalID(c)
	if !ok {
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "caller identity required")
		return
	}

	var req appbarter.CancelProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.bindError(c, err)
		return
	}

	ctx := c.Request.Context()

	resp, err := h.proposals.Cancel(ctx, proposalID, userID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordProposalClosed(ctx, telemetry.ProposalOutcomeCancelled)
	}

	h.Success(c, resp)
}

// proposalID parses the :id path parameter
func (h *BarterHandler) proposalID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, 400, dto.ErrCodeInvalidInput, "proposal id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// bindError reports request binding failures, expanding validator errors
// into per-field details
func (h *BarterHandler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.Error(c, 400, dto.ErrCodeInvalidJSON, "request body could not be parsed")
}
