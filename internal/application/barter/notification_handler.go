package barter

import (
	"context"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProposalNotificationHandler fans proposal lifecycle events out to the
// notification collaborator so every participant hears about creation,
// progress and closure of their proposals.
type ProposalNotificationHandler struct {
	notifier  barter.Notifier
	directory barter.UserDirectory
	logger    *zap.Logger
}

// ProposalNotificationOption configures optional collaborators
type ProposalNotificationOption func(*ProposalNotificationHandler)

// WithUserDirectory wires the identity collaborator so delivery logs
// address participants by display name instead of raw id
func WithUserDirectory(directory barter.UserDirectory) ProposalNotificationOption {
	return func(h *ProposalNotificationHandler) {
		h.directory = directory
	}
}

// NewProposalNotificationHandler creates a new ProposalNotificationHandler
func NewProposalNotificationHandler(notifier barter.Notifier, logger *zap.Logger, opts ...ProposalNotificationOption) *ProposalNotificationHandler {
	h := &ProposalNotificationHandler{
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *ProposalNotificationHandler) EventTypes() []string {
	return []string{
		barter.EventTypeProposalCreated,
		barter.EventTypeProposalAccepted,
		barter.EventTypeProposalRejected,
		barter.EventTypeProposalExpired,
		barter.EventTypeProposalCompleted,
		barter.EventTypeProposalFailed,
	}
}

// Handle maps a proposal event onto one notification per participant
func (h *ProposalNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var (
		proposalID   uuid.UUID
		participants []uuid.UUID
		notification barter.NotificationEvent
	)

	switch e := event.(type) {
	case *barter.ProposalCreatedEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalCreated
	case *barter.ProposalAcceptedEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalAccepted
	case *barter.ProposalRejectedEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalRejected
	case *barter.ProposalExpiredEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalExpired
	case *barter.ProposalCompletedEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalExecuted
	case *barter.ProposalFailedEvent:
		proposalID, participants = e.ProposalID, e.Participants
		notification = barter.NotifyProposalFailed
	default:
		h.logger.Debug("ignoring event without notification mapping",
			zap.String("event_type", event.EventType()))
		return nil
	}

	for _, userID := range participants {
		recipient := h.recipientName(ctx, userID)
		if err := h.notifier.Notify(ctx, userID, notification, proposalID); err != nil {
			// Notifications are best effort; one slow or broken channel
			// must not poison the event bus.
			h.logger.Warn("notification delivery failed",
				zap.String("proposal_id", proposalID.String()),
				zap.String("recipient", recipient),
				zap.String("notification", string(notification)),
				zap.Error(err),
			)
			continue
		}
		h.logger.Debug("notification delivered",
			zap.String("proposal_id", proposalID.String()),
			zap.String("recipient", recipient),
			zap.String("notification", string(notification)),
		)
	}
	return nil
}

// recipientName resolves a participant's display name through the
// identity collaborator, falling back to the raw id when the
// directory is absent or cannot resolve the user.
func (h *ProposalNotificationHandler) recipientName(ctx context.Context, userID uuid.UUID) string {
	if h.directory == nil {
		return userID.String()
	}
	user, err := h.directory.GetUser(ctx, userID)
	if err != nil || user == nil || user.DisplayName == "" {
		return userID.String()
	}
	return user.DisplayName
}

// Ensure ProposalNotificationHandler implements shared.EventHandler
var _ shared.EventHandler = (*ProposalNotificationHandler)(nil)

// LoggingNotifier is a barter.Notifier that writes notifications to the
// log. It stands in until a real delivery channel (push, email) is
// wired up.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a new logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// Notify logs the notification
func (n *LoggingNotifier) Notify(ctx context.Context, userID uuid.UUID, event barter.NotificationEvent, proposalID uuid.UUID) error {
	n.logger.Info("proposal notification",
		zap.String("user_id", userID.String()),
		zap.String("event", string(event)),
		zap.String("proposal_id", proposalID.String()),
	)
	return nil
}

// Ensure LoggingNotifier implements barter.Notifier
var _ barter.Notifier = (*LoggingNotifier)(nil)

// PlaceholderUserDirectory derives a stable display handle from the
// user id. It stands in until the identity service client is wired up,
// the same way LoggingNotifier stands in for a delivery channel.
type PlaceholderUserDirectory struct{}

// NewPlaceholderUserDirectory creates a new placeholder directory
func NewPlaceholderUserDirectory() *PlaceholderUserDirectory {
	return &PlaceholderUserDirectory{}
}

// GetUser returns the minimal identity for the given user
func (d *PlaceholderUserDirectory) GetUser(ctx context.Context, userID uuid.UUID) (*barter.User, error) {
	if userID == uuid.Nil {
		return nil, shared.ErrNotFound
	}
	return &barter.User{
		ID:          userID,
		DisplayName: "user-" + userID.String()[:8],
	}, nil
}

// Ensure PlaceholderUserDirectory implements barter.UserDirectory
var _ barter.UserDirectory = (*PlaceholderUserDirectory)(nil)
