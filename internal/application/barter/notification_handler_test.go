package barter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/barterloop/backend/internal/domain/barter"
	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockNotifier is a mock implementation of barter.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, event barter.NotificationEvent, proposalID uuid.UUID) error {
	args := m.Called(ctx, userID, event, proposalID)
	return args.Error(0)
}

func pendingTestProposal(t *testing.T) *barter.ChainProposal {
	t.Helper()
	book, toy, gadget := threeParties(t)
	f := newFixture(t, book, toy, gadget)

	created, err := f.service.Create(context.Background(),
		CreateProposalRequest{Edges: cycleEdges(book, toy, gadget)})
	require.NoError(t, err)

	proposal, err := f.proposals.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	return proposal
}

func TestProposalNotificationHandler_NotifiesAllParticipants(t *testing.T) {
	proposal := pendingTestProposal(t)
	notifier := new(MockNotifier)
	handler := NewProposalNotificationHandler(notifier, zap.NewNop())

	for _, participant := range proposal.Participants {
		notifier.On("Notify", mock.Anything, participant.UserID,
			barter.NotifyProposalCreated, proposal.ID).Return(nil)
	}

	event := barter.NewProposalCreatedEvent(proposal)
	require.NoError(t, handler.Handle(context.Background(), event))
	notifier.AssertExpectations(t)
}

func TestProposalNotificationHandler_RejectionEvent(t *testing.T) {
	proposal := pendingTestProposal(t)
	rejector := proposal.Participants[1].UserID
	notifier := new(MockNotifier)
	handler := NewProposalNotificationHandler(notifier, zap.NewNop())

	notifier.On("Notify", mock.Anything, mock.Anything,
		barter.NotifyProposalRejected, proposal.ID).Return(nil).Times(len(proposal.Participants))

	event := barter.NewProposalRejectedEvent(proposal, rejector, "no thanks")
	require.NoError(t, handler.Handle(context.Background(), event))
	notifier.AssertExpectations(t)
}

func TestProposalNotificationHandler_DeliveryFailureIsSwallowed(t *testing.T) {
	proposal := pendingTestProposal(t)
	notifier := new(MockNotifier)
	handler := NewProposalNotificationHandler(notifier, zap.NewNop())

	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("channel down"))

	// A broken notification channel must not fail event handling
	event := barter.NewProposalExpiredEvent(proposal)
	assert.NoError(t, handler.Handle(context.Background(), event))
}

func TestProposalNotificationHandler_EventTypes(t *testing.T) {
	handler := NewProposalNotificationHandler(new(MockNotifier), zap.NewNop())
	types := handler.EventTypes()

	assert.Contains(t, types, barter.EventTypeProposalCreated)
	assert.Contains(t, types, barter.EventTypeProposalCompleted)
	assert.Contains(t, types, barter.EventTypeProposalFailed)
	// Cancellation is user-initiated; the actor already knows
	assert.NotContains(t, types, barter.EventTypeProposalCancelled)
}

// MockUserDirectory is a mock implementation of barter.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUser(ctx context.Context, userID uuid.UUID) (*barter.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*barter.User), args.Error(1)
}

func TestProposalNotificationHandler_ResolvesRecipientNames(t *testing.T) {
	proposal := pendingTestProposal(t)
	core, logs := observer.New(zap.DebugLevel)

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	directory := new(MockUserDirectory)
	for i, participant := range proposal.Participants {
		directory.On("GetUser", mock.Anything, participant.UserID).
			Return(&barter.User{ID: participant.UserID, DisplayName: fmt.Sprintf("trader-%d", i)}, nil)
	}

	handler := NewProposalNotificationHandler(notifier, zap.New(core),
		WithUserDirectory(directory))

	event := barter.NewProposalCreatedEvent(proposal)
	require.NoError(t, handler.Handle(context.Background(), event))

	delivered := logs.FilterMessage("notification delivered").All()
	require.Len(t, delivered, len(proposal.Participants))
	recipients := make(map[string]bool)
	for _, entry := range delivered {
		recipients[entry.ContextMap()["recipient"].(string)] = true
	}
	for i := range proposal.Participants {
		assert.True(t, recipients[fmt.Sprintf("trader-%d", i)])
	}
	directory.AssertExpectations(t)
}

func TestProposalNotificationHandler_DirectoryFailureFallsBackToID(t *testing.T) {
	proposal := pendingTestProposal(t)
	core, logs := observer.New(zap.DebugLevel)

	notifier := new(MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	directory := new(MockUserDirectory)
	directory.On("GetUser", mock.Anything, mock.Anything).
		Return(nil, errors.New("identity service unreachable"))

	handler := NewProposalNotificationHandler(notifier, zap.New(core),
		WithUserDirectory(directory))

	event := barter.NewProposalCreatedEvent(proposal)
	require.NoError(t, handler.Handle(context.Background(), event))

	delivered := logs.FilterMessage("notification delivered").All()
	require.Len(t, delivered, len(proposal.Participants))
	seen := make(map[string]bool)
	for _, entry := range delivered {
		seen[entry.ContextMap()["recipient"].(string)] = true
	}
	for _, participant := range proposal.Participants {
		assert.True(t, seen[participant.UserID.String()])
	}
}

func TestPlaceholderUserDirectory(t *testing.T) {
	directory := NewPlaceholderUserDirectory()

	id := uuid.New()
	user, err := directory.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "user-"+id.String()[:8], user.DisplayName)

	_, err = directory.GetUser(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLoggingNotifier(t *testing.T) {
	notifier := NewLoggingNotifier(zap.NewNop())

	err := notifier.Notify(context.Background(), uuid.New(), barter.NotifyProposalExecuted, uuid.New())
	assert.NoError(t, err)
}
