// Package service holds the friend-request and device-token business logic.
package service

import (
	"context"
	"log/slog"
	"time"

	"friendpush/internal/events"
	"friendpush/internal/featureflags"
	"friendpush/internal/middleware"
	"friendpush/internal/models"
	"friendpush/internal/notifications"
	"friendpush/internal/observability"
	"friendpush/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// FriendRequestService validates, persists and announces friend requests.
type FriendRequestService struct {
	requests   repository.FriendRequestRepository
	users      repository.UserRepository
	dispatcher notifications.Dispatcher
	publisher  events.Publisher
	flags      *featureflags.Manager

	postCommitTimeout time.Duration
}

// postCommitTimeout bounds each best-effort step after the insert.
const postCommitTimeout = 5 * time.Second

// NewFriendRequestService wires the orchestrator. A nil dispatcher or publisher disables that step.
func NewFriendRequestService(
	requests repository.FriendRequestRepository,
	users repository.UserRepository,
	dispatcher notifications.Dispatcher,
	publisher events.Publisher,
	flags *featureflags.Manager,
) *FriendRequestService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &FriendRequestService{
		requests:   requests,
		users:      users,
		dispatcher: dispatcher,
		publisher:  publisher,
		flags:      flags,

		postCommitTimeout: postCommitTimeout,
	}
}

// SendFriendRequest records a PENDING request from requesterID to recipientID and then,
// best-effort, dispatches the recipient's push notification and publishes domain events.
// Nothing after the insert can fail the call.
func (s *FriendRequestService) SendFriendRequest(ctx context.Context, requesterID, recipientID uint) (fr *models.FriendRequest, err error) {
	span, ctx := observability.NewSpan(ctx, "service.SendFriendRequest",
		attribute.Int64("requester.id", int64(requesterID)),
		attribute.Int64("recipient.id", int64(recipientID)),
	)
	defer func() {
		span.SetError(err)
		span.End()
		observability.FriendRequestsTotal.WithLabelValues(sendResultLabel(err)).Inc()
	}()

	if requesterID == recipientID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, models.NewValidationError("Recipient does not exist")
	}

	if s.flags.Enabled(featureflags.DedupePendingRequests, requesterID) {
		fr, err = s.requests.SaveUniquePending(ctx, requesterID, recipientID)
	} else {
		fr, err = s.requests.Save(ctx, requesterID, recipientID)
	}
	if err != nil {
		return nil, err
	}
	span.AddAttributes(attribute.Int64("friend_request.id", int64(fr.ID)))

	s.afterCommit(context.WithoutCancel(ctx), fr)
	return fr, nil
}

// afterCommit runs the best-effort steps. ctx is detached from the caller; each step
// gets its own deadline so a stalled broker cannot hold the request open.
func (s *FriendRequestService) afterCommit(ctx context.Context, fr *models.FriendRequest) {
	if s.dispatcher != nil {
		job := notifications.FriendRequestJob{
			FriendRequestID: fr.ID,
			RequesterID:     fr.RequesterID,
			RecipientID:     fr.RecipientID,
			RequestedAt:     fr.RequestedAt,
			CorrelationID:   observability.ExtractCorrelationID(ctx),
		}
		dispatchCtx, cancel := context.WithTimeout(ctx, s.postCommitTimeout)
		err := s.dispatcher.DispatchFriendRequest(dispatchCtx, job)
		cancel()
		if err != nil {
			middleware.Logger.WarnContext(ctx, "friend request notification not dispatched",
				slog.Uint64("friend_request_id", uint64(fr.ID)),
				slog.String("error", err.Error()))
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.postCommitTimeout)
	defer cancel()
	if err := s.publisher.PublishFriendRequestCreated(publishCtx, fr); err != nil {
		middleware.Logger.WarnContext(ctx, "friend request event not published",
			slog.Uint64("friend_request_id", uint64(fr.ID)),
			slog.String("error", err.Error()))
	}
}

// GetFriendRequest returns one request visible to actorID. Requests the actor neither
// sent nor received are reported as NOT_FOUND.
func (s *FriendRequestService) GetFriendRequest(ctx context.Context, actorID, id uint) (*models.FriendRequest, error) {
	fr, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fr == nil || (fr.RequesterID != actorID && fr.RecipientID != actorID) {
		return nil, models.NewNotFoundError("FriendRequest", id)
	}
	return fr, nil
}

// ListFriendRequests returns the requests actorID sent or received, ordered by id.
func (s *FriendRequestService) ListFriendRequests(ctx context.Context, actorID uint) ([]models.FriendRequest, error) {
	return s.requests.ListForUser(ctx, actorID)
}

// ListIncoming returns requests addressed to userID, newest first. An empty status matches all.
func (s *FriendRequestService) ListIncoming(ctx context.Context, userID uint, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("Invalid status filter")
	}
	return s.requests.ListByRecipient(ctx, userID, status)
}

func sendResultLabel(err error) string {
	if err == nil {
		return "created"
	}
	switch models.ErrorCode(err) {
	case models.CodeValidation:
		return "rejected"
	case models.CodeConflict:
		return "duplicate"
	default:
		return "error"
	}
}
