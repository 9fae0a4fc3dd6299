package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"friendpush/internal/middleware"
	"friendpush/internal/models"
	"friendpush/internal/observability"
	"friendpush/internal/push"

	"go.opentelemetry.io/otel/attribute"
)

// NotificationTypeFriendRequest is the "type" data field of friend-request pushes.
const NotificationTypeFriendRequest = "FRIEND_REQUEST"

const friendRequestTitle = "New friend request"

// Outcome is the result class of a notification attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Skip and failure reasons.
const (
	ReasonNoToken        = "no_token"
	ReasonMissingProfile = "missing_profile"
	ReasonLookupFailed   = "lookup_failed"
	ReasonProviderError  = "provider_error"
	ReasonUnregistered   = "unregistered_token"
)

// Result describes what happened to one notification. It is never surfaced to the requester.
type Result struct {
	Outcome   Outcome
	Reason    string
	MessageID string
	Err       error
}

// Directory resolves users by id.
type Directory interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// Sender builds and submits friend-request push notifications.
type Sender struct {
	directory Directory
	provider  push.Provider
}

// NewSender returns a Sender resolving users through directory and sending through provider.
func NewSender(directory Directory, provider push.Provider) *Sender {
	return &Sender{directory: directory, provider: provider}
}

// SendFriendRequestNotification notifies recipientID that requesterID sent a friend request.
// Every failure is logged and reported in the Result; it never panics or returns an error.
func (s *Sender) SendFriendRequestNotification(ctx context.Context, recipientID, requesterID uint) (res Result) {
	span, ctx := observability.NewSpan(ctx, "notifications.SendFriendRequestNotification",
		attribute.Int64("recipient.id", int64(recipientID)),
		attribute.Int64("requester.id", int64(requesterID)),
	)
	defer func() {
		if r := recover(); r != nil {
			res = Result{Outcome: OutcomeFailed, Reason: ReasonProviderError, Err: fmt.Errorf("panic: %v", r)}
		}
		span.AddAttributes(attribute.String("notification.outcome", string(res.Outcome)))
		span.SetError(res.Err)
		span.End()
		s.record(ctx, recipientID, requesterID, res)
	}()

	recipient, err := s.directory.FindByID(ctx, recipientID)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: ReasonLookupFailed, Err: err}
	}
	requester, err := s.directory.FindByID(ctx, requesterID)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: ReasonLookupFailed, Err: err}
	}
	if recipient == nil || requester == nil {
		return Result{Outcome: OutcomeSkipped, Reason: ReasonMissingProfile}
	}
	if !recipient.HasDeviceToken() {
		return Result{Outcome: OutcomeSkipped, Reason: ReasonNoToken}
	}

	id, err := s.provider.Send(ctx, BuildFriendRequestMessage(recipient, requester))
	if err != nil {
		reason := ReasonProviderError
		if isUnregistered(err) {
			reason = ReasonUnregistered
		}
		return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
	}
	return Result{Outcome: OutcomeDelivered, MessageID: id}
}

// BuildFriendRequestMessage builds the push payload addressed to recipient's device token.
func BuildFriendRequestMessage(recipient, requester *models.User) *push.Message {
	return &push.Message{
		Token: *recipient.DeviceToken,
		Notification: push.Notification{
			Title: friendRequestTitle,
			Body:  fmt.Sprintf("%s sent you a friend request.", requester.Username),
		},
		Data: map[string]string{
			"type":              NotificationTypeFriendRequest,
			"requesterId":       strconv.FormatUint(uint64(requester.ID), 10),
			"requesterUsername": requester.Username,
			"recipientId":       strconv.FormatUint(uint64(recipient.ID), 10),
		},
	}
}

func (s *Sender) record(ctx context.Context, recipientID, requesterID uint, res Result) {
	observability.NotificationsTotal.WithLabelValues(string(res.Outcome), res.Reason).Inc()

	attrs := []any{
		slog.String("outcome", string(res.Outcome)),
		slog.Uint64("recipient_id", uint64(recipientID)),
		slog.Uint64("requester_id", uint64(requesterID)),
		slog.String("provider", s.provider.Name()),
	}
	if res.Reason != "" {
		attrs = append(attrs, slog.String("reason", res.Reason))
	}
	switch res.Outcome {
	case OutcomeDelivered:
		attrs = append(attrs, slog.String("message_id", res.MessageID))
		middleware.Logger.InfoContext(ctx, "friend request notification sent", attrs...)
	case OutcomeSkipped:
		middleware.Logger.InfoContext(ctx, "friend request notification skipped", attrs...)
	default:
		if res.Err != nil {
			attrs = append(attrs, slog.String("error", res.Err.Error()))
		}
		middleware.Logger.ErrorContext(ctx, "friend request notification failed", attrs...)
	}
}

func isUnregistered(err error) bool {
	return errors.Is(err, push.ErrUnregistered)
}
