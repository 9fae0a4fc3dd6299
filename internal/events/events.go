// Package events publishes friend-request domain events to Kafka and to realtime subscribers.
package events

import (
	"context"
	"errors"
	"time"

	"friendpush/internal/models"

	"github.com/google/uuid"
)

// Event names.
const (
	FriendRequestCreated  = "friend_request.created"
	FriendRequestReceived = "friend_request_received"
	FriendRequestSent     = "friend_request_sent"
)

// Publisher announces a committed friend request. Callers treat errors as non-fatal.
type Publisher interface {
	PublishFriendRequestCreated(ctx context.Context, fr *models.FriendRequest) error
}

// FriendRequestEvent is the Kafka record body.
type FriendRequestEvent struct {
	Event           string                     `json:"event"`
	EventID         string                     `json:"eventId"`
	FriendRequestID uint                       `json:"friendRequestId"`
	RequesterID     uint                       `json:"requesterId"`
	RecipientID     uint                       `json:"recipientId"`
	Status          models.FriendRequestStatus `json:"status"`
	RequestedAt     time.Time                  `json:"requestedAt"`
	OccurredAt      time.Time                  `json:"occurredAt"`
}

// NewFriendRequestEvent builds a friend_request.created event with a fresh id.
func NewFriendRequestEvent(fr *models.FriendRequest, now time.Time) FriendRequestEvent {
	return FriendRequestEvent{
		Event:           FriendRequestCreated,
		EventID:         uuid.NewString(),
		FriendRequestID: fr.ID,
		RequesterID:     fr.RequesterID,
		RecipientID:     fr.RecipientID,
		Status:          fr.Status,
		RequestedAt:     fr.RequestedAt,
		OccurredAt:      now.UTC(),
	}
}

// MultiPublisher sends to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishFriendRequestCreated(ctx context.Context, fr *models.FriendRequest) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishFriendRequestCreated(ctx, fr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishFriendRequestCreated(context.Context, *models.FriendRequest) error {
	return nil
}
