package events

import (
	"context"
	"encoding/json"
	"fmt"

	"friendpush/internal/models"
	"friendpush/internal/observability"
)

// UserSink delivers a payload to one user's realtime connections.
// *notifications.Notifier and *notifications.Hub both satisfy it.
type UserSink interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// UserLookup resolves usernames for event payloads.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// RealtimePublisher tells the recipient a request arrived and the requester it was sent.
type RealtimePublisher struct {
	sink  UserSink
	users UserLookup
}

// NewRealtimePublisher creates a publisher. users may be nil, in which case
// payloads carry ids only.
func NewRealtimePublisher(sink UserSink, users UserLookup) *RealtimePublisher {
	return &RealtimePublisher{sink: sink, users: users}
}

type realtimeMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func (p *RealtimePublisher) PublishFriendRequestCreated(ctx context.Context, fr *models.FriendRequest) error {
	request := map[string]interface{}{
		"id":          fr.ID,
		"status":      fr.Status,
		"requestedAt": fr.RequestedAt,
	}

	received := map[string]interface{}{"request": request, "from": p.summary(ctx, fr.RequesterID)}
	if err := p.publish(ctx, fr.RecipientID, FriendRequestReceived, received); err != nil {
		return err
	}

	sent := map[string]interface{}{"request": request, "to": p.summary(ctx, fr.RecipientID)}
	return p.publish(ctx, fr.RequesterID, FriendRequestSent, sent)
}

func (p *RealtimePublisher) publish(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) error {
	body, err := json.Marshal(realtimeMessage{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	err = p.sink.PublishUser(ctx, userID, string(body))
	observability.EventsPublishedTotal.WithLabelValues("realtime", observability.ResultLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish %s to user %d: %w", eventType, userID, err)
	}
	return nil
}

// summary never fails; a lookup error degrades to an id-only summary.
func (p *RealtimePublisher) summary(ctx context.Context, userID uint) map[string]interface{} {
	out := map[string]interface{}{"id": userID}
	if p.users == nil {
		return out
	}
	if u, err := p.users.FindByID(ctx, userID); err == nil && u != nil {
		out["username"] = u.Username
	}
	return out
}
