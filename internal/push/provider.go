// Package push delivers single-device push messages through a provider.
package push

import (
	"context"
	"errors"
)

// ErrUnregistered marks a token the provider no longer accepts.
var ErrUnregistered = errors.New("push: device token unregistered")

// Notification is the user-visible part of a push message.
type Notification struct {
	Title string
	Body  string
}

// Message targets exactly one device token.
type Message struct {
	Token        string
	Notification Notification
	Data         map[string]string
}

// Provider submits messages to a push service and returns the provider message id.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) (string, error)
}
