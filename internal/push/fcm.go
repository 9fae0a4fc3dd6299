package push

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"friendpush/internal/observability"
)

// FCMConfig selects Firebase credentials. CredentialsJSON wins over CredentialsFile.
type FCMConfig struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMProvider sends through Firebase Cloud Messaging.
type FCMProvider struct {
	client messagingClient
}

// NewFCMProvider initializes the Firebase app and messaging client.
func NewFCMProvider(ctx context.Context, cfg FCMConfig) (*FCMProvider, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file: %w", err)
		}
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, errors.New("firebase credentials not configured: set FIREBASE_CONFIG_JSON or FIREBASE_CREDENTIALS_FILE")
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMProvider{client: client}, nil
}

func (p *FCMProvider) Name() string { return "fcm" }

// Send submits msg. Unregistered tokens are reported as ErrUnregistered.
func (p *FCMProvider) Send(ctx context.Context, msg *Message) (string, error) {
	defer observability.ObservePush(p.Name(), time.Now())

	id, err := p.client.Send(ctx, toFCM(msg))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return "", fmt.Errorf("%w: %v", ErrUnregistered, err)
		}
		return "", fmt.Errorf("fcm send: %w", err)
	}
	return id, nil
}

func toFCM(msg *Message) *messaging.Message {
	data := make(map[string]string, len(msg.Data))
	for k, v := range msg.Data {
		data[k] = v
	}
	return &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		},
		Data: data,
	}
}
