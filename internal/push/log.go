package push

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogProvider writes messages to the log instead of a push service. Used in development.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider returns a provider that logs through l.
func NewLogProvider(l *slog.Logger) *LogProvider {
	return &LogProvider{logger: l}
}

func (p *LogProvider) Name() string { return "log" }

func (p *LogProvider) Send(ctx context.Context, msg *Message) (string, error) {
	id := "log-" + uuid.NewString()
	p.logger.InfoContext(ctx, "push message (log provider)",
		slog.String("message_id", id),
		slog.String("title", msg.Notification.Title),
		slog.String("body", msg.Notification.Body),
		slog.Any("data", msg.Data),
		slog.Int("token_len", len(msg.Token)),
	)
	return id, nil
}
