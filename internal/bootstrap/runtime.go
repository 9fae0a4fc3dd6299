// Package bootstrap assembles runtime dependencies shared by the server and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"friendpush/internal/cache"
	"friendpush/internal/config"
	"friendpush/internal/database"
	"friendpush/internal/events"
	"friendpush/internal/middleware"
	"friendpush/internal/notifications"
	"friendpush/internal/observability"
	"friendpush/internal/push"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Version is stamped at build time with -ldflags "-X friendpush/internal/bootstrap.Version=...".
var Version = "dev"

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
}

// InitRuntime connects to the database and Redis. A nil Redis client means Redis was
// unreachable and callers must degrade.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return db, cache.InitRedis(cfg.RedisURL), nil
}

// InitTracing configures the global tracer for service from TRACING_* settings.
func InitTracing(cfg *config.Config, service string) (func(context.Context) error, error) {
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRate,
	})
}

// PushTimeout returns the per-delivery provider timeout.
func PushTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.PushTimeoutSeconds) * time.Second
}

// NewPushProvider builds the provider named by PUSH_PROVIDER.
func NewPushProvider(ctx context.Context, cfg *config.Config) (push.Provider, error) {
	switch cfg.PushProvider {
	case config.PushProviderFCM:
		p, err := push.NewFCMProvider(ctx, push.FCMConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseConfigJSON,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("init fcm provider: %w", err)
		}
		return p, nil
	case config.PushProviderLog, "":
		return push.NewLogProvider(middleware.Logger), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.PushProvider)
	}
}

// NewDispatcher selects the notification dispatcher for NOTIFICATION_DISPATCH. Queue mode
// degrades to the local pool when Redis is unavailable. The returned closer must be
// closed on shutdown.
func NewDispatcher(cfg *config.Config, rdb *redis.Client, notifier notifications.FriendRequestNotifier) (notifications.Dispatcher, io.Closer) {
	mode := cfg.NotificationDispatch
	if mode == config.DispatchQueue && rdb == nil {
		middleware.Logger.Warn("redis unavailable, falling back to local notification dispatch")
		mode = config.DispatchLocal
	}

	switch mode {
	case config.DispatchQueue:
		d := notifications.NewQueueDispatcher(notifications.RedisClientOpt(rdb.Options()))
		return d, d
	case config.DispatchInline:
		return notifications.NewInlineDispatcher(notifier), closerFunc(func() error { return nil })
	default:
		d := notifications.NewLocalDispatcher(notifier, cfg.WorkerConcurrency, cfg.LocalQueueSize, PushTimeout(cfg))
		return d, closerFunc(func() error { d.Close(); return nil })
	}
}

// NewPublisher fans friend-request events out to Kafka (when KAFKA_BROKERS is set) and to
// realtime subscribers. sink is the Redis notifier, or the local hub without Redis.
func NewPublisher(cfg *config.Config, sink events.UserSink, users events.UserLookup) (events.Publisher, []io.Closer) {
	var (
		publishers events.MultiPublisher
		closers    []io.Closer
	)

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, cfg.KafkaFriendRequestTopic)
		publishers = append(publishers, kp)
		closers = append(closers, kp)
		middleware.Logger.Info("kafka event publishing enabled",
			slog.Any("brokers", brokers), slog.String("topic", cfg.KafkaFriendRequestTopic))
	}
	if sink != nil {
		publishers = append(publishers, events.NewRealtimePublisher(sink, users))
	}

	if len(publishers) == 0 {
		return events.NoopPublisher{}, nil
	}
	return publishers, closers
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
