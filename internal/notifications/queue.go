package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"friendpush/internal/middleware"
	"friendpush/internal/observability"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// TypeFriendRequestNotification is the asynq task type for friend-request pushes.
	TypeFriendRequestNotification = "notification:friend_request"

	// QueueNotifications is the asynq queue friend-request tasks are placed on.
	QueueNotifications = "notifications"

	taskRetention = 24 * time.Hour
)

// taskEnqueuer is the subset of *asynq.Client the dispatcher uses.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// QueueDispatcher enqueues friend-request notifications onto asynq for a Worker to deliver.
// Tasks are never retried.
type QueueDispatcher struct {
	client taskEnqueuer
}

// RedisClientOpt converts go-redis options into asynq connection options.
func RedisClientOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

// NewQueueDispatcher returns a dispatcher backed by an asynq client.
func NewQueueDispatcher(redisOpt asynq.RedisClientOpt) *QueueDispatcher {
	return &QueueDispatcher{client: asynq.NewClient(redisOpt)}
}

// friendRequestTaskID identifies one committed request. RequestedAt is part of the id
// so a row id reused after a table reset still gets its own task within taskRetention.
func friendRequestTaskID(job FriendRequestJob) string {
	return fmt.Sprintf("friend_request:%d:%d", job.FriendRequestID, job.RequestedAt.UnixNano())
}

// NewFriendRequestTask encodes job as an asynq task enqueued at most once per request.
func NewFriendRequestTask(job FriendRequestJob) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal friend request job: %w", err)
	}
	return asynq.NewTask(TypeFriendRequestNotification, payload,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(0),
		asynq.TaskID(friendRequestTaskID(job)),
		asynq.Retention(taskRetention),
	), nil
}

func (d *QueueDispatcher) DispatchFriendRequest(ctx context.Context, job FriendRequestJob) error {
	if job.CorrelationID == "" {
		job.CorrelationID = observability.ExtractCorrelationID(ctx)
	}

	task, err := NewFriendRequestTask(job)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		observability.NotificationDispatchTotal.WithLabelValues("queue", "duplicate").Inc()
		return nil
	}
	if err != nil {
		observability.NotificationDispatchTotal.WithLabelValues("queue", "error").Inc()
		return fmt.Errorf("enqueue friend request notification: %w", err)
	}

	observability.NotificationDispatchTotal.WithLabelValues("queue", "ok").Inc()
	middleware.Logger.DebugContext(ctx, "friend request notification enqueued",
		slog.String("task_id", info.ID), slog.String("queue", info.Queue))
	return nil
}

// Close releases the asynq client.
func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}
