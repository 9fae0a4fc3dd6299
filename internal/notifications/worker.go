package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"friendpush/internal/middleware"
	"friendpush/internal/observability"

	"github.com/hibiken/asynq"
)

// WorkerConfig tunes the asynq server.
type WorkerConfig struct {
	Concurrency int
	PushTimeout time.Duration
}

// Worker consumes friend-request notification tasks.
type Worker struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	notifier FriendRequestNotifier
	timeout  time.Duration
}

// NewWorker creates an asynq server and registers handlers. Call Run to start.
func NewWorker(redisOpt asynq.RedisClientOpt, notifier FriendRequestNotifier, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	w := &Worker{
		notifier: notifier,
		timeout:  cfg.PushTimeout,
		mux:      asynq.NewServeMux(),
	}
	w.srv = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueNotifications: 1},
		Logger:      asynqLogger{l: middleware.Logger},
		LogLevel:    asynq.InfoLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			observability.LogAsyncOperationError(ctx, task.Type(), err, nil)
		}),
	})
	w.mux.HandleFunc(TypeFriendRequestNotification, w.HandleFriendRequestTask)
	return w
}

// HandleFriendRequestTask delivers one notification. Delivery failures are logged by the
// Sender and never returned, so asynq does not retry. A malformed payload is skipped.
func (w *Worker) HandleFriendRequestTask(ctx context.Context, t *asynq.Task) error {
	var job FriendRequestJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("decode friend request task: %v: %w", err, asynq.SkipRetry)
	}

	ctx = observability.WithCorrelationID(ctx, job.CorrelationID)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	fields := map[string]interface{}{
		"friend_request_id": job.FriendRequestID,
		"recipient_id":      job.RecipientID,
	}
	observability.LogAsyncOperationStart(ctx, TypeFriendRequestNotification, fields)
	res := w.notifier.SendFriendRequestNotification(ctx, job.RecipientID, job.RequesterID)
	fields["outcome"] = string(res.Outcome)
	observability.LogAsyncOperationEnd(ctx, TypeFriendRequestNotification, fields)
	return nil
}

// Run blocks until the server stops.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Start runs the server in the background.
func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...), slog.String("component", "asynq")) }
func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...), slog.String("component", "asynq"), slog.Bool("fatal", true))
	os.Exit(1)
}
