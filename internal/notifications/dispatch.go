package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"friendpush/internal/middleware"
	"friendpush/internal/observability"
)

// ErrDispatchQueueFull is returned by LocalDispatcher when its buffer is saturated.
var ErrDispatchQueueFull = errors.New("notification dispatch queue full")

// ErrDispatcherClosed is returned after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// FriendRequestJob identifies one post-commit notification.
type FriendRequestJob struct {
	FriendRequestID uint      `json:"friend_request_id"`
	RequesterID     uint      `json:"requester_id"`
	RecipientID     uint      `json:"recipient_id"`
	RequestedAt     time.Time `json:"requested_at"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
}

// Dispatcher hands a committed friend request to notification delivery.
// Implementations must not block on the push provider.
type Dispatcher interface {
	DispatchFriendRequest(ctx context.Context, job FriendRequestJob) error
}

// FriendRequestNotifier is the delivery step a dispatcher eventually runs.
type FriendRequestNotifier interface {
	SendFriendRequestNotification(ctx context.Context, recipientID, requesterID uint) Result
}

// InlineDispatcher delivers synchronously on the caller's goroutine.
type InlineDispatcher struct {
	notifier FriendRequestNotifier
}

// NewInlineDispatcher returns a dispatcher that calls notifier directly.
func NewInlineDispatcher(notifier FriendRequestNotifier) *InlineDispatcher {
	return &InlineDispatcher{notifier: notifier}
}

func (d *InlineDispatcher) DispatchFriendRequest(ctx context.Context, job FriendRequestJob) error {
	d.notifier.SendFriendRequestNotification(ctx, job.RecipientID, job.RequesterID)
	observability.NotificationDispatchTotal.WithLabelValues("inline", "ok").Inc()
	return nil
}

// LocalDispatcher runs notifications on a bounded in-process worker pool.
// Jobs still buffered at Close are delivered before Close returns.
type LocalDispatcher struct {
	notifier FriendRequestNotifier
	jobs     chan FriendRequestJob
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalDispatcher starts workers goroutines consuming a buffer of queueSize jobs.
// timeout bounds each delivery.
func NewLocalDispatcher(notifier FriendRequestNotifier, workers, queueSize int, timeout time.Duration) *LocalDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &LocalDispatcher{
		notifier: notifier,
		jobs:     make(chan FriendRequestJob, queueSize),
		timeout:  timeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *LocalDispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

func (d *LocalDispatcher) deliver(job FriendRequestJob) {
	ctx := observability.WithCorrelationID(context.Background(), job.CorrelationID)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	d.notifier.SendFriendRequestNotification(ctx, job.RecipientID, job.RequesterID)
}

// DispatchFriendRequest enqueues job without blocking. The request context is not
// carried into delivery, only its correlation id.
func (d *LocalDispatcher) DispatchFriendRequest(ctx context.Context, job FriendRequestJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	if job.CorrelationID == "" {
		job.CorrelationID = observability.ExtractCorrelationID(ctx)
	}

	select {
	case d.jobs <- job:
		observability.NotificationDispatchTotal.WithLabelValues("local", "ok").Inc()
		return nil
	default:
		observability.NotificationDispatchTotal.WithLabelValues("local", "dropped").Inc()
		middleware.Logger.WarnContext(ctx, "notification dispatch queue full, dropping job",
			slog.Uint64("friend_request_id", uint64(job.FriendRequestID)))
		return ErrDispatchQueueFull
	}
}

// Close stops accepting jobs and waits for buffered ones to finish.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}
