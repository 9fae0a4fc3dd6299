package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"friendpush/internal/models"
	"friendpush/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleRequest() *models.FriendRequest {
	fr := models.NewFriendRequest(1, 2, fixedNow)
	fr.ID = 77
	return fr
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_WritesKeyedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "friend-requests", now: func() time.Time { return fixedNow }}

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, p.PublishFriendRequestCreated(ctx, sampleRequest()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "2", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "correlation_id", Value: []byte("corr-1")})

	var event FriendRequestEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, FriendRequestCreated, event.Event)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, uint(77), event.FriendRequestID)
	assert.Equal(t, uint(1), event.RequesterID)
	assert.Equal(t, uint(2), event.RecipientID)
	assert.Equal(t, models.FriendRequestStatusPending, event.Status)
	assert.True(t, fixedNow.Equal(event.OccurredAt))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "t", now: time.Now}

	err := p.PublishFriendRequestCreated(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

// blockingWriter behaves like a synchronous writer facing an unresponsive broker.
type blockingWriter struct{}

func (blockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingWriter) Close() error { return nil }

func TestKafkaPublisher_HonorsDeadline(t *testing.T) {
	p := &KafkaPublisher{writer: blockingWriter{}, topic: "t", now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishFriendRequestCreated(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewKafkaPublisher_IsAsync(t *testing.T) {
	p := NewKafkaPublisher([]string{"127.0.0.1:1"}, "friend-requests")
	defer func() { _ = p.Close() }()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	require.NotNil(t, w.Completion)
}

func TestKafkaPublisher_CompletionCountsOutcome(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{}, topic: "t", now: time.Now}
	failed := observability.EventsPublishedTotal.WithLabelValues("kafka", "error")
	ok := observability.EventsPublishedTotal.WithLabelValues("kafka", "ok")
	failedBefore, okBefore := testutil.ToFloat64(failed), testutil.ToFloat64(ok)

	p.completed(make([]kafka.Message, 2), errors.New("broker unreachable"))
	p.completed(make([]kafka.Message, 3), nil)

	assert.Equal(t, failedBefore+2, testutil.ToFloat64(failed))
	assert.Equal(t, okBefore+3, testutil.ToFloat64(ok))
}

type recordingSink struct {
	mu       sync.Mutex
	payloads map[uint][]string
	failFor  uint
}

func (s *recordingSink) PublishUser(_ context.Context, userID uint, payload string) error {
	if userID == s.failFor {
		return errors.New("redis down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payloads == nil {
		s.payloads = map[uint][]string{}
	}
	s.payloads[userID] = append(s.payloads[userID], payload)
	return nil
}

type usersStub map[uint]*models.User

func (u usersStub) FindByID(_ context.Context, id uint) (*models.User, error) {
	return u[id], nil
}

func decode(t *testing.T, raw string) realtimeMessage {
	t.Helper()
	var msg realtimeMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	return msg
}

func TestRealtimePublisher_NotifiesBothSides(t *testing.T) {
	sink := &recordingSink{}
	users := usersStub{1: {ID: 1, Username: "alice"}, 2: {ID: 2, Username: "bob"}}
	p := NewRealtimePublisher(sink, users)

	require.NoError(t, p.PublishFriendRequestCreated(context.Background(), sampleRequest()))

	require.Len(t, sink.payloads[2], 1)
	received := decode(t, sink.payloads[2][0])
	assert.Equal(t, FriendRequestReceived, received.Type)
	assert.Equal(t, "alice", received.Payload["from"].(map[string]interface{})["username"])

	require.Len(t, sink.payloads[1], 1)
	sent := decode(t, sink.payloads[1][0])
	assert.Equal(t, FriendRequestSent, sent.Type)
	assert.Equal(t, "bob", sent.Payload["to"].(map[string]interface{})["username"])
}

func TestRealtimePublisher_WithoutLookup(t *testing.T) {
	sink := &recordingSink{}
	p := NewRealtimePublisher(sink, nil)

	require.NoError(t, p.PublishFriendRequestCreated(context.Background(), sampleRequest()))
	msg := decode(t, sink.payloads[2][0])
	from := msg.Payload["from"].(map[string]interface{})
	assert.EqualValues(t, 1, from["id"])
	assert.NotContains(t, from, "username")
}

func TestRealtimePublisher_SinkError(t *testing.T) {
	p := NewRealtimePublisher(&recordingSink{failFor: 2}, nil)
	err := p.PublishFriendRequestCreated(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), FriendRequestReceived)
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) PublishFriendRequestCreated(context.Context, *models.FriendRequest) error {
	s.calls++
	return s.err
}

func TestMultiPublisher_CallsAllAndJoinsErrors(t *testing.T) {
	errKafka := errors.New("kafka down")
	errRedis := errors.New("redis down")
	a := &stubPublisher{err: errKafka}
	b := &stubPublisher{}
	c := &stubPublisher{err: errRedis}

	err := MultiPublisher{a, b, c}.PublishFriendRequestCreated(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errKafka)
	assert.ErrorIs(t, err, errRedis)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)

	assert.NoError(t, MultiPublisher{b}.PublishFriendRequestCreated(context.Background(), sampleRequest()))
	assert.NoError(t, NoopPublisher{}.PublishFriendRequestCreated(context.Background(), sampleRequest()))
}
