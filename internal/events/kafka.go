package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"friendpush/internal/middleware"
	"friendpush/internal/models"
	"friendpush/internal/observability"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes friend_request.created records keyed by recipient id,
// so one recipient's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewKafkaPublisher returns a publisher writing to topic on brokers. Writes are
// asynchronous: PublishFriendRequestCreated returns once the message is buffered and
// the broker outcome is recorded when the batch completes.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	p := &KafkaPublisher{topic: topic, now: time.Now}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completed,
	}
	return p
}

// completed records the broker outcome of an async batch.
func (p *KafkaPublisher) completed(messages []kafka.Message, err error) {
	observability.EventsPublishedTotal.WithLabelValues("kafka", observability.ResultLabel(err)).Add(float64(len(messages)))
	if err != nil {
		middleware.Logger.Warn("friend request events not delivered to kafka",
			slog.String("topic", p.topic),
			slog.Int("messages", len(messages)),
			slog.String("error", err.Error()))
	}
}

func (p *KafkaPublisher) PublishFriendRequestCreated(ctx context.Context, fr *models.FriendRequest) error {
	event := NewFriendRequestEvent(fr, p.now())
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Event, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(fr.RecipientID), 10)),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Event)},
			{Key: "correlation_id", Value: []byte(observability.ExtractCorrelationID(ctx))},
		},
	})
	if err != nil {
		observability.EventsPublishedTotal.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}

	middleware.Logger.DebugContext(ctx, "queued friend request event",
		slog.String("topic", p.topic),
		slog.String("event_id", event.EventID),
		slog.Uint64("friend_request_id", uint64(fr.ID)))
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
