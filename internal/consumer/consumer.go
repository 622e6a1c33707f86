// Package consumer reads booking events back off Kafka for the notification
// dispatcher. One group reader covers every booking topic; the topic name is
// the event type.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myasnails/salonbook/internal/inbox"
	"github.com/myasnails/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Handler processes one deduplicated event. Returning an error leaves the
// event consumed; the dispatcher decides what is worth logging versus fatal.
type Handler func(ctx context.Context, eventType string, payload []byte) error

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   *inbox.Repository
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otel.Tracer("kafka").Start(ctx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	eventType := meta.EventType
	if eventType == "" {
		eventType = msg.Topic
	}
	eventID := dedupeKey(meta, msg)

	fresh, err := c.inbox.Record(ctx, eventID, eventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", eventID)
		span.RecordError(err)
		return
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", eventID, "event_type", eventType)
		return
	}

	if err := c.handler(ctx, eventType, msg.Value); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", eventID, "event_type", eventType)
		span.RecordError(err)
	}
}

// dedupeKey identifies a delivery for the inbox. Messages produced outside
// the outbox carry no event_id header; those keep their own dedupe identity
// from the exact partition offset rather than all sharing the empty string.
func dedupeKey(meta kafkax.EventMeta, msg kafka.Message) string {
	if meta.EventID != "" {
		return meta.EventID
	}
	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}
