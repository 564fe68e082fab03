package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

type Handler func(ctx context.Context, payload []byte) error

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader    messageReader
	topic     string
	groupID   string
	logger    *slog.Logger
	processed metric.Int64Counter
}

type ConsumerOption func(*kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newConsumer(kafka.NewReader(cfg), topic, groupID, logger)
}

func newConsumer(r messageReader, topic, groupID string, logger *slog.Logger) *Consumer {
	processed, _ := meter.Int64Counter("messaging.messages.processed",
		metric.WithDescription("Messages handled by consumers"))
	return &Consumer{
		reader:    r,
		topic:     topic,
		groupID:   groupID,
		logger:    logger,
		processed: processed,
	}
}

// Consume hands messages to handler one at a time and commits each offset
// after the handler succeeds. A handler error stops consumption without
// committing, so the message is redelivered after restart. Cancelling ctx
// returns nil.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	c.logger.Info("consumer started", "topic", c.topic, "group_id", c.groupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return c.stopped(ctx, err)
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			c.logger.Error("failed to process message",
				"error", err, "topic", c.topic, "partition", msg.Partition, "offset", msg.Offset)
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return c.stopped(ctx, err)
		}
	}
}

// stopped maps errors caused by cancelling ctx to a clean stop.
func (c *Consumer) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		c.logger.Info("consumer stopped", "topic", c.topic)
		return nil
	}
	return err
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, newHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	err := handler(spanCtx, msg.Value)
	if c.processed != nil {
		c.processed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", c.topic),
			attribute.Bool("success", err == nil),
		))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
