package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	producerTracer = otel.Tracer("messaging/producer")
	meter          = otel.Meter("messaging")
)

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    messageWriter
	topic     string
	published metric.Int64Counter
}

func NewProducer(brokers []string, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           100 * time.Millisecond,
	}, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	published, _ := meter.Int64Counter("messaging.messages.published",
		metric.WithDescription("Messages written to Kafka"))
	return &Producer{writer: w, topic: topic, published: published}
}

// Publish writes event as JSON keyed by key. Messages sharing a key land on
// the same partition, so events of one order stay ordered.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", p.topic, err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(p.topic)}},
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, newHeaderCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.count(ctx, false)
		return fmt.Errorf("write %s message: %w", p.topic, err)
	}

	p.count(ctx, true)
	return nil
}

func (p *Producer) count(ctx context.Context, ok bool) {
	if p.published == nil {
		return
	}
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", p.topic),
		attribute.Bool("success", ok),
	))
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
