// Package messaging publishes committed marketplace events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/marketplace/internal/core/domain"
)

const (
	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 100
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer     MessageWriter
	propagator propagation.TextMapPropagator
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: BatchTimeout,
		BatchSize:    BatchSize,
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, propagator: otel.GetTextMapPropagator()}
}

// Publish writes one message per event. Messages are keyed by event source
// so every component's facts stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
		}
		carrier := headerCarrier{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "seq", Value: []byte(strconv.FormatUint(ev.Seq, 10))},
			{Key: "tx_id", Value: []byte(ev.TxID.String())},
		}
		p.propagator.Inject(ctx, &carrier)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(ev.Source),
			Value:   value,
			Headers: carrier,
			Time:    ev.At,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}
