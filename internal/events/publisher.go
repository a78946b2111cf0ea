package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/green-horizons/lawnbook/libs/kafkax"
)

// Event types published by the booking flow. Each type is its own topic.
const (
	TypeAppointmentBooked    = "lawnbook.appointment.booked.v1"
	TypeAppointmentConfirmed = "lawnbook.appointment.confirmed.v1"
	TypeAppointmentCancelled = "lawnbook.appointment.cancelled.v1"
)

// Publisher emits booking lifecycle events to Kafka, strictly best effort:
// Emit never blocks the request path, and a full queue or missing broker
// config drops the event with a warning.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
	queue  chan kafka.Message
}

func NewPublisher(logger *slog.Logger, brokers string) *Publisher {
	p := &Publisher{logger: logger}
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return p
	}
	p.writer = kafka.NewWriter(kafka.WriterConfig{
		Brokers:  list,
		Balancer: &kafka.Hash{},
	})
	p.queue = make(chan kafka.Message, 256)
	return p
}

func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// Run drains the queue until ctx is cancelled. Call in a goroutine.
func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("event publisher disabled (no kafka brokers configured)")
		return
	}
	defer p.writer.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.writer.WriteMessages(writeCtx, msg)
			cancel()
			if err != nil {
				p.logger.Error("event publish failed", "topic", msg.Topic, "err", err)
			}
		}
	}
}

// Emit enqueues one event keyed by aggregate id. The payload is marshalled to
// JSON; trace context from ctx rides along as message headers.
func (p *Publisher) Emit(ctx context.Context, eventType string, key string, payload any) {
	if p.writer == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event payload marshal failed", "event_type", eventType, "err", err)
		return
	}
	msg := kafka.Message{
		Topic: eventType,
		Key:   []byte(key),
		Value: raw,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("event queue full, dropping event", "event_type", eventType, "key", key)
	}
}
