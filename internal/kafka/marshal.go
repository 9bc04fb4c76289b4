package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or redemption id
	Payload       json.RawMessage `json:"payload"`
}

func UnmarshalEnvelope(b []byte, out *Envelope) error {
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	return nil
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// Publisher is the write side of Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) error
}

// Emitter wraps payloads in an Envelope and publishes them keyed by
// correlation id so events for one order keep their order.
type Emitter struct {
	P       Publisher
	Service string
	now     func() time.Time
}

func NewEmitter(p Publisher, service string) *Emitter {
	return &Emitter{P: p, Service: service, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, topic, eventType, key string, payload any) error {
	env, err := e.envelope(ctx, eventType, key, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return e.P.Publish(topic, []byte(key), value,
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(EventVersion))},
	)
}

func (e *Emitter) envelope(ctx context.Context, eventType, key string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now
	if e.now != nil {
		now = e.now
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    now().UTC(),
		Producer:      e.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: key,
		Payload:       b,
	}, nil
}
