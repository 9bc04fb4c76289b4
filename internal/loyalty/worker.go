package loyalty

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-orderwise/internal/kafka"
)

// Deduper claims an event id once per consuming service.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Worker drains the retry topic.
type Worker struct {
	Awarder *Awarder
	Dedup   Deduper
	Log     *zap.Logger
}

// HandleAwardRequested is installed as the consumer handler. Returning an
// error leaves the offset uncommitted.
func (w *Worker) HandleAwardRequested(ctx context.Context, m kafkago.Message) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}

	// 1) decode envelope
	var env kafkax.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		log.Warn("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != EventPointsAwardRequested {
		return nil
	}

	// 2) dedup by event id
	first, err := w.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	// 3) decode payload
	req, err := kafkax.UnwrapPayload[Request](env.Payload)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		log.Warn("drop invalid award request", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// 4) award; the per-order record makes a replay harmless
	awarded, err := w.Awarder.Award(ctx, req.User, req.OrderID, req.Points)
	if err != nil {
		if rerr := w.Dedup.Release(ctx, env.EventID); rerr != nil {
			log.Warn("release dedup", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
		return err
	}
	log.Info("points award retried",
		zap.String("order_id", req.OrderID),
		zap.Int64("points", req.Points),
		zap.Bool("awarded", awarded),
	)
	return nil
}
