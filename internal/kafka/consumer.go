package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when processing succeeded and the offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages out to workers by partition. A partition is always
// served by the same worker, and a failed message is retried in place until it
// succeeds or the context ends, so no later offset of that partition is
// committed past it.
type Consumer struct {
	r       reader
	workers int
	log     *zap.Logger

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if log == nil {
		log = zap.NewNop()
	}
	return newConsumer(r, workers, log.With(zap.String("topic", topic), zap.String("group", group)))
}

func newConsumer(r reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log, MinBackoff: 200 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make([]chan kafka.Message, c.workers)
	done := make(chan struct{}, c.workers)
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		go func(id int, in <-chan kafka.Message) {
			defer func() { done <- struct{}{} }()
			for m := range in {
				if !c.process(ctx, id, h, m) {
					return
				}
			}
		}(i, jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		cancel()
		for range jobs {
			<-done
		}
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h until it succeeds, then commits. It reports false when ctx
// ended first; the message stays uncommitted and is redelivered.
func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	log := c.log.With(zap.Int("worker", worker), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	backoff := c.MinBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		log.Warn("handler failed, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.MaxBackoff)
	}
	for {
		err := c.r.CommitMessages(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		log.Error("commit failed", zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
}
