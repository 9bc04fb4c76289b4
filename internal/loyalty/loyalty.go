// Package loyalty credits points for placed orders. An award is recorded per
// order so retries never double count.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

const CollectionAwards = "pointAwards"

// Award marker states. A marker is written pending in the same batch as the
// order and flips to awarded together with the balance increment.
const (
	StatusPending = "pending"
	StatusAwarded = "awarded"
)

type award struct {
	OrderID   string `json:"orderId"`
	UserEmail string `json:"userEmail"`
	Points    int64  `json:"points"`
	Status    string `json:"status,omitempty"`    // empty on markers written before pending existed
	CreatedAt int64  `json:"createdAt,omitempty"` // unix millis
	AwardedAt int64  `json:"awardedAt,omitempty"`
}

// Request is a points award that could not be applied inline.
type Request struct {
	User    string `json:"user"`
	OrderID string `json:"order_id"`
	Points  int64  `json:"points"`
	Reason  string `json:"reason,omitempty"`
}

func (r Request) Validate() error {
	if r.User == "" || r.OrderID == "" {
		return fmt.Errorf("award request: user and order id are required")
	}
	return nil
}

// PendingOp records that orderID owes user points. Add it to the batch that
// creates the order.
func PendingOp(user, orderID string, points int64, at time.Time) (docstore.Op, error) {
	data, err := docstore.Encode(award{OrderID: orderID, UserEmail: user, Points: points, Status: StatusPending, CreatedAt: at.UnixMilli()})
	if err != nil {
		return docstore.Op{}, err
	}
	return docstore.CreateOp(CollectionAwards, orderID, data), nil
}

type Awarder struct {
	store docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewAwarder(store docstore.Store, log *zap.Logger) *Awarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Awarder{store: store, log: log, now: time.Now}
}

// Award adds points to user's balance for orderID. It reports false without
// error when the order was already credited.
func (a *Awarder) Award(ctx context.Context, user, orderID string, points int64) (bool, error) {
	if points <= 0 {
		return false, nil
	}
	now := a.now().UnixMilli()

	var mark docstore.Op
	doc, err := a.store.Get(ctx, CollectionAwards, orderID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		data, err := docstore.Encode(award{OrderID: orderID, UserEmail: user, Points: points, Status: StatusAwarded, CreatedAt: now, AwardedAt: now})
		if err != nil {
			return false, err
		}
		mark = docstore.CreateOp(CollectionAwards, orderID, data)
	case err != nil:
		return false, err
	default:
		var cur award
		if err := doc.Decode(&cur); err != nil {
			return false, fmt.Errorf("award %s: %w", orderID, err)
		}
		if cur.Status != StatusPending {
			a.log.Debug("points already awarded", zap.String("order_id", orderID))
			return false, nil
		}
		mark = docstore.UpdateOp(CollectionAwards, orderID, map[string]any{
			"status":    StatusAwarded,
			"awardedAt": now,
		}).If(map[string]any{"status": StatusPending})
	}

	err = a.store.RunBatch(ctx, mark, docstore.IncrementOp(voucher.CollectionUsers, user, voucher.FieldPoints, points))
	if errors.Is(err, docstore.ErrAlreadyExists) || errors.Is(err, docstore.ErrPrecondition) {
		a.log.Debug("points already awarded", zap.String("order_id", orderID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile applies pending awards created at least olderThan ago. Younger
// markers are left to the inline award and the retry topic. It returns how
// many awards it applied.
func (a *Awarder) Reconcile(ctx context.Context, olderThan time.Duration) (int, error) {
	docs, err := a.store.Query(ctx, CollectionAwards, docstore.Eq("status", StatusPending))
	if err != nil {
		return 0, err
	}
	cutoff := a.now().Add(-olderThan).UnixMilli()
	var (
		applied int
		errs    []error
	)
	for _, d := range docs {
		var m award
		if err := d.Decode(&m); err != nil {
			continue
		}
		if m.CreatedAt > cutoff {
			continue
		}
		ok, err := a.Award(ctx, m.UserEmail, d.ID, m.Points)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", d.ID, err))
			continue
		}
		if ok {
			applied++
			a.log.Info("pending points reconciled", zap.String("order_id", d.ID), zap.Int64("points", m.Points))
		}
	}
	return applied, errors.Join(errs...)
}

// RetryQueue holds awards to be applied later.
type RetryQueue interface {
	Enqueue(ctx context.Context, r Request) error
}

// Emitter publishes an event payload to a topic.
type Emitter interface {
	Emit(ctx context.Context, topic, eventType, key string, payload any) error
}

// KafkaQueue sends award requests to the loyalty retry topic.
type KafkaQueue struct {
	Emitter Emitter
}

func (q KafkaQueue) Enqueue(ctx context.Context, r Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return q.Emitter.Emit(ctx, TopicPointsRetry, EventPointsAwardRequested, r.OrderID, r)
}
