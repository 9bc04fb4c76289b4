package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/loyalty"
	"github.com/ariefcatur/go-orderwise/internal/pickup"
	"github.com/ariefcatur/go-orderwise/internal/pricing"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

// Idempotency remembers which record a checkout key produced.
type Idempotency interface {
	Lookup(ctx context.Context, scope, key string) (string, bool, error)
	Remember(ctx context.Context, scope, key, id string) error
}

type Redemptions interface {
	Get(ctx context.Context, user, id string) (voucher.Redemption, error)
}

type PointsAwarder interface {
	Award(ctx context.Context, user, orderID string, points int64) (bool, error)
}

// Checkout turns a cart into a persisted purchase record.
type Checkout struct {
	Store       docstore.Store
	Redemptions Redemptions
	Calc        pricing.Calculator
	Awarder     PointsAwarder
	Retry       loyalty.RetryQueue // optional
	Events      Emitter            // optional
	Idem        Idempotency        // optional
	Location    *time.Location
	Now         func() time.Time
	Log         *zap.Logger
}

type FinalizeRequest struct {
	User           string
	Cart           *cart.Cart
	Pickup         *pickup.Selection
	PaymentMethod  string
	RedemptionID   string
	IdempotencyKey string
}

type Receipt struct {
	Record        Record            `json:"record"`
	Breakdown     pricing.Breakdown `json:"breakdown"`
	PointsAwarded bool              `json:"pointsAwarded"`
	AwardQueued   bool              `json:"awardQueued"`
	Replayed      bool              `json:"replayed"`
}

// Finalize persists the order and consumes the applied redemption in one
// batch. If that batch fails nothing changes: the cart keeps its lines and the
// redemption stays available. Points are awarded after the commit; a failed
// award is queued for retry and never undoes the order.
//
// With an idempotency key the record id is derived from (user, key), so
// concurrent retries race on one document and the losers replay the winner.
func (c *Checkout) Finalize(ctx context.Context, req FinalizeRequest) (Receipt, error) {
	if req.User == "" {
		return Receipt{}, identity.ErrUnauthenticated
	}
	if rc, ok := c.replay(ctx, req); ok {
		return rc, nil
	}
	rc, err := c.place(ctx, req)
	if err != nil && req.IdempotencyKey != "" {
		// another request with this key may have committed since the first lookup
		if prior, ok := c.replay(ctx, req); ok {
			return prior, nil
		}
	}
	return rc, err
}

func (c *Checkout) place(ctx context.Context, req FinalizeRequest) (Receipt, error) {
	log := c.log()

	lines := req.Cart.Lines()
	if len(lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	if !ValidPaymentMethod(req.PaymentMethod) {
		return Receipt{}, fmt.Errorf("%q: %w", req.PaymentMethod, ErrInvalidPaymentMethod)
	}

	var disc *pricing.Discount
	if req.RedemptionID != "" {
		r, err := c.Redemptions.Get(ctx, req.User, req.RedemptionID)
		if err != nil {
			return Receipt{}, err
		}
		if r.Status != voucher.StatusRedeemed {
			return Receipt{}, fmt.Errorf("%s: %w", r.ID, voucher.ErrRedemptionUsed)
		}
		d := r.Discount()
		disc = &d
	}

	b := c.Calc.Quote(lines, disc)
	rec := c.build(req, lines, b)
	data, err := docstore.Encode(rec)
	if err != nil {
		return Receipt{}, err
	}

	ops := []docstore.Op{docstore.CreateOp(Collection, rec.ID, data)}
	if req.RedemptionID != "" {
		ops = append(ops, voucher.UseOp(req.User, req.RedemptionID))
	}
	if b.Points > 0 {
		pending, err := loyalty.PendingOp(req.User, rec.ID, int64(b.Points), c.now())
		if err != nil {
			return Receipt{}, err
		}
		ops = append(ops, pending)
	}
	if err := c.Store.RunBatch(ctx, ops...); err != nil {
		log.Warn("place order", zap.String("user", req.User), zap.Error(err))
		return Receipt{}, voucher.UseError(err)
	}

	// committed: from here on nothing may fail the order
	req.Cart.RemoveLines(lines)
	if c.Idem != nil && req.IdempotencyKey != "" {
		if err := c.Idem.Remember(ctx, req.User, req.IdempotencyKey, rec.ID); err != nil {
			log.Warn("remember checkout key", zap.String("order_id", rec.ID), zap.Error(err))
		}
	}
	c.emitPlaced(ctx, rec, b)

	receipt := Receipt{Record: rec, Breakdown: b}
	receipt.PointsAwarded, receipt.AwardQueued = c.award(ctx, rec, b.Points)
	return receipt, nil
}

// Quote re-derives the totals of a stored record.
func (c *Checkout) Quote(rec Record) pricing.Breakdown {
	return c.Calc.Settle(rec.Subtotal(), rec.DiscountAmount())
}

func (c *Checkout) replay(ctx context.Context, req FinalizeRequest) (Receipt, bool) {
	if req.IdempotencyKey == "" {
		return Receipt{}, false
	}
	id := recordID(req.User, req.IdempotencyKey)
	if c.Idem != nil {
		got, ok, err := c.Idem.Lookup(ctx, req.User, req.IdempotencyKey)
		switch {
		case err != nil:
			c.log().Warn("lookup checkout key", zap.Error(err))
		case ok:
			id = got
		}
	}
	repo := Repository{Store: c.Store, Location: c.Location, Log: c.Log}
	rec, err := repo.Get(ctx, id)
	if err != nil || rec.UserEmail != req.User {
		return Receipt{}, false
	}
	return Receipt{Record: rec, Breakdown: c.Quote(rec), Replayed: true}, true
}

// recordID is the record id a keyed checkout always produces.
func recordID(user, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("checkout\x00"+user+"\x00"+key)).String()
}

func (c *Checkout) build(req FinalizeRequest, lines []cart.Line, b pricing.Breakdown) Record {
	items := make([]cart.Line, len(lines))
	copy(items, lines)

	id := uuid.NewString()
	if req.IdempotencyKey != "" {
		id = recordID(req.User, req.IdempotencyKey)
	}
	rec := Record{
		ID:            id,
		Date:          timewindow.FormatTimestamp(c.now()),
		Items:         items,
		UserEmail:     req.User,
		PaymentMethod: req.PaymentMethod,
		RedemptionID:  req.RedemptionID,
	}
	if req.Pickup != nil {
		rec.PickupDate = strPtr(req.Pickup.DateLabel)
		rec.PickupTimeSlot = strPtr(req.Pickup.Slot.Label)
	}
	if !b.Discount.IsZero() {
		d := b.Discount
		rec.Discount = &d
	}
	return rec
}

func (c *Checkout) emitPlaced(ctx context.Context, rec Record, b pricing.Breakdown) {
	if c.Events == nil {
		return
	}
	items := make([]ItemQty, 0, len(rec.Items))
	for _, it := range rec.Items {
		items = append(items, ItemQty{Name: it.Name, Quantity: it.Quantity})
	}
	date, slot := rec.Pickup()
	p := OrderPlacedPayload{
		OrderID:        rec.ID,
		UserEmail:      rec.UserEmail,
		Items:          items,
		Subtotal:       b.Subtotal,
		Discount:       b.Discount,
		Tax:            b.Tax,
		Total:          b.Total,
		Points:         b.Points,
		PaymentMethod:  rec.PaymentMethod,
		RedemptionID:   rec.RedemptionID,
		PickupDate:     date,
		PickupTimeSlot: slot,
	}
	if err := c.Events.Emit(ctx, TopicOrderPlaced, EventOrderPlaced, rec.ID, p); err != nil {
		c.log().Warn("emit order placed", zap.String("order_id", rec.ID), zap.Error(err))
	}
}

// award credits points inline and falls back to the retry queue.
func (c *Checkout) award(ctx context.Context, rec Record, points int) (awarded, queued bool) {
	if points <= 0 || c.Awarder == nil {
		return false, false
	}
	ok, err := c.Awarder.Award(ctx, rec.UserEmail, rec.ID, int64(points))
	if err == nil {
		return ok, false
	}
	log := c.log().With(zap.String("order_id", rec.ID), zap.Int("points", points))
	log.Warn("award points failed, queueing retry", zap.Error(err))
	if c.Retry == nil {
		log.Error("no retry queue, points not awarded")
		return false, false
	}
	req := loyalty.Request{User: rec.UserEmail, OrderID: rec.ID, Points: int64(points), Reason: err.Error()}
	if qerr := c.Retry.Enqueue(ctx, req); qerr != nil {
		log.Error("queue points retry", zap.Error(errors.Join(err, qerr)))
		return false, false
	}
	return false, true
}

func (c *Checkout) now() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if c.Location != nil {
		return now().In(c.Location)
	}
	return now()
}

func (c *Checkout) log() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}
