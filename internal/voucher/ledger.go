package voucher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
)

// Ledger moves points and redemptions. Balance changes only happen inside
// store batches so concurrent redeems for one user cannot overspend.
type Ledger struct {
	store docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewLedger(store docstore.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, log: log, now: time.Now}
}

// Balance reads the user's point balance; a missing user has zero.
func (l *Ledger) Balance(ctx context.Context, user string) (int64, error) {
	doc, err := l.store.Get(ctx, CollectionUsers, user)
	if errors.Is(err, docstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var u struct {
		Points int64 `json:"loyaltyPoints"`
	}
	if err := doc.Decode(&u); err != nil {
		return 0, fmt.Errorf("decode user %s: %w", user, err)
	}
	return u.Points, nil
}

// Redeem exchanges v.PointsRequired points for a new redemption. The deduction
// and the redemption are written in one batch with a floor of zero on the
// balance, so a lost race fails with ErrInsufficientPoints.
func (l *Ledger) Redeem(ctx context.Context, user string, v Voucher) (Redemption, error) {
	if !v.IsActive {
		return Redemption{}, fmt.Errorf("%s: %w", v.ID, ErrVoucherInactive)
	}
	if err := v.Validate(); err != nil {
		return Redemption{}, err
	}

	balance, err := l.Balance(ctx, user)
	if err != nil {
		return Redemption{}, err
	}
	if balance < v.PointsRequired {
		return Redemption{}, fmt.Errorf("balance %d, need %d: %w", balance, v.PointsRequired, ErrInsufficientPoints)
	}

	r := Redemption{
		ID:            uuid.NewString(),
		VoucherID:     v.ID,
		Title:         v.Title,
		Code:          v.Code,
		DiscountType:  v.DiscountType,
		DiscountValue: v.DiscountValue,
		Status:        StatusRedeemed,
		RedeemedAt:    l.now().UnixMilli(),
	}
	data, err := docstore.Encode(r)
	if err != nil {
		return Redemption{}, err
	}

	err = l.store.RunBatch(ctx,
		docstore.IncrementOp(CollectionUsers, user, FieldPoints, -v.PointsRequired).WithFloor(0),
		docstore.CreateOp(RedemptionsCollection(user), r.ID, data),
	)
	switch {
	case errors.Is(err, docstore.ErrPrecondition):
		return Redemption{}, fmt.Errorf("need %d: %w", v.PointsRequired, ErrInsufficientPoints)
	case err != nil:
		l.log.Error("redeem voucher", zap.String("user", user), zap.String("voucher_id", v.ID), zap.Error(err))
		return Redemption{}, err
	}
	return r, nil
}

// ListRedeemed returns the redemptions still available to apply, newest first.
func (l *Ledger) ListRedeemed(ctx context.Context, user string) ([]Redemption, error) {
	docs, err := l.store.Query(ctx, RedemptionsCollection(user), docstore.Eq("status", StatusRedeemed))
	if err != nil {
		return nil, err
	}
	out := make([]Redemption, 0, len(docs))
	for _, d := range docs {
		var r Redemption
		if err := d.Decode(&r); err != nil {
			l.log.Warn("skip malformed redemption", zap.String("user", user), zap.String("id", d.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RedeemedAt > out[j].RedeemedAt })
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, user, id string) (Redemption, error) {
	doc, err := l.store.Get(ctx, RedemptionsCollection(user), id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Redemption{}, fmt.Errorf("%s: %w", id, ErrRedemptionNotFound)
	}
	if err != nil {
		return Redemption{}, err
	}
	var r Redemption
	if err := doc.Decode(&r); err != nil {
		return Redemption{}, fmt.Errorf("decode redemption %s: %w", id, err)
	}
	return r, nil
}

// UseOp is the batch op that moves a redemption from redeemed to used. It
// fails the whole batch if the redemption is missing or already used.
func UseOp(user, id string) docstore.Op {
	op, _ := transitionOp(user, id, StatusRedeemed, StatusUsed)
	return op
}

func transitionOp(user, id string, from, to Status) (docstore.Op, error) {
	if !CanTransition(from, to) {
		return docstore.Op{}, fmt.Errorf("redemption %s: %s -> %s not allowed", id, from, to)
	}
	return docstore.UpdateOp(RedemptionsCollection(user), id, map[string]any{"status": to}).
		If(map[string]any{"status": from}), nil
}

// MarkUsed consumes a redemption. A second call fails with ErrRedemptionUsed.
func (l *Ledger) MarkUsed(ctx context.Context, user, id string) error {
	return UseError(l.store.RunBatch(ctx, UseOp(user, id)))
}

// UseError translates store errors from a batch containing UseOp.
func UseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrRedemptionNotFound, err)
	case errors.Is(err, docstore.ErrPrecondition):
		return fmt.Errorf("%w: %v", ErrRedemptionUsed, err)
	}
	return err
}
