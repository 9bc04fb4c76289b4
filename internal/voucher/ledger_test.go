package voucher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/pricing"
)

const user = "a@example.com"

func newTestLedger(t *testing.T, points int) (*Ledger, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	if points >= 0 {
		data, _ := json.Marshal(map[string]any{"email": user, FieldPoints: points})
		require.NoError(t, store.Set(context.Background(), CollectionUsers, user, data))
	}
	return NewLedger(store, nil), store
}

func tenOff(points int64) Voucher {
	return Voucher{
		ID:             "v-10",
		Title:          "10% off",
		Code:           "TENOFF",
		PointsRequired: points,
		DiscountType:   pricing.DiscountPercent,
		DiscountValue:  decimal.NewFromInt(10),
		IsActive:       true,
	}
}

func TestRedeem_DeductsAndRecords(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100)

	r, err := l.Redeem(ctx, user, tenOff(60))
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusRedeemed, r.Status)
	assert.Equal(t, "TENOFF", r.Code)

	bal, err := l.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal)

	list, err := l.ListRedeemed(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
	assert.True(t, list[0].DiscountValue.Equal(decimal.NewFromInt(10)))
}

func TestRedeem_InsufficientPoints(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t, 50)

	_, err := l.Redeem(ctx, user, tenOff(60))
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	bal, err := l.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)

	docs, err := store.Query(ctx, RedemptionsCollection(user))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRedeem_UnknownUserHasNoPoints(t *testing.T) {
	l, _ := newTestLedger(t, -1)
	_, err := l.Redeem(context.Background(), user, tenOff(1))
	assert.ErrorIs(t, err, ErrInsufficientPoints)
}

func TestRedeem_InactiveVoucher(t *testing.T) {
	l, _ := newTestLedger(t, 100)
	v := tenOff(10)
	v.IsActive = false
	_, err := l.Redeem(context.Background(), user, v)
	assert.ErrorIs(t, err, ErrVoucherInactive)
}

func TestRedeem_ConcurrentOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t, 50)

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Redeem(ctx, user, tenOff(30))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientPoints)
			failures++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, failures)

	bal, err := l.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(20), bal)

	docs, err := store.Query(ctx, RedemptionsCollection(user))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMarkUsed_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 100)
	r, err := l.Redeem(ctx, user, tenOff(10))
	require.NoError(t, err)

	require.NoError(t, l.MarkUsed(ctx, user, r.ID))
	assert.ErrorIs(t, l.MarkUsed(ctx, user, r.ID), ErrRedemptionUsed)

	got, err := l.Get(ctx, user, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUsed, got.Status)

	list, err := l.ListRedeemed(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkUsed_NotFound(t *testing.T) {
	l, _ := newTestLedger(t, 0)
	assert.ErrorIs(t, l.MarkUsed(context.Background(), user, "nope"), ErrRedemptionNotFound)

	_, err := l.Get(context.Background(), user, "nope")
	assert.ErrorIs(t, err, ErrRedemptionNotFound)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusRedeemed, StatusUsed))
	assert.False(t, CanTransition(StatusUsed, StatusRedeemed))
	assert.False(t, CanTransition(StatusUsed, StatusUsed))
}

func TestRedeem_StoreUnavailable(t *testing.T) {
	l, _ := newTestLedger(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Redeem(ctx, user, tenOff(10))
	assert.ErrorIs(t, err, docstore.ErrUnavailable)
}
