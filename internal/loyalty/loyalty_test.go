package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	kafkax "github.com/ariefcatur/go-orderwise/internal/kafka"
	"github.com/ariefcatur/go-orderwise/internal/redisx"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

const user = "a@example.com"

func balance(t *testing.T, store docstore.Store) int64 {
	t.Helper()
	n, err := voucher.NewLedger(store, nil).Balance(context.Background(), user)
	require.NoError(t, err)
	return n
}

func TestAward_OncePerOrder(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	a := NewAwarder(store, nil)

	ok, err := a.Award(ctx, user, "o-1", 27)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Award(ctx, user, "o-1", 27)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Award(ctx, user, "o-2", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(30), balance(t, store))
}

func TestAward_NoPoints(t *testing.T) {
	store := docstore.NewMemory()
	ok, err := NewAwarder(store, nil).Award(context.Background(), user, "o-1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), balance(t, store))
}

type capturePublisher struct{ msgs []kafkago.Message }

func (c *capturePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) error {
	c.msgs = append(c.msgs, kafkago.Message{Topic: topic, Key: key, Value: value, Headers: headers})
	return nil
}

func newWorker(t *testing.T, store docstore.Store) *Worker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Worker{Awarder: NewAwarder(store, nil), Dedup: redisx.NewDedup(rdb, "loyalty")}
}

func TestKafkaQueue_WorkerAppliesOnce(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	q := KafkaQueue{Emitter: kafkax.NewEmitter(pub, "orderwise-api")}

	require.NoError(t, q.Enqueue(ctx, Request{User: user, OrderID: "o-9", Points: 12}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, TopicPointsRetry, pub.msgs[0].Topic)
	assert.Equal(t, "o-9", string(pub.msgs[0].Key))

	store := docstore.NewMemory()
	w := newWorker(t, store)

	require.NoError(t, w.HandleAwardRequested(ctx, pub.msgs[0]))
	require.NoError(t, w.HandleAwardRequested(ctx, pub.msgs[0]))
	assert.Equal(t, int64(12), balance(t, store))

	// a second event for the same order is deduplicated by the award record
	require.NoError(t, q.Enqueue(ctx, Request{User: user, OrderID: "o-9", Points: 12}))
	require.NoError(t, w.HandleAwardRequested(ctx, pub.msgs[1]))
	assert.Equal(t, int64(12), balance(t, store))
}

func TestKafkaQueue_RejectsIncomplete(t *testing.T) {
	q := KafkaQueue{Emitter: kafkax.NewEmitter(&capturePublisher{}, "svc")}
	assert.Error(t, q.Enqueue(context.Background(), Request{OrderID: "o-1"}))
}

func TestWorker_IgnoresOtherEventsAndGarbage(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	w := newWorker(t, store)

	require.NoError(t, w.HandleAwardRequested(ctx, kafkago.Message{Value: []byte("{bad")}))

	other, _ := json.Marshal(kafkax.Envelope{EventID: "e1", EventType: "OrderPlaced"})
	require.NoError(t, w.HandleAwardRequested(ctx, kafkago.Message{Value: other}))
	assert.Equal(t, int64(0), balance(t, store))
}

type flakyStore struct {
	docstore.Store
	down bool
}

func (f *flakyStore) RunBatch(ctx context.Context, ops ...docstore.Op) error {
	if f.down {
		return docstore.Unavailable(errors.New("connection refused"))
	}
	return f.Store.RunBatch(ctx, ops...)
}

func TestWorker_ReleasesClaimOnFailure(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	q := KafkaQueue{Emitter: kafkax.NewEmitter(pub, "svc")}
	require.NoError(t, q.Enqueue(ctx, Request{User: user, OrderID: "o-5", Points: 4}))

	store := &flakyStore{Store: docstore.NewMemory(), down: true}
	w := newWorker(t, store)

	assert.ErrorIs(t, w.HandleAwardRequested(ctx, pub.msgs[0]), docstore.ErrUnavailable)

	store.down = false
	require.NoError(t, w.HandleAwardRequested(ctx, pub.msgs[0]))
	assert.Equal(t, int64(4), balance(t, store))
}

func TestAward_FlipsPendingMarkerOnce(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	op, err := PendingOp(user, "o-7", 27, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.RunBatch(ctx, op))

	a := NewAwarder(store, nil)
	ok, err := a.Award(ctx, user, "o-7", 27)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Award(ctx, user, "o-7", 27)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(27), balance(t, store))

	doc, err := store.Get(ctx, CollectionAwards, "o-7")
	require.NoError(t, err)
	var m award
	require.NoError(t, doc.Decode(&m))
	assert.Equal(t, StatusAwarded, m.Status)
}

func TestAward_LegacyMarkerCountsAsAwarded(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, CollectionAwards, "o-old",
		json.RawMessage(`{"orderId":"o-old","userEmail":"a@example.com","points":5,"awardedAt":1700000000000}`)))

	ok, err := NewAwarder(store, nil).Award(ctx, user, "o-old", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), balance(t, store))
}

func TestReconcile_AppliesStalePendingAwards(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	stale, err := PendingOp(user, "o-stale", 10, now.Add(-10*time.Minute))
	require.NoError(t, err)
	fresh, err := PendingOp(user, "o-fresh", 4, now.Add(-5*time.Second))
	require.NoError(t, err)
	require.NoError(t, store.RunBatch(ctx, stale, fresh))

	a := NewAwarder(store, nil)
	a.now = func() time.Time { return now }

	n, err := a.Reconcile(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(10), balance(t, store))

	n, err = a.Reconcile(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = a.Reconcile(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(14), balance(t, store))
}

func TestReconcile_ReportsFailures(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	op, err := PendingOp(user, "o-1", 3, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, mem.RunBatch(ctx, op))

	store := &flakyStore{Store: mem, down: true}
	a := NewAwarder(store, nil)
	n, err := a.Reconcile(ctx, time.Minute)
	assert.ErrorIs(t, err, docstore.ErrUnavailable)
	assert.Zero(t, n)

	store.down = false
	n, err = a.Reconcile(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
