package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/identity"
)

func seed(t *testing.T, store docstore.Store, recs ...Record) {
	t.Helper()
	for _, r := range recs {
		data, err := docstore.Encode(r)
		require.NoError(t, err)
		require.NoError(t, store.Set(context.Background(), Collection, r.ID, data))
	}
}

func rec(id, owner, date string) Record {
	return Record{
		ID:        id,
		Date:      date,
		UserEmail: owner,
		Items:     []cart.Line{{Name: "Fried Rice", Quantity: 1, UnitPrice: dec("12.90")}},
	}
}

func TestListByUser_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store,
		rec("a", user, "2024-01-15 10:30"),
		rec("b", user, "2024-02-01 09:00"),
		rec("c", user, "garbage"),
		rec("d", "other@example.com", "2024-03-01 09:00"),
	)

	got, err := (&Repository{Store: store}).ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestLoadAll_SkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, rec("ok", user, "2024-01-15 10:30"))
	require.NoError(t, store.Set(ctx, Collection, "bad-items", json.RawMessage(`{"id":"bad-items","items":"nope"}`)))
	require.NoError(t, store.Set(ctx, Collection, "zero-qty", json.RawMessage(`{"id":"zero-qty","items":[{"name":"X","quantity":0,"unitPrice":1}]}`)))
	// legacy records stored prices as numbers
	require.NoError(t, store.Set(ctx, Collection, "legacy", json.RawMessage(`{"date":"2024-01-16 12:00","items":[{"name":"Tea","quantity":2,"unitPrice":3.5}],"feedback":"","userEmail":"a@example.com"}`)))

	all, err := (&Repository{Store: store}).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "legacy", all[0].ID)
	assert.True(t, all[0].Subtotal().Equal(dec("7")))

	_, err = (&Repository{Store: store}).Get(ctx, "bad-items")
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSubmitFeedback_OnceAndOwnerOnly(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, rec("a", user, "2024-01-15 10:30"))
	ev := &recordingEmitter{}
	repo := &Repository{Store: store, Events: ev}

	assert.ErrorIs(t, repo.SubmitFeedback(ctx, user, "a", "  "), ErrEmptyFeedback)
	assert.ErrorIs(t, repo.SubmitFeedback(ctx, "other@example.com", "a", "hi"), ErrRecordNotFound)
	assert.ErrorIs(t, repo.SubmitFeedback(ctx, user, "missing", "hi"), ErrRecordNotFound)

	require.NoError(t, repo.SubmitFeedback(ctx, user, "a", "Tasty!"))
	assert.ErrorIs(t, repo.SubmitFeedback(ctx, user, "a", "Changed my mind"), ErrFeedbackAlreadySubmitted)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Tasty!", got.Feedback)
	require.Len(t, ev.events, 1)
	assert.Equal(t, EventFeedbackSubmitted, ev.events[0].eventType)
}

func TestReply_StaffOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	seed(t, store, rec("a", user, "2024-01-15 10:30"))
	repo := &Repository{Store: store}
	staff := identity.User{Key: "staff@example.com", Staff: true}

	assert.ErrorIs(t, repo.Reply(ctx, identity.User{Key: user}, "a", "thanks"), identity.ErrForbidden)
	assert.ErrorIs(t, repo.Reply(ctx, staff, "missing", "thanks"), ErrRecordNotFound)

	require.NoError(t, repo.Reply(ctx, staff, "a", "Thanks for coming"))
	assert.ErrorIs(t, repo.Reply(ctx, staff, "a", "again"), ErrReplyAlreadySet)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.AdminReply)
	assert.Equal(t, "Thanks for coming", *got.AdminReply)
}

func TestReply_LegacyEmptyReplyCountsAsUnset(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Set(ctx, Collection, "old", json.RawMessage(
		`{"id":"old","date":"2023-06-01 12:00","userEmail":"a@example.com","feedback":"ok","adminReply":"",`+
			`"items":[{"name":"Fried Rice","quantity":1,"unitPrice":"12.90","remarks":""}]}`)))
	repo := &Repository{Store: store}
	staff := identity.User{Key: "staff@example.com", Staff: true}

	require.NoError(t, repo.Reply(ctx, staff, "old", "Thank you"))
	assert.ErrorIs(t, repo.Reply(ctx, staff, "old", "again"), ErrReplyAlreadySet)

	got, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got.AdminReply)
	assert.Equal(t, "Thank you", *got.AdminReply)
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	first := rec("a", user, "2024-01-15 10:30")
	first.Feedback = "Good"
	second := rec("b", user, "2024-01-16 10:30")
	second.Feedback = "Great"
	seed(t, store, first, second, rec("c", user, "2024-01-17 10:30"))

	got, err := (&Repository{Store: store}).Reviews(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := docstore.NewMemory()
	repo := &Repository{Store: store}

	var sizes []int
	stop, err := repo.Watch(ctx, func(rs []Record) { sizes = append(sizes, len(rs)) })
	require.NoError(t, err)
	defer stop()

	seed(t, store, rec("a", user, "2024-01-15 10:30"))
	assert.Equal(t, []int{0, 1}, sizes)
}
