package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/identity"
)

// Repository reads purchase records and applies the two one-way updates a
// record allows: customer feedback and a staff reply.
type Repository struct {
	Store    docstore.Store
	Events   Emitter // optional
	Location *time.Location
	Log      *zap.Logger
}

func (r *Repository) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	doc, err := r.Store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Record{}, fmt.Errorf("%s: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(doc)
}

// ListByUser returns the user's records newest first.
func (r *Repository) ListByUser(ctx context.Context, user string) ([]Record, error) {
	docs, err := r.Store.Query(ctx, Collection, docstore.Eq("userEmail", user))
	if err != nil {
		return nil, err
	}
	out := r.decodeAll(docs)
	r.sortNewestFirst(out)
	return out, nil
}

// LoadAll returns every well-formed record. Malformed documents are logged and skipped.
func (r *Repository) LoadAll(ctx context.Context) ([]Record, error) {
	docs, err := r.Store.Query(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(docs), nil
}

// Watch streams all records on every change.
func (r *Repository) Watch(ctx context.Context, onChange func([]Record)) (func(), error) {
	return r.Store.Subscribe(ctx, Collection, nil, func(docs []docstore.Doc) {
		onChange(r.decodeAll(docs))
	})
}

// Reviews lists records carrying feedback, newest first.
func (r *Repository) Reviews(ctx context.Context) ([]Record, error) {
	all, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if rec.HasFeedback() {
			out = append(out, rec)
		}
	}
	r.sortNewestFirst(out)
	return out, nil
}

// SubmitFeedback sets feedback on the user's own record. It can only happen once.
func (r *Repository) SubmitFeedback(ctx context.Context, user, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyFeedback
	}
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.UserEmail != user {
		return fmt.Errorf("%s: %w", id, ErrRecordNotFound)
	}
	if rec.HasFeedback() {
		return fmt.Errorf("%s: %w", id, ErrFeedbackAlreadySubmitted)
	}

	op := docstore.UpdateOp(Collection, id, map[string]any{"feedback": text}).
		If(map[string]any{"feedback": "", "userEmail": user})
	if err := r.Store.RunBatch(ctx, op); err != nil {
		if errors.Is(err, docstore.ErrPrecondition) {
			return fmt.Errorf("%s: %w", id, ErrFeedbackAlreadySubmitted)
		}
		return err
	}
	r.emit(ctx, EventFeedbackSubmitted, id, FeedbackSubmittedPayload{OrderID: id, UserEmail: user, Feedback: text})
	return nil
}

// Reply sets the staff reply on a record once.
func (r *Repository) Reply(ctx context.Context, by identity.User, id, text string) error {
	if !by.Staff {
		return identity.ErrForbidden
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyFeedback
	}
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	// older records carry an empty string instead of no reply
	var unset any
	if rec.AdminReply != nil {
		if *rec.AdminReply != "" {
			return fmt.Errorf("%s: %w", id, ErrReplyAlreadySet)
		}
		unset = ""
	}
	op := docstore.UpdateOp(Collection, id, map[string]any{"adminReply": text}).
		If(map[string]any{"adminReply": unset})
	err = r.Store.RunBatch(ctx, op)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%s: %w", id, ErrRecordNotFound)
	case errors.Is(err, docstore.ErrPrecondition):
		return fmt.Errorf("%s: %w", id, ErrReplyAlreadySet)
	case err != nil:
		return err
	}
	r.emit(ctx, EventAdminReplied, id, AdminRepliedPayload{OrderID: id, RepliedBy: by.Key, Reply: text})
	return nil
}

func (r *Repository) emit(ctx context.Context, eventType, id string, payload any) {
	if r.Events == nil {
		return
	}
	if err := r.Events.Emit(ctx, TopicOrderFeedback, eventType, id, payload); err != nil {
		r.log().Warn("emit event", zap.String("event", eventType), zap.String("order_id", id), zap.Error(err))
	}
}

func (r *Repository) decodeAll(docs []docstore.Doc) []Record {
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		rec, err := decodeRecord(d)
		if err != nil {
			r.log().Warn("skip malformed record", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// sortNewestFirst orders by parsed date; unparseable dates sort last.
func (r *Repository) sortNewestFirst(recs []Record) {
	at := make(map[string]time.Time, len(recs))
	for _, rec := range recs {
		if t, err := rec.Time(r.Location); err == nil {
			at[rec.ID] = t
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		ti, iok := at[recs[i].ID]
		tj, jok := at[recs[j].ID]
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
}

func decodeRecord(d docstore.Doc) (Record, error) {
	var rec Record
	if err := d.Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, d.ID, err)
	}
	if rec.ID == "" {
		rec.ID = d.ID
	}
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
