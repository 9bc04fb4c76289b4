// Package docstore is the document persistence boundary used by the ordering
// core. Documents are JSON objects addressed by (collection, id).
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrPrecondition  = errors.New("precondition failed")
	ErrUnavailable   = errors.New("persistence unavailable")
)

// Unavailable wraps a backend failure so callers can match ErrUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type Doc struct {
	ID   string
	Data json.RawMessage
}

func (d Doc) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Encode marshals v into document data.
func Encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Filter is a top-level field equality condition.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, v any) Filter { return Filter{Field: field, Value: v} }

type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error)
	Set(ctx context.Context, collection, id string, data json.RawMessage) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error

	// RunBatch applies every op or none of them.
	RunBatch(ctx context.Context, ops ...Op) error

	// Subscribe calls onChange with the current matching documents and again
	// after every committed write to the collection until unsubscribed or ctx ends.
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Doc)) (unsubscribe func(), err error)
}

type OpKind int

const (
	OpSet OpKind = iota + 1
	OpCreate
	OpUpdate
	OpIncrement
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpIncrement:
		return "increment"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

type Op struct {
	Kind       OpKind
	Collection string
	ID         string

	Data   json.RawMessage // set, create
	Fields map[string]any  // update
	Match  map[string]any  // update precondition; a nil value matches a missing field

	Field string // increment
	Delta int64
	Floor *int64
}

func SetOp(collection, id string, data json.RawMessage) Op {
	return Op{Kind: OpSet, Collection: collection, ID: id, Data: data}
}

func CreateOp(collection, id string, data json.RawMessage) Op {
	return Op{Kind: OpCreate, Collection: collection, ID: id, Data: data}
}

func UpdateOp(collection, id string, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}

// IncrementOp adds delta to an integer field, creating the document when missing.
func IncrementOp(collection, id, field string, delta int64) Op {
	return Op{Kind: OpIncrement, Collection: collection, ID: id, Field: field, Delta: delta}
}

func DeleteOp(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// If guards an update on the current field values.
func (o Op) If(match map[string]any) Op {
	o.Match = match
	return o
}

// WithFloor makes an increment fail with ErrPrecondition when the result would drop below floor.
func (o Op) WithFloor(floor int64) Op {
	o.Floor = &floor
	return o
}

func (o Op) key() string { return o.Collection + "\x00" + o.ID }

// apply computes the next document state for op. remove reports that the
// document must be deleted.
func apply(op Op, cur json.RawMessage, exists bool) (next json.RawMessage, remove bool, err error) {
	switch op.Kind {
	case OpSet:
		return op.Data, false, nil
	case OpCreate:
		if exists {
			return nil, false, fmt.Errorf("%s/%s: %w", op.Collection, op.ID, ErrAlreadyExists)
		}
		return op.Data, false, nil
	case OpDelete:
		return nil, true, nil
	case OpUpdate:
		if !exists {
			return nil, false, fmt.Errorf("%s/%s: %w", op.Collection, op.ID, ErrNotFound)
		}
		m, err := decodeObject(cur)
		if err != nil {
			return nil, false, err
		}
		if !matchAll(m, op.Match) {
			return nil, false, fmt.Errorf("%s/%s: %w", op.Collection, op.ID, ErrPrecondition)
		}
		for k, v := range op.Fields {
			m[k] = v
		}
		next, err = json.Marshal(m)
		return next, false, err
	case OpIncrement:
		m := map[string]any{}
		if exists {
			if m, err = decodeObject(cur); err != nil {
				return nil, false, err
			}
		}
		n, err := intField(m, op.Field)
		if err != nil {
			return nil, false, fmt.Errorf("%s/%s: %w", op.Collection, op.ID, err)
		}
		n += op.Delta
		if op.Floor != nil && n < *op.Floor {
			return nil, false, fmt.Errorf("%s/%s: %s below %d: %w", op.Collection, op.ID, op.Field, *op.Floor, ErrPrecondition)
		}
		m[op.Field] = n
		next, err = json.Marshal(m)
		return next, false, err
	}
	return nil, false, fmt.Errorf("unsupported op kind %d", op.Kind)
}

func decodeObject(b json.RawMessage) (map[string]any, error) {
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func intField(m map[string]any, field string) (int64, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return 0, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %s is not numeric", field)
	}
	if i, err := num.Int64(); err == nil {
		return i, nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return int64(f), nil
}

// matchAll compares by canonical JSON so 3, int64(3) and json.Number("3") are equal.
func matchAll(m map[string]any, match map[string]any) bool {
	for k, want := range match {
		got, ok := m[k]
		if !ok {
			got = nil
		}
		if !sameJSON(got, want) {
			return false
		}
	}
	return true
}

func sameJSON(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func matches(data json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	m, err := decodeObject(data)
	if err != nil {
		return false
	}
	for _, f := range filters {
		got, ok := m[f.Field]
		if !ok || !sameJSON(got, f.Value) {
			return false
		}
	}
	return true
}
