package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store. Every write holds a single lock, so batches
// are serialized against each other.
type Memory struct {
	mu    sync.Mutex
	colls map[string]map[string]json.RawMessage

	subMu  sync.Mutex
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	collection string
	filters    []Filter
	onChange   func([]Doc)
}

func NewMemory() *Memory {
	return &Memory{
		colls: map[string]map[string]json.RawMessage{},
		subs:  map[int]*subscription{},
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return Doc{}, Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.colls[collection][id]
	if !ok {
		return Doc{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Doc{ID: id, Data: clone(data)}, nil
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, filters), nil
}

func (m *Memory) queryLocked(collection string, filters []Filter) []Doc {
	out := []Doc{}
	for id, data := range m.colls[collection] {
		if matches(data, filters) {
			out = append(out, Doc{ID: id, Data: clone(data)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	return m.RunBatch(ctx, SetOp(collection, id, data))
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return m.RunBatch(ctx, UpdateOp(collection, id, fields))
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.RunBatch(ctx, DeleteOp(collection, id))
}

type staged struct {
	op     Op
	data   json.RawMessage
	exists bool
}

func (m *Memory) RunBatch(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err)
	}
	m.mu.Lock()
	pending := map[string]*staged{}
	order := make([]string, 0, len(ops))
	for _, op := range ops {
		k := op.key()
		st, ok := pending[k]
		if !ok {
			data, exists := m.colls[op.Collection][op.ID]
			st = &staged{data: data, exists: exists}
			pending[k] = st
			order = append(order, k)
		}
		next, remove, err := apply(op, st.data, st.exists)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		st.op = op
		st.data, st.exists = next, !remove
	}

	touched := map[string]bool{}
	for _, k := range order {
		st := pending[k]
		coll := st.op.Collection
		touched[coll] = true
		if !st.exists {
			delete(m.colls[coll], st.op.ID)
			continue
		}
		if m.colls[coll] == nil {
			m.colls[coll] = map[string]json.RawMessage{}
		}
		m.colls[coll][st.op.ID] = clone(st.data)
	}
	m.mu.Unlock()

	for coll := range touched {
		m.notify(coll)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Doc)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = &subscription{collection: collection, filters: filters, onChange: onChange}
	m.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	m.mu.Lock()
	docs := m.queryLocked(collection, filters)
	m.mu.Unlock()
	onChange(docs)

	return func() {
		stop()
		unsubscribe()
	}, nil
}

func (m *Memory) notify(collection string) {
	m.subMu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.collection == collection {
			subs = append(subs, s)
		}
	}
	m.subMu.Unlock()

	for _, s := range subs {
		m.mu.Lock()
		docs := m.queryLocked(collection, s.filters)
		m.mu.Unlock()
		s.onChange(docs)
	}
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
