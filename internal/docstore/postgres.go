package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel carries the collection name of every committed write.
const NotifyChannel = "docstore_changes"

// Postgres stores documents as JSONB rows in the documents table
// (see postgres.Migrate). Batches run in one transaction and lock every
// touched row with SELECT ... FOR UPDATE.
type Postgres struct{ DB *pgxpool.Pool }

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{DB: db} }

func (p *Postgres) Get(ctx context.Context, collection, id string) (Doc, error) {
	var data []byte
	err := p.DB.QueryRow(ctx, `SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Doc{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Doc{}, Unavailable(err)
	}
	return Doc{ID: id, Data: data}, nil
}

func (p *Postgres) Query(ctx context.Context, collection string, filters ...Filter) ([]Doc, error) {
	contains := map[string]any{}
	for _, f := range filters {
		contains[f.Field] = f.Value
	}
	cond, err := json.Marshal(contains)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	rows, err := p.DB.Query(ctx, `
		SELECT id, data FROM documents
		WHERE collection=$1 AND data @> $2::jsonb
		ORDER BY id`, collection, string(cond))
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var d Doc
		var data []byte
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, Unavailable(err)
		}
		d.Data = data
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return out, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	return p.RunBatch(ctx, SetOp(collection, id, data))
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return p.RunBatch(ctx, UpdateOp(collection, id, fields))
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	return p.RunBatch(ctx, DeleteOp(collection, id))
}

func (p *Postgres) RunBatch(ctx context.Context, ops ...Op) error {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Unavailable(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	touched := map[string]bool{}
	for _, op := range ops {
		if op.Kind == OpIncrement {
			// make sure there is a row to lock
			if _, err := tx.Exec(ctx, `
				INSERT INTO documents(collection, id, data) VALUES ($1, $2, '{}'::jsonb)
				ON CONFLICT (collection, id) DO NOTHING`, op.Collection, op.ID); err != nil {
				return Unavailable(err)
			}
		}

		var cur []byte
		exists := true
		err := tx.QueryRow(ctx, `SELECT data FROM documents WHERE collection=$1 AND id=$2 FOR UPDATE`,
			op.Collection, op.ID).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			exists = false
		} else if err != nil {
			return Unavailable(err)
		}

		next, remove, err := apply(op, cur, exists)
		if err != nil {
			return err // rollback via defer
		}

		if remove {
			_, err = tx.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, op.Collection, op.ID)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO documents(collection, id, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
				ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
				op.Collection, op.ID, string(next))
		}
		if err != nil {
			return Unavailable(err)
		}
		touched[op.Collection] = true
	}

	// delivered to listeners on commit only
	for coll := range touched {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, coll); err != nil {
			return Unavailable(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, filters []Filter, onChange func([]Doc)) (func(), error) {
	conn, err := p.DB.Acquire(ctx)
	if err != nil {
		return nil, Unavailable(err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, Unavailable(err)
	}

	docs, err := p.Query(ctx, collection, filters...)
	if err != nil {
		conn.Release()
		return nil, err
	}
	onChange(docs)

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			_, _ = conn.Exec(context.Background(), `UNLISTEN *`)
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				return
			}
			if n.Payload != collection {
				continue
			}
			docs, err := p.Query(subCtx, collection, filters...)
			if err != nil {
				continue
			}
			onChange(docs)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
