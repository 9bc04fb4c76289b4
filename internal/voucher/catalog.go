package voucher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/redisx"
)

// Cache is the read-through cache for the active catalog.
type Cache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Store(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, key string) error
}

type Catalog struct {
	store docstore.Store
	cache Cache // optional
	log   *zap.Logger
}

func NewCatalog(store docstore.Store, cache Cache, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, cache: cache, log: log}
}

// Create assigns an id when blank and uppercases the code.
func (c *Catalog) Create(ctx context.Context, v Voucher) (Voucher, error) {
	v = v.normalize()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if err := v.Validate(); err != nil {
		return Voucher{}, err
	}
	if err := c.put(ctx, v); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func (c *Catalog) Update(ctx context.Context, v Voucher) (Voucher, error) {
	v = v.normalize()
	if v.ID == "" {
		return Voucher{}, fmt.Errorf("%w: id is required", ErrInvalidVoucher)
	}
	if err := v.Validate(); err != nil {
		return Voucher{}, err
	}
	if _, err := c.Get(ctx, v.ID); err != nil {
		return Voucher{}, err
	}
	if err := c.put(ctx, v); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func (c *Catalog) put(ctx context.Context, v Voucher) error {
	data, err := docstore.Encode(v)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, CollectionVouchers, v.ID, data); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, CollectionVouchers, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Voucher, error) {
	doc, err := c.store.Get(ctx, CollectionVouchers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Voucher{}, fmt.Errorf("%s: %w", id, ErrVoucherNotFound)
	}
	if err != nil {
		return Voucher{}, err
	}
	var v Voucher
	if err := doc.Decode(&v); err != nil {
		return Voucher{}, fmt.Errorf("decode voucher %s: %w", id, err)
	}
	if v.ID == "" {
		v.ID = doc.ID
	}
	return v, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]Voucher, error) {
	docs, err := c.store.Query(ctx, CollectionVouchers)
	if err != nil {
		return nil, err
	}
	return c.decode(docs), nil
}

// ListActive returns vouchers with isActive set, served from cache when possible.
func (c *Catalog) ListActive(ctx context.Context) ([]Voucher, error) {
	if c.cache != nil {
		var cached []Voucher
		ok, err := c.cache.Load(ctx, redisx.KeyActiveVouchers, &cached)
		if err != nil {
			c.log.Warn("voucher cache load", zap.Error(err))
		}
		if ok {
			return cached, nil
		}
	}
	docs, err := c.store.Query(ctx, CollectionVouchers, docstore.Eq("isActive", true))
	if err != nil {
		return nil, err
	}
	out := c.decode(docs)
	if c.cache != nil {
		if err := c.cache.Store(ctx, redisx.KeyActiveVouchers, out); err != nil {
			c.log.Warn("voucher cache store", zap.Error(err))
		}
	}
	return out, nil
}

// Watch streams the full catalog on every change.
func (c *Catalog) Watch(ctx context.Context, onChange func([]Voucher)) (func(), error) {
	return c.store.Subscribe(ctx, CollectionVouchers, nil, func(docs []docstore.Doc) {
		onChange(c.decode(docs))
	})
}

func (c *Catalog) decode(docs []docstore.Doc) []Voucher {
	out := make([]Voucher, 0, len(docs))
	for _, d := range docs {
		var v Voucher
		if err := d.Decode(&v); err != nil {
			c.log.Warn("skip malformed voucher", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		if v.ID == "" {
			v.ID = d.ID
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PointsRequired < out[j].PointsRequired })
	return out
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, redisx.KeyActiveVouchers); err != nil {
		c.log.Warn("voucher cache invalidate", zap.Error(err))
	}
}
