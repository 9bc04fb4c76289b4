// Package menu is the staff-managed menu catalog.
package menu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/redisx"
)

const Collection = "menuItems"

var (
	ErrInvalidItem     = errors.New("invalid menu item")
	ErrItemNotFound    = errors.New("menu item not found")
	ErrUnavailable     = errors.New("menu item not available")
	ErrUnknownOption   = errors.New("unknown option")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type StockStatus string

const (
	StockAvailable    StockStatus = "AVAILABLE"
	StockNotAvailable StockStatus = "NOT_AVAILABLE"
)

type Option struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Item struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	StockStatus       StockStatus     `json:"stockStatus"`
	ImageURI          string          `json:"imageUri"`
	Ingredients       string          `json:"ingredients"` // comma separated
	AdditionalOptions []Option        `json:"additionalOptions"`
}

func (it Item) Available() bool { return it.StockStatus != StockNotAvailable }

// IngredientList splits Ingredients, dropping blanks and duplicates.
func (it Item) IngredientList() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range strings.Split(it.Ingredients, ",") {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (it Item) Validate() error {
	switch {
	case strings.TrimSpace(it.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	case it.Price.IsNegative():
		return fmt.Errorf("%w: negative price", ErrInvalidItem)
	case it.StockStatus != StockAvailable && it.StockStatus != StockNotAvailable:
		return fmt.Errorf("%w: stock status %q", ErrInvalidItem, it.StockStatus)
	}
	for _, o := range it.AdditionalOptions {
		if strings.TrimSpace(o.Name) == "" || o.Price.IsNegative() {
			return fmt.Errorf("%w: option %q", ErrInvalidItem, o.Name)
		}
	}
	return nil
}

// Cache is the read-through cache for available items.
type Cache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Store(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, key string) error
}

type Catalog struct {
	store docstore.Store
	cache Cache
	log   *zap.Logger
}

func NewCatalog(store docstore.Store, cache Cache, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, cache: cache, log: log}
}

// Save creates or replaces an item. Blank ids are assigned and a blank stock
// status means available.
func (c *Catalog) Save(ctx context.Context, it Item) (Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.TrimSpace(it.Category)
	if it.StockStatus == "" {
		it.StockStatus = StockAvailable
	}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	data, err := docstore.Encode(it)
	if err != nil {
		return Item{}, err
	}
	if err := c.store.Set(ctx, Collection, it.ID, data); err != nil {
		return Item{}, err
	}
	c.invalidate(ctx)
	return it, nil
}

func (c *Catalog) SetStock(ctx context.Context, id string, s StockStatus) error {
	if s != StockAvailable && s != StockNotAvailable {
		return fmt.Errorf("%w: stock status %q", ErrInvalidItem, s)
	}
	err := c.store.Update(ctx, Collection, id, map[string]any{"stockStatus": s})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, Collection, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Item, error) {
	doc, err := c.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Item{}, fmt.Errorf("%s: %w", id, ErrItemNotFound)
	}
	if err != nil {
		return Item{}, err
	}
	var it Item
	if err := doc.Decode(&it); err != nil {
		return Item{}, fmt.Errorf("decode menu item %s: %w", id, err)
	}
	if it.ID == "" {
		it.ID = doc.ID
	}
	return it, nil
}

func (c *Catalog) List(ctx context.Context) ([]Item, error) {
	docs, err := c.store.Query(ctx, Collection)
	if err != nil {
		return nil, err
	}
	return c.decode(docs), nil
}

// ListAvailable is what customers browse.
func (c *Catalog) ListAvailable(ctx context.Context) ([]Item, error) {
	if c.cache != nil {
		var cached []Item
		ok, err := c.cache.Load(ctx, redisx.KeyAvailableMenu, &cached)
		if err != nil {
			c.log.Warn("menu cache load", zap.Error(err))
		}
		if ok {
			return cached, nil
		}
	}
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(all))
	for _, it := range all {
		if it.Available() {
			out = append(out, it)
		}
	}
	if c.cache != nil {
		if err := c.cache.Store(ctx, redisx.KeyAvailableMenu, out); err != nil {
			c.log.Warn("menu cache store", zap.Error(err))
		}
	}
	return out, nil
}

// Lookup maps item name to category for analytics.
func (c *Catalog) Lookup(ctx context.Context) (map[string]string, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return CategoryLookup(items), nil
}

func CategoryLookup(items []Item) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.Name] = it.Category
	}
	return out
}

// Categories lists distinct non-empty categories in name order.
func Categories(items []Item) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Watch(ctx context.Context, onChange func([]Item)) (func(), error) {
	return c.store.Subscribe(ctx, Collection, nil, func(docs []docstore.Doc) {
		onChange(c.decode(docs))
	})
}

func (c *Catalog) decode(docs []docstore.Doc) []Item {
	out := make([]Item, 0, len(docs))
	for _, d := range docs {
		var it Item
		if err := d.Decode(&it); err != nil {
			c.log.Warn("skip malformed menu item", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		if it.ID == "" {
			it.ID = d.ID
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, redisx.KeyAvailableMenu); err != nil {
		c.log.Warn("menu cache invalidate", zap.Error(err))
	}
}
