// Package cart holds the mutable line items of one ordering session.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-orderwise/internal/pickup"
)

var (
	ErrInvalidLine  = errors.New("invalid cart line")
	ErrLineNotFound = errors.New("cart line not found")
)

// Line is one cart entry. Remarks carries the selected/removed ingredients.
type Line struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Remarks   string          `json:"remarks"`
	Category  string          `json:"category,omitempty"`
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLine)
	}
	if l.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1 for %s", ErrInvalidLine, l.Name)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative unit price for %s", ErrInvalidLine, l.Name)
	}
	return nil
}

func (l Line) sameItem(name, remarks string) bool {
	return l.Name == name && l.Remarks == remarks
}

// Subtotal sums unit price times quantity.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Cart is safe for concurrent use. No two lines share (Name, Remarks).
type Cart struct {
	mu    sync.Mutex
	lines []Line

	subs    map[int]chan []Line
	nextSub int
}

func New() *Cart {
	return &Cart{subs: map[int]chan []Line{}}
}

// Add merges into an existing line with the same name and remarks, or appends.
func (c *Cart) Add(l Line) error {
	if err := l.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(l.Name, l.Remarks); i >= 0 {
		c.lines[i].Quantity += l.Quantity
	} else {
		c.lines = append(c.lines, l)
	}
	c.publishLocked()
	return nil
}

func (c *Cart) Remove(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("index %d: %w", index, ErrLineNotFound)
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	c.publishLocked()
	return nil
}

// UpdateQuantity sets the quantity at index; zero or less removes the line.
func (c *Cart) UpdateQuantity(index, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("index %d: %w", index, ErrLineNotFound)
	}
	if quantity <= 0 {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
	} else {
		c.lines[index].Quantity = quantity
	}
	c.publishLocked()
	return nil
}

// Replace swaps the line identified by (name, remarks) for l, merging if l
// collides with another line.
func (c *Cart) Replace(name, remarks string, l Line) error {
	if err := l.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(name, remarks)
	if i < 0 {
		return fmt.Errorf("%s (%s): %w", name, remarks, ErrLineNotFound)
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	if j := c.indexLocked(l.Name, l.Remarks); j >= 0 {
		c.lines[j].Quantity += l.Quantity
	} else {
		c.lines = append(c.lines, l)
	}
	c.publishLocked()
	return nil
}

// RemoveLines takes ordered out of the cart. Quantity added to a line after
// the snapshot was taken stays, as do lines the snapshot never saw.
func (c *Cart) RemoveLines(ordered []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range ordered {
		i := c.indexLocked(o.Name, o.Remarks)
		if i < 0 {
			continue
		}
		if c.lines[i].Quantity > o.Quantity {
			c.lines[i].Quantity -= o.Quantity
			continue
		}
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
	if len(c.lines) == 0 {
		c.lines = nil
	}
	c.publishLocked()
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.publishLocked()
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.Lines())
}

// Subscribe delivers a snapshot after every mutation. Slow readers only see
// the latest snapshot.
func (c *Cart) Subscribe() (<-chan []Line, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan []Line, 1)
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Cart) indexLocked(name, remarks string) int {
	for i, l := range c.lines {
		if l.sameItem(name, remarks) {
			return i
		}
	}
	return -1
}

func (c *Cart) snapshotLocked() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.snapshotLocked()
	}
}

// Session is one user's active ordering state.
type Session struct {
	Cart *Cart

	mu            sync.Mutex
	paymentMethod string
	pickup        *pickup.Selection
}

func NewSession() *Session { return &Session{Cart: New()} }

func (s *Session) SetPaymentMethod(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethod = m
}

func (s *Session) PaymentMethod() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentMethod
}

func (s *Session) SetPickup(sel *pickup.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickup = sel
}

func (s *Session) Pickup() *pickup.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pickup == nil {
		return nil
	}
	sel := *s.pickup
	return &sel
}

// Registry keeps one session per user identity.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Session(user string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[user]
	if !ok {
		s = NewSession()
		r.sessions[user] = s
	}
	return s
}
