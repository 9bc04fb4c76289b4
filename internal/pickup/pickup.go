// Package pickup offers the dates and fixed-length time slots a customer can
// choose for collecting an order.
package pickup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidClock    = errors.New("invalid clock time")
	ErrInvalidHours    = errors.New("invalid pickup hours")
	ErrSlotUnavailable = errors.New("pickup slot unavailable")
)

const DateLabelLayout = "Mon 02"

// Clock is a time of day in minutes after midnight.
type Clock int

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock accepts "9:00" or "09:00".
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidClock)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidClock)
	}
	return NewClock(hour, minute), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%d:%02d", c.Hour(), c.Minute()) }

// Label renders 12-hour time, e.g. "1:30 PM".
func (c Clock) Label() string {
	h := c.Hour() % 24
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, c.Minute(), suffix)
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type Slot struct {
	Start Clock  `json:"startTime"`
	End   Clock  `json:"endTime"`
	Label string `json:"displayLabel"`
}

type DateOption struct {
	Date  time.Time `json:"date"`
	Label string    `json:"displayLabel"`
	Today bool      `json:"today"`
}

// Selection is a validated pickup date and slot.
type Selection struct {
	Date      time.Time `json:"date"`
	DateLabel string    `json:"displayLabel"`
	Slot      Slot      `json:"timeSlot"`
}

// Hours is the daily pickup window.
type Hours struct {
	Open  Clock
	Close Clock
	Step  time.Duration
}

func DefaultHours() Hours {
	return Hours{Open: NewClock(9, 0), Close: NewClock(17, 0), Step: 30 * time.Minute}
}

func ParseHours(open, close string, stepMinutes int) (Hours, error) {
	o, err := ParseClock(open)
	if err != nil {
		return Hours{}, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return Hours{}, err
	}
	h := Hours{Open: o, Close: c, Step: time.Duration(stepMinutes) * time.Minute}
	if err := h.validate(); err != nil {
		return Hours{}, err
	}
	return h, nil
}

func (h Hours) validate() error {
	if h.Step < time.Minute || h.Close <= h.Open {
		return fmt.Errorf("open=%s close=%s step=%s: %w", h.Open, h.Close, h.Step, ErrInvalidHours)
	}
	return nil
}

// Slots lists every slot that ends at or before closing time.
func (h Hours) Slots() []Slot {
	if h.validate() != nil {
		return nil
	}
	step := Clock(h.Step / time.Minute)
	var out []Slot
	for start := h.Open; start+step <= h.Close; start += step {
		end := start + step
		out = append(out, Slot{Start: start, End: end, Label: start.Label() + " - " + end.Label()})
	}
	return out
}

// DateOptions returns today and tomorrow.
func DateOptions(now time.Time) []DateOption {
	today := midnight(now)
	tomorrow := today.AddDate(0, 0, 1)
	return []DateOption{
		{Date: today, Label: today.Format(DateLabelLayout), Today: true},
		{Date: tomorrow, Label: tomorrow.Format(DateLabelLayout)},
	}
}

// Available returns the slots still offerable on date. On today's date a slot
// is offered only if it starts after the current minute; past dates offer none.
func (h Hours) Available(date, now time.Time) []Slot {
	day := midnight(date.In(now.Location()))
	today := midnight(now)
	switch {
	case day.Before(today):
		return nil
	case day.After(today):
		return h.Slots()
	}
	current := NewClock(now.Hour(), now.Minute())
	var out []Slot
	for _, s := range h.Slots() {
		if s.Start > current {
			out = append(out, s)
		}
	}
	return out
}

// Select validates that the slot starting at start is offered on date.
func (h Hours) Select(date time.Time, start Clock, now time.Time) (Selection, error) {
	for _, s := range h.Available(date, now) {
		if s.Start == start {
			day := midnight(date.In(now.Location()))
			return Selection{Date: day, DateLabel: day.Format(DateLabelLayout), Slot: s}, nil
		}
	}
	return Selection{}, fmt.Errorf("%s at %s: %w", date.Format("2006-01-02"), start, ErrSlotUnavailable)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
