// Package timewindow computes the calendar ranges used to scope sales
// analytics. All functions are pure and work in the location of the supplied
// instant.
package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the persisted purchase timestamp format.
const Layout = "2006-01-02 15:04"

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + " .. " + w.End.Format(time.RFC3339Nano)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Today is midnight to 23:59:59.999 of now's date.
func Today(now time.Time) Window {
	return Window{Start: startOfDay(now), End: endOfDay(now)}
}

// ThisWeek starts at the most recent weekStart on or before now.
func ThisWeek(now time.Time, weekStart time.Weekday) Window {
	back := (int(now.Weekday()) - int(weekStart) + 7) % 7
	return Window{Start: startOfDay(now).AddDate(0, 0, -back), End: endOfDay(now)}
}

func ThisMonth(now time.Time) Window {
	y, m, _ := now.Date()
	return Window{Start: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), End: endOfDay(now)}
}

// LastMonth spans the whole calendar month before now's month.
func LastMonth(now time.Time) Window {
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	start := first.AddDate(0, -1, 0)
	return Window{Start: start, End: endOfDay(first.AddDate(0, 0, -1))}
}

// Custom spans from's midnight to to's day end. Reversed bounds are swapped.
func Custom(from, to time.Time) Window {
	if to.Before(from) {
		from, to = to, from
	}
	return Window{Start: startOfDay(from), End: endOfDay(to)}
}

// ParseTimestamp reads a persisted "yyyy-MM-dd HH:mm" string in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidTimestamp)
	}
	return t, nil
}

func FormatTimestamp(t time.Time) string { return t.Format(Layout) }

type Period string

const (
	PeriodToday     Period = "today"
	PeriodThisWeek  Period = "week"
	PeriodThisMonth Period = "month"
	PeriodLastMonth Period = "lastMonth"
)

var periodTitles = map[Period]string{
	PeriodToday:     "Today",
	PeriodThisWeek:  "This Week",
	PeriodThisMonth: "This Month",
	PeriodLastMonth: "Last Month",
}

// Periods lists the report periods in display order.
func Periods() []Period {
	return []Period{PeriodToday, PeriodThisWeek, PeriodThisMonth, PeriodLastMonth}
}

func (p Period) Title() string { return periodTitles[p] }

func ParsePeriod(s string) (Period, bool) {
	p := Period(s)
	_, ok := periodTitles[p]
	return p, ok
}

// Resolver binds the week start, location and clock used by the service.
type Resolver struct {
	WeekStart time.Weekday
	Location  *time.Location
	Now       func() time.Time
}

func NewResolver(weekStart time.Weekday, loc *time.Location) Resolver {
	if loc == nil {
		loc = time.Local
	}
	return Resolver{WeekStart: weekStart, Location: loc, Now: time.Now}
}

func (r Resolver) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if r.Location == nil {
		return now()
	}
	return now().In(r.Location)
}

func (r Resolver) Window(p Period) (Window, error) {
	return r.WindowAt(p, r.now())
}

func (r Resolver) WindowAt(p Period, now time.Time) (Window, error) {
	switch p {
	case PeriodToday:
		return Today(now), nil
	case PeriodThisWeek:
		return ThisWeek(now, r.WeekStart), nil
	case PeriodThisMonth:
		return ThisMonth(now), nil
	case PeriodLastMonth:
		return LastMonth(now), nil
	}
	return Window{}, fmt.Errorf("unknown period %q", p)
}

// Parse reads a timestamp in the resolver's location.
func (r Resolver) Parse(s string) (time.Time, error) {
	return ParseTimestamp(s, r.Location)
}

func (r Resolver) Current() time.Time { return r.now() }
