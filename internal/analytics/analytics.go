// Package analytics aggregates purchase records into windowed sales figures
// and dish popularity. Every function is pure over the records it is given.
package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
)

type DishStat struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Percentage float64 `json:"percentage"`
}

type Summary struct {
	OrderCount int             `json:"orderCount"`
	ItemCount  int             `json:"itemCount"`
	Revenue    decimal.Decimal `json:"revenue"`
	Dishes     []DishStat      `json:"dishBreakdown"`
	// Skipped counts records dropped for an unparseable date.
	Skipped int `json:"skipped"`
}

type Aggregator struct {
	Location *time.Location
	// Categories maps dish name to category for lines saved without one.
	Categories map[string]string
	Log        *zap.Logger
}

func (a Aggregator) log() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// InWindow returns the records dated inside w and how many had invalid dates.
func (a Aggregator) InWindow(records []orders.Record, w timewindow.Window) ([]orders.Record, int) {
	var out []orders.Record
	skipped := 0
	for _, r := range records {
		t, err := r.Time(a.Location)
		if err != nil {
			skipped++
			a.log().Debug("exclude record with invalid date", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		if w.Contains(t) {
			out = append(out, r)
		}
	}
	return out, skipped
}

// Aggregate computes totals over the records inside w. When category is set
// only matching lines enter the dish breakdown; the totals still cover every line.
func (a Aggregator) Aggregate(records []orders.Record, w timewindow.Window, category *string) Summary {
	in, skipped := a.InWindow(records, w)
	s := Summary{OrderCount: len(in), Revenue: decimal.Zero, Skipped: skipped}

	qty := map[string]int{}
	grouped := 0
	for _, r := range in {
		for _, it := range r.Items {
			s.ItemCount += it.Quantity
			s.Revenue = s.Revenue.Add(it.Total())
			if category != nil && a.category(it.Name, it.Category) != *category {
				continue
			}
			qty[it.Name] += it.Quantity
			grouped += it.Quantity
		}
	}
	s.Dishes = breakdown(qty, grouped)
	return s
}

func (a Aggregator) category(name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return a.Categories[name]
}

// breakdown sorts by quantity descending, then name.
func breakdown(qty map[string]int, total int) []DishStat {
	denom := float64(max(total, 1))
	out := make([]DishStat, 0, len(qty))
	for name, q := range qty {
		out = append(out, DishStat{Name: name, Quantity: q, Percentage: float64(q) / denom * 100})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Top returns at most n dishes.
func Top(d []DishStat, n int) []DishStat {
	if n < 0 || len(d) <= n {
		return d
	}
	return d[:n]
}

type SalesReport struct {
	Period            string          `json:"period"`
	TotalSales        decimal.Decimal `json:"totalSales"`
	TotalOrders       int             `json:"totalOrders"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
}

// SalesReports covers Today, This Week, This Month and Last Month relative to now.
func (a Aggregator) SalesReports(records []orders.Record, now time.Time, weekStart time.Weekday) []SalesReport {
	r := timewindow.Resolver{WeekStart: weekStart, Location: a.Location}
	out := make([]SalesReport, 0, 4)
	for _, p := range timewindow.Periods() {
		w, err := r.WindowAt(p, now)
		if err != nil {
			continue
		}
		s := a.Aggregate(records, w, nil)
		out = append(out, report(p.Title(), s))
	}
	return out
}

func report(period string, s Summary) SalesReport {
	avg := decimal.Zero
	if s.OrderCount > 0 {
		avg = s.Revenue.Div(decimal.NewFromInt(int64(s.OrderCount)))
	}
	return SalesReport{Period: period, TotalSales: s.Revenue, TotalOrders: s.OrderCount, AverageOrderValue: avg}
}

// PreOrder is one line of an order scheduled for pickup.
type PreOrder struct {
	OrderID  string `json:"id"`
	Customer string `json:"customerName"`
	Dish     string `json:"dishName"`
	Quantity int    `json:"quantity"`
	Remarks  string `json:"remarks"`
	Time     string `json:"time"`
}

// PreOrders lists the lines of records whose pickup date label equals
// dateLabel, ordered by slot start.
func PreOrders(records []orders.Record, dateLabel string) []PreOrder {
	var out []PreOrder
	for _, r := range records {
		date, slot := r.Pickup()
		if date == "" || date != dateLabel {
			continue
		}
		for _, it := range r.Items {
			out = append(out, PreOrder{
				OrderID:  r.ID,
				Customer: r.UserEmail,
				Dish:     it.Name,
				Quantity: it.Quantity,
				Remarks:  it.Remarks,
				Time:     slot,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return slotStart(out[i].Time) < slotStart(out[j].Time) })
	return out
}

// slotStart reads the start of a "1:30 PM - 2:00 PM" label as minutes after
// midnight. Unreadable labels sort last.
func slotStart(label string) int {
	start, _, _ := strings.Cut(label, " - ")
	t, err := time.Parse("3:04 PM", strings.TrimSpace(start))
	if err != nil {
		return 24 * 60
	}
	return t.Hour()*60 + t.Minute()
}
