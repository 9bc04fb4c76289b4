package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-orderwise/internal/analytics"
	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/menu"
	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/pickup"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

// AdminHandler serves the staff screens. Every route requires the staff role.
type AdminHandler struct {
	Menu     *menu.Catalog
	Vouchers *voucher.Catalog
	Orders   *orders.Repository
	Resolver timewindow.Resolver
	Log      *zap.Logger
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(staffOnly)

		r.Get("/menu", h.listMenu)
		r.Post("/menu", h.createMenuItem)
		r.Put("/menu/{id}", h.updateMenuItem)
		r.Put("/menu/{id}/stock", h.setStock)
		r.Delete("/menu/{id}", h.deleteMenuItem)

		r.Get("/vouchers", h.listVouchers)
		r.Post("/vouchers", h.createVoucher)
		r.Put("/vouchers/{id}", h.updateVoucher)
		r.Delete("/vouchers/{id}", h.deleteVoucher)

		r.Get("/analytics", h.summary)
		r.Get("/reports", h.reports)
		r.Get("/preorders", h.preOrders)
		r.Get("/reviews", h.reviews)
		r.Post("/orders/{id}/reply", h.reply)
	})
}

func (h *AdminHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *AdminHandler) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Menu.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []menu.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var it menu.Item
	if err := readJSON(r, &it); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it.ID = ""
	h.saveMenuItem(ctx, w, it, http.StatusCreated)
}

func (h *AdminHandler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	var it menu.Item
	if err := readJSON(r, &it); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it.ID = chi.URLParam(r, "id")
	if _, err := h.Menu.Get(ctx, it.ID); err != nil {
		writeError(w, err)
		return
	}
	h.saveMenuItem(ctx, w, it, http.StatusOK)
}

func (h *AdminHandler) saveMenuItem(ctx context.Context, w http.ResponseWriter, it menu.Item, code int) {
	saved, err := h.Menu.Save(ctx, it)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, saved)
}

func (h *AdminHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StockStatus menu.StockStatus `json:"stockStatus"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Menu.SetStock(ctx, chi.URLParam(r, "id"), req.StockStatus); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Menu.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listVouchers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	vs, err := h.Vouchers.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if vs == nil {
		vs = []voucher.Voucher{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *AdminHandler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var v voucher.Voucher
	if err := readJSON(r, &v); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v.ID = ""
	created, err := h.Vouchers.Create(ctx, v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) updateVoucher(w http.ResponseWriter, r *http.Request) {
	var v voucher.Voucher
	if err := readJSON(r, &v); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v.ID = chi.URLParam(r, "id")
	updated, err := h.Vouchers.Update(ctx, v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Vouchers.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// aggregator loads every record and the category lookup. The lookup is
// best-effort: without it only explicit line categories filter.
func (h *AdminHandler) aggregator(ctx context.Context) (analytics.Aggregator, []orders.Record, error) {
	recs, err := h.Orders.LoadAll(ctx)
	if err != nil {
		return analytics.Aggregator{}, nil, err
	}
	cats, err := h.Menu.Lookup(ctx)
	if err != nil {
		h.log().Warn("menu category lookup", zap.Error(err))
	}
	return analytics.Aggregator{Location: h.Resolver.Location, Categories: cats, Log: h.Log}, recs, nil
}

// window reads ?from=&to= (timewindow.Layout) for a custom range, otherwise
// ?period=, defaulting to today.
func (h *AdminHandler) window(r *http.Request) (timewindow.Window, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		start, err := h.Resolver.Parse(from)
		if err != nil {
			return timewindow.Window{}, err
		}
		end, err := h.Resolver.Parse(to)
		if err != nil {
			return timewindow.Window{}, err
		}
		return timewindow.Custom(start, end), nil
	}
	period := timewindow.PeriodToday
	if s := q.Get("period"); s != "" {
		p, ok := timewindow.ParsePeriod(s)
		if !ok {
			return timewindow.Window{}, badRequest("unknown period " + s)
		}
		period = p
	}
	return h.Resolver.Window(period)
}

type summaryView struct {
	Window string `json:"window"`
	analytics.Summary
}

func (h *AdminHandler) summary(w http.ResponseWriter, r *http.Request) {
	win, err := h.window(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var category *string
	if q := r.URL.Query(); q.Has("category") {
		c := q.Get("category")
		category = &c
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	agg, recs, err := h.aggregator(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	s := agg.Aggregate(recs, win, category)
	writeJSON(w, http.StatusOK, summaryView{Window: win.String(), Summary: s})
}

func (h *AdminHandler) reports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	agg, recs, err := h.aggregator(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg.SalesReports(recs, h.Resolver.Current(), h.Resolver.WeekStart))
}

// preOrders lists pickup lines for ?date= (a "Mon 02" label), today by default.
func (h *AdminHandler) preOrders(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("date")
	if label == "" {
		label = h.Resolver.Current().Format(pickup.DateLabelLayout)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	recs, err := h.Orders.LoadAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	out := analytics.PreOrders(recs, label)
	if out == nil {
		out = []analytics.PreOrder{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) reviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Orders.Reviews(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []orders.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *AdminHandler) reply(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Orders.Reply(ctx, u, chi.URLParam(r, "id"), req.Text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
