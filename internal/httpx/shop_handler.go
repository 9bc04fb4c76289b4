package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/menu"
	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/pickup"
	"github.com/ariefcatur/go-orderwise/internal/pricing"
)

// ShopHandler serves the customer's browsing and cart screens.
type ShopHandler struct {
	Menu     *menu.Catalog
	Sessions *cart.Registry
	Hours    pickup.Hours
	Calc     pricing.Calculator
	Location *time.Location
	Now      func() time.Time
}

func (h *ShopHandler) Register(r chi.Router) {
	r.Get("/menu", h.listMenu)
	r.Get("/menu/{id}", h.getMenuItem)
	r.Get("/payment-methods", h.paymentMethods)
	r.Get("/pickup/dates", h.pickupDates)
	r.Get("/pickup/slots", h.pickupSlots)

	r.Group(func(r chi.Router) {
		r.Use(signedIn)
		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addItem)
		r.Put("/cart/items/{index}", h.replaceItem)
		r.Patch("/cart/items/{index}", h.updateQuantity)
		r.Delete("/cart/items/{index}", h.removeItem)
		r.Put("/cart/payment-method", h.setPaymentMethod)
		r.Put("/cart/pickup", h.setPickup)
	})
}

func (h *ShopHandler) now() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	if h.Location != nil {
		return now().In(h.Location)
	}
	return now()
}

func (h *ShopHandler) session(r *http.Request) *cart.Session {
	u, _ := identity.FromContext(r.Context())
	return h.Sessions.Session(u.Key)
}

func (h *ShopHandler) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Menu.ListAvailable(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "categories": menu.Categories(items)})
}

func (h *ShopHandler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Menu.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ShopHandler) paymentMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orders.PaymentMethods())
}

type cartView struct {
	Lines         []cart.Line       `json:"items"`
	Quote         pricing.Breakdown `json:"quote"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	Pickup        *pickup.Selection `json:"pickup,omitempty"`
}

func (h *ShopHandler) view(s *cart.Session) cartView {
	lines := s.Cart.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{
		Lines:         lines,
		Quote:         h.Calc.Quote(lines, nil),
		PaymentMethod: s.PaymentMethod(),
		Pickup:        s.Pickup(),
	}
}

func (h *ShopHandler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(h.session(r)))
}

// AddItemReq picks a menu item. Kept lists the base ingredients the customer
// left in; nil keeps all of them.
type AddItemReq struct {
	MenuItemID string   `json:"menuItemId"`
	Kept       []string `json:"keptIngredients"`
	Added      []string `json:"addedOptions"`
	Quantity   int      `json:"quantity"`
}

func (h *ShopHandler) line(ctx context.Context, req AddItemReq) (cart.Line, error) {
	if req.MenuItemID == "" {
		return cart.Line{}, badRequest("menuItemId is required")
	}
	it, err := h.Menu.Get(ctx, req.MenuItemID)
	if err != nil {
		return cart.Line{}, err
	}
	kept := req.Kept
	if kept == nil {
		kept = it.IngredientList()
	}
	return menu.Customise(it, kept, req.Added, req.Quantity)
}

func (h *ShopHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	l, err := h.line(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	s := h.session(r)
	if err := s.Cart.Add(l); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(s))
}

// replaceItem re-customises the line at index.
func (h *ShopHandler) replaceItem(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req AddItemReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s := h.session(r)
	lines := s.Cart.Lines()
	if i < 0 || i >= len(lines) {
		writeError(w, cart.ErrLineNotFound)
		return
	}
	l, err := h.line(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Cart.Replace(lines[i].Name, lines[i].Remarks, l); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *ShopHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s := h.session(r)
	if err := s.Cart.UpdateQuantity(i, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *ShopHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s := h.session(r)
	if err := s.Cart.Remove(i); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *ShopHandler) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"paymentMethod"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !orders.ValidPaymentMethod(req.Method) {
		writeError(w, orders.ErrInvalidPaymentMethod)
		return
	}
	s := h.session(r)
	s.SetPaymentMethod(req.Method)
	writeJSON(w, http.StatusOK, h.view(s))
}

func (h *ShopHandler) pickupDates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pickup.DateOptions(h.now()))
}

// pickupSlots lists the slots for ?date=YYYY-MM-DD, today when omitted.
func (h *ShopHandler) pickupSlots(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	date, err := h.parseDate(r.URL.Query().Get("date"), now)
	if err != nil {
		writeError(w, err)
		return
	}
	slots := h.Hours.Available(date, now)
	if slots == nil {
		slots = []pickup.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *ShopHandler) parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return time.Time{}, badRequest("date must be YYYY-MM-DD")
	}
	return t, nil
}

type pickupReq struct {
	Date  string       `json:"date"`
	Start pickup.Clock `json:"startTime"`
}

func (h *ShopHandler) setPickup(w http.ResponseWriter, r *http.Request) {
	var req pickupReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	now := h.now()
	date, err := h.parseDate(req.Date, now)
	if err != nil {
		writeError(w, err)
		return
	}
	sel, err := h.Hours.Select(date, req.Start, now)
	if err != nil {
		writeError(w, err)
		return
	}
	s := h.session(r)
	s.SetPickup(&sel)
	writeJSON(w, http.StatusOK, h.view(s))
}
