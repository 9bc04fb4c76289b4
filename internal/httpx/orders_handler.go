package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/pricing"
)

// HeaderIdempotencyKey deduplicates checkout retries.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrdersHandler struct {
	Checkout *orders.Checkout
	Repo     *orders.Repository
	Sessions *cart.Registry
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(signedIn)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.history)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/feedback", h.feedback)
	})
}

type CheckoutReq struct {
	RedemptionID string `json:"redemptionId"`
	// PaymentMethod overrides the method selected on the session.
	PaymentMethod string `json:"paymentMethod"`
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	u, _ := identity.FromContext(r.Context())
	s := h.Sessions.Session(u.Key)
	method := req.PaymentMethod
	if method == "" {
		method = s.PaymentMethod()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	receipt, err := h.Checkout.Finalize(ctx, orders.FinalizeRequest{
		User:           u.Key,
		Cart:           s.Cart,
		Pickup:         s.Pickup(),
		PaymentMethod:  method,
		RedemptionID:   req.RedemptionID,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusCreated
	if receipt.Replayed {
		code = http.StatusOK
	} else {
		s.SetPickup(nil)
	}
	writeJSON(w, code, receipt)
}

type orderView struct {
	orders.Record
	Breakdown pricing.Breakdown `json:"breakdown"`
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	recs, err := h.Repo.ListByUser(ctx, u.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orderView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, orderView{Record: rec, Breakdown: h.Checkout.Quote(rec)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rec.UserEmail != u.Key && !u.Staff {
		writeError(w, orders.ErrRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, orderView{Record: rec, Breakdown: h.Checkout.Quote(rec)})
}

type textReq struct {
	Text string `json:"text"`
}

func (h *OrdersHandler) feedback(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.SubmitFeedback(ctx, u.Key, chi.URLParam(r, "id"), req.Text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
