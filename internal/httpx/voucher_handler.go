package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

type VoucherHandler struct {
	Catalog *voucher.Catalog
	Ledger  *voucher.Ledger
}

func (h *VoucherHandler) Register(r chi.Router) {
	r.Get("/vouchers", h.listActive)
	r.Group(func(r chi.Router) {
		r.Use(signedIn)
		r.Get("/vouchers/balance", h.balance)
		r.Get("/vouchers/redeemed", h.redeemed)
		r.Post("/vouchers/{id}/redeem", h.redeem)
	})
}

func (h *VoucherHandler) listActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	vs, err := h.Catalog.ListActive(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if vs == nil {
		vs = []voucher.Voucher{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (h *VoucherHandler) balance(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	pts, err := h.Ledger.Balance(ctx, u.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"loyaltyPoints": pts})
}

func (h *VoucherHandler) redeemed(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rs, err := h.Ledger.ListRedeemed(ctx, u.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	if rs == nil {
		rs = []voucher.Redemption{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *VoucherHandler) redeem(w http.ResponseWriter, r *http.Request) {
	u, _ := identity.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := h.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	red, err := h.Ledger.Redeem(ctx, u.Key, v)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, red)
}
