package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/docstore"
	"github.com/ariefcatur/go-orderwise/internal/identity"
	"github.com/ariefcatur/go-orderwise/internal/menu"
	"github.com/ariefcatur/go-orderwise/internal/orders"
	"github.com/ariefcatur/go-orderwise/internal/pickup"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
	"github.com/ariefcatur/go-orderwise/internal/voucher"
)

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error { return fmt.Errorf("%w: %s", errBadRequest, msg) }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid json")
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

var statusTable = []struct {
	code int
	errs []error
}{
	{http.StatusUnauthorized, []error{identity.ErrUnauthenticated}},
	{http.StatusForbidden, []error{identity.ErrForbidden}},
	{http.StatusUnprocessableEntity, []error{voucher.ErrInsufficientPoints, orders.ErrEmptyCart}},
	{http.StatusNotFound, []error{
		orders.ErrRecordNotFound, voucher.ErrRedemptionNotFound, voucher.ErrVoucherNotFound,
		menu.ErrItemNotFound, cart.ErrLineNotFound, docstore.ErrNotFound,
	}},
	{http.StatusConflict, []error{
		orders.ErrFeedbackAlreadySubmitted, orders.ErrReplyAlreadySet, voucher.ErrRedemptionUsed,
		voucher.ErrVoucherInactive, menu.ErrUnavailable, pickup.ErrSlotUnavailable, docstore.ErrAlreadyExists,
	}},
	{http.StatusBadRequest, []error{
		errBadRequest, cart.ErrInvalidLine, menu.ErrInvalidItem, menu.ErrUnknownOption, menu.ErrInvalidQuantity,
		voucher.ErrInvalidVoucher, orders.ErrInvalidPaymentMethod, orders.ErrEmptyFeedback,
		timewindow.ErrInvalidTimestamp, pickup.ErrInvalidClock,
	}},
	{http.StatusServiceUnavailable, []error{docstore.ErrUnavailable}},
}

func statusOf(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.code
			}
		}
	}
	return http.StatusInternalServerError
}

func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest("index must be a number")
	}
	return i, nil
}
