// Package voucher holds the staff-managed voucher catalog and the per-user
// ledger of point redemptions.
package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-orderwise/internal/pricing"
)

var (
	ErrInsufficientPoints = errors.New("not enough points")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrRedemptionUsed     = errors.New("redemption already used")
	ErrInvalidVoucher     = errors.New("invalid voucher")
	ErrVoucherInactive    = errors.New("voucher is not active")
	ErrVoucherNotFound    = errors.New("voucher not found")
)

const (
	CollectionVouchers = "vouchers"
	CollectionUsers    = "users"

	// FieldPoints is the point balance on a users document.
	FieldPoints = "loyaltyPoints"
)

// RedemptionsCollection is the per-user redemption subcollection.
func RedemptionsCollection(user string) string {
	return CollectionUsers + "/" + user + "/redeemedVouchers"
}

type Voucher struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Code           string               `json:"code"`
	PointsRequired int64                `json:"pointsRequired"`
	DiscountType   pricing.DiscountType `json:"discountType"`
	DiscountValue  decimal.Decimal      `json:"discountValue"`
	IsActive       bool                 `json:"isActive"`
}

func (v Voucher) Discount() pricing.Discount {
	return pricing.Discount{Type: v.DiscountType, Value: v.DiscountValue}
}

func (v Voucher) Label() string { return pricing.DiscountLabel(v.Discount()) }

func (v Voucher) Validate() error {
	switch {
	case strings.TrimSpace(v.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidVoucher)
	case strings.TrimSpace(v.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidVoucher)
	case v.PointsRequired < 0:
		return fmt.Errorf("%w: points required must not be negative", ErrInvalidVoucher)
	case !v.DiscountType.Valid():
		return fmt.Errorf("%w: discount type %q", ErrInvalidVoucher, v.DiscountType)
	case v.DiscountValue.IsNegative():
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidVoucher)
	case v.DiscountType == pricing.DiscountPercent && v.DiscountValue.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percent discount above 100", ErrInvalidVoucher)
	}
	return nil
}

// normalize trims fields and uppercases the code.
func (v Voucher) normalize() Voucher {
	v.Title = strings.TrimSpace(v.Title)
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	return v
}

// Redemption is a user's exchange of points for a voucher. It copies the
// voucher terms so later catalog edits never change it.
type Redemption struct {
	ID            string               `json:"id"`
	VoucherID     string               `json:"voucherId"`
	Title         string               `json:"title"`
	Code          string               `json:"code"`
	DiscountType  pricing.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal      `json:"discountValue"`
	Status        Status               `json:"status"`
	RedeemedAt    int64                `json:"redeemedAt"` // unix millis
}

func (r Redemption) Discount() pricing.Discount {
	return pricing.Discount{Type: r.DiscountType, Value: r.DiscountValue}
}

func (r Redemption) Label() string { return pricing.DiscountLabel(r.Discount()) }

func (r Redemption) RedeemedTime() time.Time { return time.UnixMilli(r.RedeemedAt) }
