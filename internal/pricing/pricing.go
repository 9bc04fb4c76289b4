// Package pricing computes order totals and loyalty points with decimal
// arithmetic. Rounding to two places happens only in Format.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-orderwise/internal/cart"
)

type DiscountType string

const (
	DiscountAmount  DiscountType = "amount"
	DiscountPercent DiscountType = "percent"
)

func (t DiscountType) Valid() bool { return t == DiscountAmount || t == DiscountPercent }

type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

var (
	DefaultTaxRate = decimal.RequireFromString("0.06")
	hundred        = decimal.NewFromInt(100)
)

type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"netAfterDiscount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Points   int             `json:"pointsEarned"`
}

type Calculator struct {
	TaxRate decimal.Decimal
	// CapDiscount limits amount discounts to the subtotal. Off by default; the
	// total is clamped at zero either way.
	CapDiscount bool
}

func NewCalculator(taxRate decimal.Decimal) Calculator {
	return Calculator{TaxRate: taxRate}
}

func (c Calculator) Subtotal(lines []cart.Line) decimal.Decimal {
	return cart.Subtotal(lines)
}

func (c Calculator) Discount(subtotal decimal.Decimal, d *Discount) decimal.Decimal {
	if d == nil || d.Value.IsNegative() {
		return decimal.Zero
	}
	switch d.Type {
	case DiscountAmount:
		if c.CapDiscount && d.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return d.Value
	case DiscountPercent:
		return subtotal.Mul(d.Value).Div(hundred)
	}
	return decimal.Zero
}

// Net is max(0, subtotal - discount).
func Net(subtotal, discount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, subtotal.Sub(discount))
}

func (c Calculator) Tax(net decimal.Decimal) decimal.Decimal {
	return net.Mul(c.rate())
}

func (c Calculator) Total(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return Net(subtotal, discount).Add(tax)
}

// LoyaltyPoints awards one point per whole currency unit of the total.
func LoyaltyPoints(total decimal.Decimal) int {
	if total.IsNegative() {
		return 0
	}
	return int(total.Floor().IntPart())
}

// Settle builds a breakdown from a subtotal and an already resolved discount.
func (c Calculator) Settle(subtotal, discount decimal.Decimal) Breakdown {
	net := Net(subtotal, discount)
	tax := c.Tax(net)
	total := c.Total(subtotal, discount, tax)
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Net:      net,
		Tax:      tax,
		Total:    total,
		Points:   LoyaltyPoints(total),
	}
}

func (c Calculator) Quote(lines []cart.Line, d *Discount) Breakdown {
	sub := c.Subtotal(lines)
	return c.Settle(sub, c.Discount(sub, d))
}

func (c Calculator) rate() decimal.Decimal {
	if c.TaxRate.IsZero() {
		return DefaultTaxRate
	}
	return c.TaxRate
}

// Format renders a monetary amount for display, e.g. "RM 27.35".
func Format(d decimal.Decimal) string {
	return "RM " + d.StringFixed(2)
}

// DiscountLabel renders "RM 5.00 off" or "10% off".
func DiscountLabel(d Discount) string {
	if d.Type == DiscountPercent {
		return fmt.Sprintf("%s%% off", d.Value.Truncate(0).String())
	}
	return Format(d.Value) + " off"
}
