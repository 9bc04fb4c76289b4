package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-orderwise/internal/cart"
	"github.com/ariefcatur/go-orderwise/internal/timewindow"
)

const Collection = "purchaseHistory"

var (
	ErrEmptyCart                = errors.New("cart is empty")
	ErrInvalidPaymentMethod     = errors.New("invalid payment method")
	ErrRecordNotFound           = errors.New("purchase record not found")
	ErrMalformedRecord          = errors.New("malformed purchase record")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
	ErrEmptyFeedback            = errors.New("feedback is empty")
	ErrReplyAlreadySet          = errors.New("reply already set")
)

const (
	PaymentTouchNGo      = "Touch N Go"
	PaymentOnlineBanking = "Online Banking"
	PaymentCard          = "Credit / Debit Card"
)

// PaymentMethods lists the simulated payment options in display order.
func PaymentMethods() []string {
	return []string{PaymentTouchNGo, PaymentOnlineBanking, PaymentCard}
}

func ValidPaymentMethod(m string) bool {
	for _, p := range PaymentMethods() {
		if p == m {
			return true
		}
	}
	return false
}

// Record is a placed order. Items are a snapshot of the cart at checkout;
// only Feedback and AdminReply change afterwards, each once.
type Record struct {
	ID             string      `json:"id"`
	Date           string      `json:"date"` // timewindow.Layout
	Items          []cart.Line `json:"items"`
	Feedback       string      `json:"feedback"`
	UserEmail      string      `json:"userEmail"`
	PickupDate     *string     `json:"pickupDate,omitempty"`
	PickupTimeSlot *string     `json:"pickupTimeSlot,omitempty"`
	AdminReply     *string     `json:"adminReply,omitempty"`

	PaymentMethod string           `json:"paymentMethod,omitempty"`
	RedemptionID  string           `json:"redemptionId,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
}

func (r Record) Subtotal() decimal.Decimal { return cart.Subtotal(r.Items) }

func (r Record) ItemCount() int {
	n := 0
	for _, it := range r.Items {
		n += it.Quantity
	}
	return n
}

func (r Record) DiscountAmount() decimal.Decimal {
	if r.Discount == nil {
		return decimal.Zero
	}
	return *r.Discount
}

func (r Record) Time(loc *time.Location) (time.Time, error) {
	return timewindow.ParseTimestamp(r.Date, loc)
}

func (r Record) HasFeedback() bool { return r.Feedback != "" }

func (r Record) Pickup() (date, slot string) {
	if r.PickupDate != nil {
		date = *r.PickupDate
	}
	if r.PickupTimeSlot != nil {
		slot = *r.PickupTimeSlot
	}
	return date, slot
}

func (r Record) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	for i, it := range r.Items {
		if it.Name == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: %s item %d", ErrMalformedRecord, r.ID, i)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
