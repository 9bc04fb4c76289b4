package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventFeedbackSubmitted = "FeedbackSubmitted"
	EventAdminReplied      = "AdminReplied"
)

// Emitter publishes an event payload to a topic keyed by key.
type Emitter interface {
	Emit(ctx context.Context, topic, eventType, key string, payload any) error
}

// ---- payloads ----

type ItemQty struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID        string          `json:"order_id"`
	UserEmail      string          `json:"user_email"`
	Items          []ItemQty       `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Points         int             `json:"points"`
	PaymentMethod  string          `json:"payment_method"`
	RedemptionID   string          `json:"redemption_id,omitempty"`
	PickupDate     string          `json:"pickup_date,omitempty"`
	PickupTimeSlot string          `json:"pickup_time_slot,omitempty"`
}

type FeedbackSubmittedPayload struct {
	OrderID   string `json:"order_id"`
	UserEmail string `json:"user_email"`
	Feedback  string `json:"feedback"`
}

type AdminRepliedPayload struct {
	OrderID   string `json:"order_id"`
	RepliedBy string `json:"replied_by"`
	Reply     string `json:"reply"`
}
