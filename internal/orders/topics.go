package orders

// Events are keyed by order id so all events of one order keep their order.
const (
	TopicOrderPlaced   = "order.placed"
	TopicOrderFeedback = "order.feedback"
)
