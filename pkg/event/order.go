package event

import "time"

const (
	// OrderChangesTopic carries the document change feed of the orders
	// collection.
	OrderChangesTopic = "orders.changes"

	OrderSettlementsTopic = "orders.settlements"
	EventOrderSettled     = "order.settled"
)

// OrderSettledEvent is published once an order with a payment token has been
// completed.
type OrderSettledEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    string    `json:"order_id"`
	Path       string    `json:"path"`
	User       string    `json:"user"`
	TotalPrice float64   `json:"total_price"`
}

func NewOrderSettledEvent(path, orderID, user string, total float64, at time.Time) OrderSettledEvent {
	return OrderSettledEvent{
		EventType:  EventOrderSettled,
		OccurredAt: at.UTC(),
		OrderID:    orderID,
		Path:       path,
		User:       user,
		TotalPrice: total,
	}
}
