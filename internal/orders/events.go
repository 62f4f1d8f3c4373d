package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderModified  = "OrderModified"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope is the versioned wrapper every published event travels in.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "lunch-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // the order number
	Payload       json.RawMessage `json:"payload"`
}

// Event is what the lifecycle service hands to its sink; the sink wraps it in
// an Envelope on the wire.
type Event struct {
	Type  string
	Order Order
}

// EventSink delivers order events to downstream collaborators (notification,
// audit). Delivery is best-effort and fire-and-forget: implementations must
// never block the lifecycle operation on broker latency, and failures are
// logged, not returned.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

type OrderEventPayload struct {
	OrderID     string              `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	UserID      string              `json:"user_id"`
	MenuID      string              `json:"menu_id"`
	Status      Status              `json:"status"`
	Options     map[string][]string `json:"options,omitempty"`
	OrderedAt   time.Time           `json:"ordered_at"`
}

func NewOrderEventPayload(o Order) OrderEventPayload {
	return OrderEventPayload{
		OrderID:     o.ID,
		OrderNumber: string(o.OrderNumber),
		UserID:      o.UserID,
		MenuID:      o.MenuID,
		Status:      o.Status,
		Options:     o.Options,
		OrderedAt:   o.OrderedAt,
	}
}
