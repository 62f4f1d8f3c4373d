package kafka

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kondate/lunch-orders/internal/orders"
)

// OrderEventSink routes lifecycle events to their per-event topics. Publish
// never blocks the caller and never reports failure: the producers are
// async-buffered and write errors are logged inside the producer loop.
type OrderEventSink struct {
	Created   *Producer
	Modified  *Producer
	Cancelled *Producer
	Service   string
}

var _ orders.EventSink = (*OrderEventSink)(nil)

func (s *OrderEventSink) Publish(ctx context.Context, ev orders.Event) {
	p := s.producerFor(ev.Type)
	if p == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: string(ev.Order.OrderNumber),
		Payload:       MustMarshal(orders.NewOrderEventPayload(ev.Order)),
	}
	p.Publish(orders.PartitionKey(string(ev.Order.OrderNumber)), MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *OrderEventSink) producerFor(eventType string) *Producer {
	switch eventType {
	case orders.EventOrderCreated:
		return s.Created
	case orders.EventOrderModified:
		return s.Modified
	case orders.EventOrderCancelled:
		return s.Cancelled
	}
	return nil
}
