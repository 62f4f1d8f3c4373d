package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kondate/lunch-orders/internal/orders"
	"github.com/kondate/lunch-orders/internal/redisx"
)

// Service is the consumer side of the event stream: it records every order
// event as an audit row and hands it to the (external) notification channel.
// Events are deduped by event id, so redelivery after a crash is harmless.
type Service struct {
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Log         zerolog.Logger
	ServiceName string
}

// HandleOrderEvent is installed as the Kafka consumer handler.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderModified, orders.EventOrderCancelled:
	default:
		return nil // not ours
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	var p orders.OrderEventPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}

	// ON CONFLICT keeps the audit trail idempotent even when the Redis
	// dedup key has expired.
	if _, err := s.DB.Exec(ctx, `
		INSERT INTO order_audit(event_id, event_type, order_number, occurred_at, payload)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, p.OrderNumber, env.OccurredAt, []byte(env.Payload),
	); err != nil {
		return err
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	s.Log.Info().
		Str("event", env.EventType).
		Str("order", p.OrderNumber).
		Str("trace_id", env.TraceID).
		Msg("order event recorded")
	return nil
}
