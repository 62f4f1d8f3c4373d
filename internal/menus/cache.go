package menus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kondate/lunch-orders/internal/orders"
	"github.com/kondate/lunch-orders/internal/redisx"
)

// CachedReader puts a short-lived Redis snapshot in front of the menu table.
// The TTL bounds how stale a deadline or status check can be; cache failures
// fall through to the source.
type CachedReader struct {
	Source orders.MenuReader
	Redis  *redis.Client
}

var _ orders.MenuReader = (*CachedReader)(nil)

func (c *CachedReader) GetMenu(ctx context.Context, menuID string) (*orders.Menu, error) {
	key := fmt.Sprintf(redisx.KeyMenuSnapshot, menuID)
	if b, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var m orders.Menu
		if err := json.Unmarshal(b, &m); err == nil {
			return &m, nil
		}
	}

	m, err := c.Source.GetMenu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(m); err == nil {
		_ = c.Redis.Set(ctx, key, b, redisx.TTLMenuSnapshot).Err()
	}
	return m, nil
}
