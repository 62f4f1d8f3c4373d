package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kondate/lunch-orders/internal/orders"
)

// ProfileCache keeps the latest declared attributes per user so the order
// form can be prefilled next time. The lifecycle service treats writes here
// as best-effort.
type ProfileCache struct{ Redis *redis.Client }

var _ orders.ProfileStore = (*ProfileCache)(nil)

func (p *ProfileCache) SaveProfile(ctx context.Context, userID string, info orders.UserInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return p.Redis.Set(ctx, fmt.Sprintf(KeyProfile, userID), b, TTLProfile).Err()
}
