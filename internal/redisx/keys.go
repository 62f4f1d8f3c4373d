package redisx

import "time"

const (
	// Menu snapshot cache in front of the menus table: menu:snapshot:{menu_id}
	KeyMenuSnapshot = "menu:snapshot:%s"

	// Order read cache: order:{order_number} -> order json
	KeyOrderCache = "order:%s"

	// Latest declared attributes per user: profile:{user_id} -> user info json
	KeyProfile = "profile:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLMenuSnapshot = 1 * time.Minute
	TTLOrderCache   = 5 * time.Minute
	TTLProfile      = 30 * 24 * time.Hour
	TTLDedup        = 48 * time.Hour
)
