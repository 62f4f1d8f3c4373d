package menus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kondate/lunch-orders/internal/orders"
)

// Repo reads menu snapshots from Postgres. Menus are created and edited by
// external tooling; nothing here mutates them.
type Repo struct{ DB *pgxpool.Pool }

var _ orders.MenuReader = (*Repo)(nil)

func (r *Repo) GetMenu(ctx context.Context, menuID string) (*orders.Menu, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, available_date, order_deadline, status,
		       COALESCE(max_quantity, 0), option_groups
		FROM menus WHERE id=$1`, menuID)

	var (
		m          orders.Menu
		price      int64
		status     string
		groupsJSON []byte
	)
	err := row.Scan(&m.ID, &m.Name, &price, &m.AvailableDate, &m.OrderDeadline,
		&status, &m.MaxQuantity, &groupsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrMenuNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Price = orders.Money(price)
	m.Status = orders.MenuStatus(status)
	if len(groupsJSON) > 0 {
		if err := json.Unmarshal(groupsJSON, &m.OptionGroups); err != nil {
			return nil, fmt.Errorf("decode option groups for menu %s: %w", m.ID, err)
		}
	}
	return &m, nil
}
