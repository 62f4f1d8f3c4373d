package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Names from migrations/001_init.sql. The partial unique index is the
// storage-level safety net behind ErrDuplicateActiveOrder.
const (
	activePairIndex  = "orders_active_user_menu_idx"
	orderNumberIndex = "orders_order_number_key"
)

const pgUniqueViolation = "23505"

// Repo is the Postgres order store.
type Repo struct{ DB *pgxpool.Pool }

var _ OrderStore = (*Repo)(nil)

const orderColumns = `id, order_number, user_id, menu_id, department, display_name,
       gender, age_bracket, options, status, ordered_at, modified_at, cancelled_at`

func (r *Repo) FindActive(ctx context.Context, userID, menuID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+`
		FROM orders WHERE user_id=$1 AND menu_id=$2 AND status <> 'CANCELLED'`, userID, menuID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *Repo) FindByOrderNumber(ctx context.Context, number OrderNumber) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+`
		FROM orders WHERE order_number=$1`, string(number))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// Insert writes the order inside one transaction. When the menu caps its
// quantity, the menu row is locked FOR UPDATE and the active orders counted
// before the insert, so two racing creates cannot both squeeze past the cap.
func (r *Repo) Insert(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var maxQty int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(max_quantity, 0) FROM menus WHERE id=$1 FOR UPDATE`, o.MenuID,
	).Scan(&maxQty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("menu row %s missing", o.MenuID)
		}
		return err
	}
	if maxQty > 0 {
		var active int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM orders WHERE menu_id=$1 AND status <> 'CANCELLED'`, o.MenuID,
		).Scan(&active); err != nil {
			return err
		}
		if active >= maxQty {
			return ErrMenuSoldOut
		}
	}

	optionsJSON, err := json.Marshal(o.Options)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, menu_id, department, display_name,
		                   gender, age_bracket, options, status, ordered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, string(o.OrderNumber), o.UserID, o.MenuID,
		o.UserInfo.Department, o.UserInfo.DisplayName, o.UserInfo.Gender, o.UserInfo.AgeBracket,
		optionsJSON, string(o.Status), o.OrderedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activePairIndex {
			return ErrDuplicateActiveOrder
		}
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Update(ctx context.Context, o *Order) error {
	optionsJSON, err := json.Marshal(o.Options)
	if err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET department=$2, display_name=$3, gender=$4, age_bracket=$5,
		    options=$6, status=$7, modified_at=$8, cancelled_at=$9
		WHERE id=$1`,
		o.ID,
		o.UserInfo.Department, o.UserInfo.DisplayName, o.UserInfo.Gender, o.UserInfo.AgeBracket,
		optionsJSON, string(o.Status), o.ModifiedAt, o.CancelledAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) FindByMenuID(ctx context.Context, menuID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+`
		FROM orders WHERE menu_id=$1 ORDER BY order_number`, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// CountByMenuAndOptions expands the options jsonb server-side and groups the
// tally there, so the admin summary never pulls full order rows.
func (r *Repo) CountByMenuAndOptions(ctx context.Context, menuID string, groupKeys []string) ([]OptionCount, error) {
	q := `
		SELECT g.key, v.value, COUNT(*)
		FROM orders o,
		     jsonb_each(o.options) AS g(key, vals),
		     jsonb_array_elements_text(g.vals) AS v(value)
		WHERE o.menu_id = $1 AND o.status <> 'CANCELLED'`
	args := []any{menuID}
	if len(groupKeys) > 0 {
		q += ` AND g.key = ANY($2)`
		args = append(args, groupKeys)
	}
	q += ` GROUP BY g.key, v.value ORDER BY g.key, v.value`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OptionCount
	for rows.Next() {
		var c OptionCount
		if err := rows.Scan(&c.GroupKey, &c.Value, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o           Order
		number      string
		status      string
		optionsJSON []byte
	)
	err := row.Scan(&o.ID, &number, &o.UserID, &o.MenuID,
		&o.UserInfo.Department, &o.UserInfo.DisplayName, &o.UserInfo.Gender, &o.UserInfo.AgeBracket,
		&optionsJSON, &status, &o.OrderedAt, &o.ModifiedAt, &o.CancelledAt)
	if err != nil {
		return nil, err
	}
	o.OrderNumber = OrderNumber(number)
	o.Status = Status(status)
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &o.Options); err != nil {
			return nil, fmt.Errorf("decode options for order %s: %w", o.ID, err)
		}
	}
	return &o, nil
}
