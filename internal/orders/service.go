package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MenuReader is the read-only view of the menu catalog. Menus are owned by
// external tooling; this service never mutates them.
type MenuReader interface {
	GetMenu(ctx context.Context, menuID string) (*Menu, error)
}

// OrderStore owns durability and the active-order uniqueness constraint on
// (userID, menuID). Insert must enforce that constraint itself — the
// service's prior FindActive read alone would be a race under concurrent
// creation.
type OrderStore interface {
	// FindActive returns the unique non-cancelled order for the pair, or
	// nil when there is none.
	FindActive(ctx context.Context, userID, menuID string) (*Order, error)
	// Insert fails with ErrDuplicateActiveOrder when a concurrent insert
	// already committed a non-cancelled order for the pair, and with
	// ErrMenuSoldOut when the menu's max quantity is reached.
	Insert(ctx context.Context, o *Order) error
	// Update replaces the full row by id; ErrNotFound when it is gone.
	Update(ctx context.Context, o *Order) error
	FindByOrderNumber(ctx context.Context, number OrderNumber) (*Order, error)
	FindByMenuID(ctx context.Context, menuID string) ([]Order, error)
	// CountByMenuAndOptions tallies selected option values across the
	// menu's active orders, optionally restricted to the given group keys.
	CountByMenuAndOptions(ctx context.Context, menuID string, groupKeys []string) ([]OptionCount, error)
}

// SequenceAllocator issues the per-date order number suffix. Concurrent calls
// for the same date must return distinct, strictly increasing integers.
type SequenceAllocator interface {
	NextSequence(ctx context.Context, date time.Time) (int, error)
}

// ProfileStore keeps the latest declared attributes per user. Writes are
// best-effort: the order row is the authoritative snapshot.
type ProfileStore interface {
	SaveProfile(ctx context.Context, userID string, info UserInfo) error
}

// Service is the order lifecycle: it validates against the menu snapshot,
// allocates order numbers, drives status transitions, and emits events.
// Correctness under concurrency rests entirely on the allocator's per-date
// atomicity and the store's uniqueness constraint — the service holds no
// locks of its own and runs safely as multiple instances.
type Service struct {
	Menus    MenuReader
	Store    OrderStore
	Seq      SequenceAllocator
	Events   EventSink    // optional
	Profiles ProfileStore // optional
	Now      func() time.Time
	Log      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateOrder reserves one boxed lunch for userID against menuID. At most one
// active order may exist per (user, menu) pair; a cancelled order frees the
// slot for a fresh create with a new order number.
func (s *Service) CreateOrder(ctx context.Context, userID, menuID string, info UserInfo, selected map[string][]string) (*Order, error) {
	menu, err := s.Menus.GetMenu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if menu.Status != MenuActive {
		return nil, ErrMenuNotAvailable
	}
	now := s.now()
	if now.After(menu.OrderDeadline) {
		return nil, ErrOrderDeadlinePassed
	}

	existing, err := s.Store.FindActive(ctx, userID, menuID)
	if err != nil {
		return nil, internalErr("find active order", err)
	}
	if existing != nil {
		return nil, ErrDuplicateOrder
	}

	seq, err := s.Seq.NextSequence(ctx, menu.AvailableDate)
	if err != nil {
		return nil, err
	}
	number, err := NewOrderNumber(menu.AvailableDate, seq)
	if err != nil {
		return nil, internalErr("format order number", err)
	}

	if err := ValidateOptions(*menu, selected); err != nil {
		return nil, err
	}

	o := &Order{
		ID:          uuid.NewString(),
		OrderNumber: number,
		UserID:      userID,
		MenuID:      menuID,
		UserInfo:    info,
		Options:     selected,
		Status:      StatusConfirmed,
		OrderedAt:   now,
	}
	if err := s.Store.Insert(ctx, o); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateActiveOrder):
			// The race FindActive could not prevent. Never retried into
			// a second, different order.
			return nil, ErrDuplicateOrder
		case errors.Is(err, ErrMenuSoldOut):
			return nil, ErrMenuSoldOut
		}
		return nil, internalErr("insert order", err)
	}

	s.saveProfile(ctx, userID, info)
	s.emit(ctx, EventOrderCreated, *o)
	return o, nil
}

// ModifyOrder replaces the caller's declared attributes and option selections
// on an existing order. Blocked after the menu's deadline exactly like
// creation, and there is no reactivation path out of CANCELLED.
func (s *Service) ModifyOrder(ctx context.Context, number OrderNumber, callerUserID string, info UserInfo, selected map[string][]string) (*Order, error) {
	o, err := s.loadOrder(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.UserID != callerUserID {
		return nil, ErrUnauthorized
	}

	menu, err := s.Menus.GetMenu(ctx, o.MenuID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.After(menu.OrderDeadline) {
		return nil, ErrOrderDeadlinePassed
	}
	if !CanTransition(o.Status, StatusModified) {
		return nil, ErrAlreadyCancelled
	}

	if err := ValidateOptions(*menu, selected); err != nil {
		return nil, err
	}

	o.UserInfo = info
	o.Options = selected
	o.Status = StatusModified
	o.ModifiedAt = &now
	if err := s.Store.Update(ctx, o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internalErr("update order", err)
	}

	s.saveProfile(ctx, callerUserID, info)
	s.emit(ctx, EventOrderModified, *o)
	return o, nil
}

// CancelOrder puts the order in its terminal state and frees the
// (user, menu) slot.
func (s *Service) CancelOrder(ctx context.Context, number OrderNumber, callerUserID string) (*Order, error) {
	o, err := s.loadOrder(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if o.UserID != callerUserID {
		return nil, ErrUnauthorized
	}

	menu, err := s.Menus.GetMenu(ctx, o.MenuID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if now.After(menu.OrderDeadline) {
		return nil, ErrOrderDeadlinePassed
	}

	o.Status = StatusCancelled
	o.CancelledAt = &now
	if err := s.Store.Update(ctx, o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internalErr("update order", err)
	}

	s.emit(ctx, EventOrderCancelled, *o)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, number OrderNumber) (*Order, error) {
	return s.loadOrder(ctx, number)
}

// ListByMenu is the admin read surface; aggregation and export formatting
// happen outside this service.
func (s *Service) ListByMenu(ctx context.Context, menuID string) ([]Order, error) {
	out, err := s.Store.FindByMenuID(ctx, menuID)
	if err != nil {
		return nil, internalErr("list orders by menu", err)
	}
	return out, nil
}

// CountOptions tallies selected option values across a menu's active orders.
func (s *Service) CountOptions(ctx context.Context, menuID string, groupKeys []string) ([]OptionCount, error) {
	out, err := s.Store.CountByMenuAndOptions(ctx, menuID, groupKeys)
	if err != nil {
		return nil, internalErr("count options", err)
	}
	return out, nil
}

func (s *Service) loadOrder(ctx context.Context, number OrderNumber) (*Order, error) {
	o, err := s.Store.FindByOrderNumber(ctx, number)
	if err != nil {
		return nil, internalErr("find order", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// saveProfile is attempted on create and modify; any failure is swallowed
// after logging, since the order row itself carries the snapshot.
func (s *Service) saveProfile(ctx context.Context, userID string, info UserInfo) {
	if s.Profiles == nil {
		return
	}
	if err := s.Profiles.SaveProfile(ctx, userID, info); err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("profile snapshot not saved")
	}
}

func (s *Service) emit(ctx context.Context, eventType string, o Order) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ctx, Event{Type: eventType, Order: o})
}
