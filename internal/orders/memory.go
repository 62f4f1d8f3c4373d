package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements OrderStore, SequenceAllocator, and MenuReader in process.
// It is safe for concurrent use and is primarily intended for tests and local
// development; Insert and NextSequence take the same mutex, which gives them
// the storage-level atomicity the Postgres implementations get from the
// partial unique index and the counter upsert.
type Memory struct {
	mu       sync.RWMutex
	menus    map[string]Menu
	orders   map[string]Order      // by order id
	byNumber map[OrderNumber]string // order number -> order id
	counters map[string]int        // yyyymmdd -> last issued value
}

var (
	_ OrderStore        = (*Memory)(nil)
	_ SequenceAllocator = (*Memory)(nil)
	_ MenuReader        = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		menus:    make(map[string]Menu),
		orders:   make(map[string]Order),
		byNumber: make(map[OrderNumber]string),
		counters: make(map[string]int),
	}
}

func (m *Memory) PutMenu(menu Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus[menu.ID] = menu
}

func (m *Memory) GetMenu(_ context.Context, menuID string) (*Menu, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	menu, ok := m.menus[menuID]
	if !ok {
		return nil, ErrMenuNotFound
	}
	return &menu, nil
}

func (m *Memory) NextSequence(_ context.Context, date time.Time) (int, error) {
	key := date.Format(dateLayout)
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.counters[key] + 1
	if next > MaxSequencePerDate {
		return 0, ErrSequenceExhausted
	}
	m.counters[key] = next
	return next, nil
}

// LastSequence reports the counter for a date without advancing it.
func (m *Memory) LastSequence(date time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[date.Format(dateLayout)]
}

func (m *Memory) FindActive(_ context.Context, userID, menuID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.MenuID == menuID && o.Status.Active() {
			out := copyOrder(o)
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, existing := range m.orders {
		if existing.MenuID != o.MenuID || !existing.Status.Active() {
			continue
		}
		if existing.UserID == o.UserID {
			return ErrDuplicateActiveOrder
		}
		active++
	}
	if menu, ok := m.menus[o.MenuID]; ok && menu.MaxQuantity > 0 && active >= menu.MaxQuantity {
		return ErrMenuSoldOut
	}
	m.orders[o.ID] = copyOrder(*o)
	m.byNumber[o.OrderNumber] = o.ID
	return nil
}

func (m *Memory) Update(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = copyOrder(*o)
	return nil
}

func (m *Memory) FindByOrderNumber(_ context.Context, number OrderNumber) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNumber[number]
	if !ok {
		return nil, nil
	}
	out := copyOrder(m.orders[id])
	return &out, nil
}

func (m *Memory) FindByMenuID(_ context.Context, menuID string) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.MenuID == menuID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (m *Memory) CountByMenuAndOptions(_ context.Context, menuID string, groupKeys []string) ([]OptionCount, error) {
	wanted := make(map[string]bool, len(groupKeys))
	for _, k := range groupKeys {
		wanted[k] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]map[string]int)
	for _, o := range m.orders {
		if o.MenuID != menuID || !o.Status.Active() {
			continue
		}
		for key, vals := range o.Options {
			if len(wanted) > 0 && !wanted[key] {
				continue
			}
			if counts[key] == nil {
				counts[key] = make(map[string]int)
			}
			for _, v := range vals {
				counts[key][v]++
			}
		}
	}

	var out []OptionCount
	for key, byValue := range counts {
		for v, n := range byValue {
			out = append(out, OptionCount{GroupKey: key, Value: v, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupKey != out[j].GroupKey {
			return out[i].GroupKey < out[j].GroupKey
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func copyOrder(o Order) Order {
	if o.Options != nil {
		opts := make(map[string][]string, len(o.Options))
		for k, vals := range o.Options {
			opts[k] = append([]string(nil), vals...)
		}
		o.Options = opts
	}
	if o.ModifiedAt != nil {
		t := *o.ModifiedAt
		o.ModifiedAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		o.CancelledAt = &t
	}
	return o
}
