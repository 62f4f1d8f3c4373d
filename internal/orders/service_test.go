package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	availableDate  = time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	deadline       = time.Date(2024, 1, 18, 17, 0, 0, 0, time.UTC)
	beforeDeadline = time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC)
	afterDeadline  = time.Date(2024, 1, 18, 18, 0, 0, 0, time.UTC)
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (s *sinkRecorder) Publish(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type failingProfiles struct{}

func (failingProfiles) SaveProfile(context.Context, string, UserInfo) error {
	return errors.New("profile store down")
}

func activeMenu() Menu {
	m := testMenu()
	m.AvailableDate = availableDate
	m.OrderDeadline = deadline
	return m
}

// newTestService wires the service to the in-memory store/allocator/reader.
// The returned clock pointer moves test time.
func newTestService(menu Menu) (*Service, *Memory, *sinkRecorder, *time.Time) {
	mem := NewMemory()
	mem.PutMenu(menu)
	sink := &sinkRecorder{}
	now := beforeDeadline
	svc := &Service{
		Menus:  mem,
		Store:  mem,
		Seq:    mem,
		Events: sink,
		Now:    func() time.Time { return now },
		Log:    zerolog.Nop(),
	}
	return svc, mem, sink, &now
}

func sampleInfo() UserInfo {
	return UserInfo{Department: "engineering", DisplayName: "A. Sato", Gender: "female", AgeBracket: "30-39"}
}

func sampleOptions() map[string][]string {
	return map[string][]string{"rice": {"regular"}, "sides": {"salad"}}
}

func TestCreateOrder_FirstTwoUsers(t *testing.T) {
	svc, _, sink, _ := newTestService(activeMenu())
	ctx := context.Background()

	o1, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)
	require.Equal(t, OrderNumber("20240120-0001"), o1.OrderNumber)
	require.Equal(t, StatusConfirmed, o1.Status)
	require.Equal(t, beforeDeadline, o1.OrderedAt)
	require.Nil(t, o1.ModifiedAt)
	require.Nil(t, o1.CancelledAt)

	// second attempt by the same user is refused
	_, err = svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.ErrorIs(t, err, ErrDuplicateOrder)

	// a different user gets the next sequence
	o2, err := svc.CreateOrder(ctx, "u2", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)
	require.Equal(t, OrderNumber("20240120-0002"), o2.OrderNumber)

	require.Equal(t, []string{EventOrderCreated, EventOrderCreated}, sink.types())
}

func TestCreateOrder_MenuNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(activeMenu())
	_, err := svc.CreateOrder(context.Background(), "u1", "no-such-menu", sampleInfo(), sampleOptions())
	require.ErrorIs(t, err, ErrMenuNotFound)
}

func TestCreateOrder_MenuNotAvailable(t *testing.T) {
	for _, status := range []MenuStatus{MenuDraft, MenuClosed, MenuCancelled} {
		t.Run(string(status), func(t *testing.T) {
			menu := activeMenu()
			menu.Status = status
			svc, mem, _, _ := newTestService(menu)

			_, err := svc.CreateOrder(context.Background(), "u1", "menu-1", sampleInfo(), sampleOptions())
			require.ErrorIs(t, err, ErrMenuNotAvailable)
			require.Zero(t, mem.LastSequence(availableDate), "no sequence may be consumed")
		})
	}
}

func TestCreateOrder_DeadlinePassed(t *testing.T) {
	svc, mem, _, now := newTestService(activeMenu())
	*now = afterDeadline

	_, err := svc.CreateOrder(context.Background(), "u1", "menu-1", sampleInfo(), sampleOptions())
	require.ErrorIs(t, err, ErrOrderDeadlinePassed)
	// the rejected attempt must not burn a sequence value
	require.Zero(t, mem.LastSequence(availableDate))
}

func TestCreateOrder_AtExactDeadline(t *testing.T) {
	svc, _, _, now := newTestService(activeMenu())
	*now = deadline // the deadline instant itself is still orderable

	_, err := svc.CreateOrder(context.Background(), "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)
}

func TestCreateOrder_InvalidOptions(t *testing.T) {
	svc, _, sink, _ := newTestService(activeMenu())

	_, err := svc.CreateOrder(context.Background(), "u1", "menu-1", sampleInfo(),
		map[string][]string{"rice": {"jumbo"}})
	fields, ok := AsValidationErrors(err)
	require.True(t, ok, "want ValidationErrors, got %v", err)
	require.NotEmpty(t, fields)
	require.Empty(t, sink.types(), "no event on failure")
}

func TestCreateOrder_SoldOut(t *testing.T) {
	menu := activeMenu()
	menu.MaxQuantity = 1
	svc, _, _, _ := newTestService(menu)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, "u2", "menu-1", sampleInfo(), sampleOptions())
	require.ErrorIs(t, err, ErrMenuSoldOut)
}

func TestCreateOrder_ProfileFailureSwallowed(t *testing.T) {
	svc, _, _, _ := newTestService(activeMenu())
	svc.Profiles = failingProfiles{}

	o, err := svc.CreateOrder(context.Background(), "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err, "profile snapshot failures are non-fatal")
	require.NotNil(t, o)
}

func TestCreateOrder_ConcurrentSamePair(t *testing.T) {
	svc, _, _, _ := newTestService(activeMenu())
	const attempts = 20

	var (
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateOrder):
				duplicates++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, successes, "exactly one create may win")
	require.Equal(t, attempts-1, duplicates)
}

func TestCancelThenRecreate(t *testing.T) {
	svc, _, _, _ := newTestService(activeMenu())
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)
	require.Equal(t, OrderNumber("20240120-0001"), first.OrderNumber)

	_, err = svc.CancelOrder(ctx, first.OrderNumber, "u1")
	require.NoError(t, err)

	// cancellation frees the slot; the new order gets a fresh, higher number
	second, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)
	require.Equal(t, OrderNumber("20240120-0002"), second.OrderNumber)
	require.NotEqual(t, first.ID, second.ID)

	// the old order stays cancelled under its original number
	old, err := svc.GetOrder(ctx, first.OrderNumber)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, old.Status)
}

func TestModifyOrder(t *testing.T) {
	svc, _, sink, now := newTestService(activeMenu())
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)

	newInfo := sampleInfo()
	newInfo.Department = "sales"
	newOpts := map[string][]string{"rice": {"large"}, "sides": {"soup", "pickles"}}

	modified, err := svc.ModifyOrder(ctx, o.OrderNumber, "u1", newInfo, newOpts)
	require.NoError(t, err)
	require.Equal(t, StatusModified, modified.Status)
	require.NotNil(t, modified.ModifiedAt)
	require.Equal(t, "sales", modified.UserInfo.Department)
	require.Equal(t, newOpts, modified.Options)

	// modification is re-entrant
	again, err := svc.ModifyOrder(ctx, o.OrderNumber, "u1", newInfo, sampleOptions())
	require.NoError(t, err)
	require.Equal(t, StatusModified, again.Status)

	require.Equal(t, []string{EventOrderCreated, EventOrderModified, EventOrderModified}, sink.types())

	t.Run("unauthorized", func(t *testing.T) {
		_, err := svc.ModifyOrder(ctx, o.OrderNumber, "intruder", newInfo, newOpts)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.ModifyOrder(ctx, "20240120-9998", "u1", newInfo, newOpts)
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := svc.ModifyOrder(ctx, o.OrderNumber, "u1", newInfo, map[string][]string{"rice": {"a", "b"}})
		_, ok := AsValidationErrors(err)
		require.True(t, ok)
	})

	t.Run("after deadline", func(t *testing.T) {
		*now = afterDeadline
		defer func() { *now = beforeDeadline }()
		_, err := svc.ModifyOrder(ctx, o.OrderNumber, "u1", newInfo, newOpts)
		require.ErrorIs(t, err, ErrOrderDeadlinePassed)
	})

	t.Run("cancelled order", func(t *testing.T) {
		_, err := svc.CancelOrder(ctx, o.OrderNumber, "u1")
		require.NoError(t, err)
		_, err = svc.ModifyOrder(ctx, o.OrderNumber, "u1", newInfo, newOpts)
		require.ErrorIs(t, err, ErrAlreadyCancelled)
	})
}

func TestCancelOrder(t *testing.T) {
	svc, _, sink, now := newTestService(activeMenu())
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(), sampleOptions())
	require.NoError(t, err)

	t.Run("unauthorized", func(t *testing.T) {
		_, err := svc.CancelOrder(ctx, o.OrderNumber, "intruder")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("after deadline", func(t *testing.T) {
		*now = afterDeadline
		defer func() { *now = beforeDeadline }()
		_, err := svc.CancelOrder(ctx, o.OrderNumber, "u1")
		require.ErrorIs(t, err, ErrOrderDeadlinePassed)
	})

	cancelled, err := svc.CancelOrder(ctx, o.OrderNumber, "u1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	firstCancelledAt := *cancelled.CancelledAt

	t.Run("already cancelled", func(t *testing.T) {
		*now = beforeDeadline.Add(time.Hour)
		_, err := svc.CancelOrder(ctx, o.OrderNumber, "u1")
		require.ErrorIs(t, err, ErrAlreadyCancelled)

		// the original cancellation timestamp is untouched
		got, err := svc.GetOrder(ctx, o.OrderNumber)
		require.NoError(t, err)
		require.Equal(t, firstCancelledAt, *got.CancelledAt)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.CancelOrder(ctx, "20240120-9998", "u1")
		require.ErrorIs(t, err, ErrOrderNotFound)
	})

	require.Equal(t, []string{EventOrderCreated, EventOrderCancelled}, sink.types())
}

func TestReadSurfaces(t *testing.T) {
	svc, _, _, _ := newTestService(activeMenu())
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "u1", "menu-1", sampleInfo(),
		map[string][]string{"rice": {"regular"}, "sides": {"salad", "soup"}})
	require.NoError(t, err)
	o2, err := svc.CreateOrder(ctx, "u2", "menu-1", sampleInfo(),
		map[string][]string{"rice": {"regular"}, "sides": {"salad"}})
	require.NoError(t, err)
	o3, err := svc.CreateOrder(ctx, "u3", "menu-1", sampleInfo(),
		map[string][]string{"rice": {"large"}, "sides": {"pickles"}})
	require.NoError(t, err)

	// cancelled orders stay listed but drop out of the tally
	_, err = svc.CancelOrder(ctx, o3.OrderNumber, "u3")
	require.NoError(t, err)

	list, err := svc.ListByMenu(ctx, "menu-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, OrderNumber("20240120-0001"), list[0].OrderNumber, "sorted by order number")

	counts, err := svc.CountOptions(ctx, "menu-1", nil)
	require.NoError(t, err)
	require.Equal(t, []OptionCount{
		{GroupKey: "rice", Value: "regular", Count: 2},
		{GroupKey: "sides", Value: "salad", Count: 2},
		{GroupKey: "sides", Value: "soup", Count: 1},
	}, counts)

	riceOnly, err := svc.CountOptions(ctx, "menu-1", []string{"rice"})
	require.NoError(t, err)
	require.Equal(t, []OptionCount{{GroupKey: "rice", Value: "regular", Count: 2}}, riceOnly)

	got, err := svc.GetOrder(ctx, o2.OrderNumber)
	require.NoError(t, err)
	require.Equal(t, "u2", got.UserID)

	_, err = svc.GetOrder(ctx, "20240120-9998")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
