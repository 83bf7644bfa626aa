package billing

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"loungebackend/internal/clock"
	"loungebackend/internal/inventory"
	"loungebackend/internal/ledger"
)

var testStart = time.Date(2026, 10, 15, 16, 50, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	clock  *clock.Fake
	stock  *inventory.Service
	ledger *ledger.Ledger
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	stock := inventory.NewService()
	require.NoError(t, stock.Add(inventory.Item{Name: "Cola", Price: decimal.NewFromInt(10), Quantity: 5}))
	require.NoError(t, stock.Add(inventory.Item{Name: "Chips", Price: decimal.RequireFromString("7.5"), Quantity: 3}))

	fake := clock.NewFake(testStart)
	l := ledger.New()
	cfg := DefaultConfig()
	cfg.Location = time.UTC

	e := New(cfg, stock, l, append([]Option{WithClock(fake)}, opts...)...)
	t.Cleanup(e.Close)
	return &fixture{engine: e, clock: fake, stock: stock, ledger: l}
}

func (f *fixture) quantity(t *testing.T, name string) int {
	t.Helper()
	item, ok := f.stock.Get(name)
	require.True(t, ok)
	return item.Quantity
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestRoomAndBarSettlement(t *testing.T) {
	f := newFixture(t)
	e := f.engine

	g, err := e.AddGuest()
	require.NoError(t, err)
	require.Equal(t, 1, g.GuestNumber)

	require.NoError(t, e.SelectRoom(1, "Room 2"))
	_, err = e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	f.clock.Advance(120 * time.Second)
	snap, err := e.StopTimer(1, ServiceRoom)
	require.NoError(t, err)
	assert.Equal(t, int64(120), snap.ElapsedSeconds)
	assert.Equal(t, "2:00", snap.Elapsed())

	for i := 0; i < 2; i++ {
		_, err = e.AddBarItem(1, "Cola")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.quantity(t, "Cola"))

	q, err := e.Quote(1)
	require.NoError(t, err)
	assertDecimal(t, "3.4", q.RoomCost)
	assertDecimal(t, "20", q.BarCost)
	assertDecimal(t, "23.4", q.Total)

	entry, err := e.Settle(1)
	require.NoError(t, err)
	assertDecimal(t, "23.4", entry.Total)
	assert.Equal(t, "Room 2", entry.Room.Name)
	assert.Equal(t, "04:50 PM", entry.Room.Start)
	assert.Equal(t, "04:52 PM", entry.Room.End)
	assert.Equal(t, notAvailable, entry.Billiard.Start)
	assert.Equal(t, notAvailable, entry.Billiard.End)
	assert.Equal(t, "Cola(2)", entry.BarItems)

	income := f.ledger.Income()
	assertDecimal(t, "3.4", income.PS)
	assertDecimal(t, "0", income.Billiard)
	assertDecimal(t, "20", income.Bar)

	assert.Equal(t, 3, f.quantity(t, "Cola"), "settlement does not restock")
	assert.Empty(t, e.Guests())

	other, err := e.AddGuest()
	require.NoError(t, err)
	assert.True(t, e.RoomAvailable("Room 2", other.GuestNumber))
	assert.NoError(t, e.SelectRoom(other.GuestNumber, "Room 2"))
}

func TestBilliardIsExclusiveVenueWide(t *testing.T) {
	f := newFixture(t)
	e := f.engine

	_, _ = e.AddGuest()
	_, _ = e.AddGuest()

	_, err := e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)

	_, err = e.StartTimer(2, ServiceBilliard)
	assert.ErrorIs(t, err, ErrBilliardInUse)
	assert.True(t, IsPrecondition(err))

	q2, err := e.Quote(2)
	require.NoError(t, err)
	assert.False(t, q2.Billiard.Running)
	assert.Empty(t, q2.Billiard.Start)
	assert.Zero(t, q2.Billiard.ElapsedSeconds)

	q1, err := e.Quote(1)
	require.NoError(t, err)
	assert.True(t, q1.Billiard.Running)
	assert.Equal(t, int64(5), q1.Billiard.ElapsedSeconds)

	holder, ok := e.BilliardHolder()
	require.True(t, ok)
	assert.Equal(t, 1, holder)

	_, err = e.StopTimer(1, ServiceBilliard)
	require.NoError(t, err)
	_, err = e.StartTimer(2, ServiceBilliard)
	assert.NoError(t, err)
}

func TestRoomTimerNeedsSelection(t *testing.T) {
	f := newFixture(t)
	_, _ = f.engine.AddGuest()

	_, err := f.engine.StartTimer(1, ServiceRoom)
	assert.ErrorIs(t, err, ErrNoRoomSelected)
	assert.Zero(t, f.clock.Active())
}

func TestStopRestartDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	require.NoError(t, e.SelectRoom(1, "Room 1"))

	_, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)
	_, err = e.StopTimer(1, ServiceRoom)
	require.NoError(t, err)
	assert.Zero(t, f.clock.Active())

	f.clock.Advance(30 * time.Second)

	staleGen := e.guests[1].timer(ServiceRoom).gen
	snap, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	assert.Equal(t, "04:50 PM", snap.Start, "start stamp is set once")

	// A tick from the previous run arriving late is discarded.
	e.tick(1, ServiceRoom, staleGen)

	f.clock.Advance(3 * time.Second)
	snap, err = e.StopTimer(1, ServiceRoom)
	require.NoError(t, err)
	assert.Equal(t, int64(13), snap.ElapsedSeconds)
	assert.Equal(t, "04:50 PM", snap.Start)
	assert.Equal(t, "04:50 PM", snap.End)
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()

	snap, err := e.StopTimer(1, ServiceBilliard)
	require.NoError(t, err)
	assert.Empty(t, snap.End)

	_, err = e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)
	_, err = e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)
	assert.Equal(t, 1, f.clock.Active())

	f.clock.Advance(4 * time.Second)
	snap, err = e.ToggleTimer(1, ServiceBilliard)
	require.NoError(t, err)
	assert.False(t, snap.Running)
	assert.Equal(t, int64(4), snap.ElapsedSeconds)

	snap, err = e.ToggleTimer(1, ServiceBilliard)
	require.NoError(t, err)
	assert.True(t, snap.Running)
}

func TestSelectRoom(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	_, _ = e.AddGuest()

	assert.ErrorIs(t, e.SelectRoom(1, "Room 9"), ErrUnknownRoom)
	require.NoError(t, e.SelectRoom(1, "Room 3"))
	assert.ErrorIs(t, e.SelectRoom(2, "Room 3"), ErrRoomTaken)
	assert.ErrorIs(t, e.SelectRoom(7, "Room 1"), ErrGuestNotFound)

	opts, err := e.RoomOptions(2)
	require.NoError(t, err)
	require.Len(t, opts, 6)
	assert.False(t, opts[2].Available)

	opts, err = e.RoomOptions(1)
	require.NoError(t, err)
	assert.True(t, opts[2].Available)
	assert.True(t, opts[2].Selected)

	// Changing rooms frees the old one.
	require.NoError(t, e.SelectRoom(1, "Room 4"))
	assert.True(t, e.RoomAvailable("Room 3", 2))
}

func TestBarTabRemovesLastLine(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()

	_, err := e.RemoveLastBarItem(1)
	assert.ErrorIs(t, err, ErrEmptyTab)

	for _, item := range []string{"Cola", "Chips", "Cola", "Chips"} {
		_, err = e.AddBarItem(1, item)
		require.NoError(t, err)
	}

	tab, err := e.RemoveLastBarItem(1)
	require.NoError(t, err)
	assert.Equal(t, []TabLine{{Item: "Cola", Count: 2}, {Item: "Chips", Count: 1}}, tab)

	tab, err = e.RemoveLastBarItem(1)
	require.NoError(t, err)
	assert.Equal(t, []TabLine{{Item: "Cola", Count: 2}}, tab)
	assert.Equal(t, 3, f.quantity(t, "Chips"))
}

func TestBarItemOutOfStock(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()

	for i := 0; i < 3; i++ {
		_, err := e.AddBarItem(1, "Chips")
		require.NoError(t, err)
	}
	_, err := e.AddBarItem(1, "Chips")
	assert.ErrorIs(t, err, inventory.ErrOutOfStock)
	assert.True(t, IsPrecondition(err))

	_, err = e.AddBarItem(1, "Water")
	assert.ErrorIs(t, err, inventory.ErrItemNotFound)

	tab, err := e.Tab(1)
	require.NoError(t, err)
	assert.Equal(t, []TabLine{{Item: "Chips", Count: 3}}, tab)
}

func TestBarCostUsesCurrentPrice(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()

	_, err := e.AddBarItem(1, "Cola")
	require.NoError(t, err)
	require.NoError(t, f.stock.SetPrice("Cola", dec("12.5")))

	total, err := e.LiveTotal(1)
	require.NoError(t, err)
	assertDecimal(t, "12.5", total)

	require.NoError(t, f.stock.Remove("Cola"))
	total, err = e.LiveTotal(1)
	require.NoError(t, err)
	assertDecimal(t, "0", total)
}

func TestInventoryIsConserved(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	for i := 0; i < 3; i++ {
		_, _ = e.AddGuest()
	}

	rng := rand.New(rand.NewSource(42))
	items := []string{"Cola", "Chips"}
	for i := 0; i < 500; i++ {
		guest := rng.Intn(3) + 1
		if rng.Intn(2) == 0 {
			_, err := e.AddBarItem(guest, items[rng.Intn(len(items))])
			if err != nil {
				require.ErrorIs(t, err, inventory.ErrOutOfStock)
			}
		} else {
			_, err := e.RemoveLastBarItem(guest)
			if err != nil {
				require.ErrorIs(t, err, ErrEmptyTab)
			}
		}

		for _, item := range f.stock.List() {
			outstanding := 0
			for _, q := range e.Guests() {
				for _, line := range q.Tab {
					if line.Item == item.Name {
						outstanding += line.Count
					}
				}
			}
			require.Equal(t, item.OriginalStock, item.Quantity+outstanding, "step %d, item %s", i, item.Name)
		}
	}
}

func TestSettleTwiceRecordsOnce(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	_, err := e.AddBarItem(1, "Chips")
	require.NoError(t, err)

	_, err = e.Settle(1)
	require.NoError(t, err)

	_, err = e.Settle(1)
	assert.ErrorIs(t, err, ErrGuestNotFound)

	_, ok, err := e.SettleIfPresent(1)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, f.ledger.List(), 1)
	assertDecimal(t, "7.5", f.ledger.Income().Bar)
}

func TestLiveTotalMatchesRecordedTotal(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	require.NoError(t, e.SelectRoom(1, "Room 5"))

	_, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	_, err = e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)
	f.clock.Advance(37 * time.Second)
	_, err = e.StopTimer(1, ServiceBilliard)
	require.NoError(t, err)
	f.clock.Advance(71 * time.Second)
	_, err = e.AddBarItem(1, "Chips")
	require.NoError(t, err)

	live, err := e.LiveTotal(1)
	require.NoError(t, err)

	entry, err := e.Settle(1)
	require.NoError(t, err)
	assert.True(t, live.Equal(entry.Total), "live %s, recorded %s", live, entry.Total)
	assert.True(t, entry.Total.Equal(entry.RoomCost.Add(entry.BilliardCost).Add(entry.BarCost)))

	// 108s at 1.7/min and 37s at 1.2/min stay unrounded.
	assertDecimal(t, "3.06", entry.RoomCost)
	assertDecimal(t, "0.74", entry.BilliardCost)
}

func TestSettleClosesRunningTimerInEntry(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	require.NoError(t, e.SelectRoom(1, "Room 1"))
	_, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	entry, err := e.Settle(1)
	require.NoError(t, err)
	assert.Equal(t, "04:51 PM", entry.Room.End)
	assert.Equal(t, testStart.Add(90*time.Second), entry.SettledAt)
	assert.Zero(t, f.clock.Active(), "settled guest has no live ticks")

	f.clock.Advance(10 * time.Second)
	assertDecimal(t, "2.55", f.ledger.Income().PS)
}

type failingLedger struct{}

func (failingLedger) Record(ledger.Entry) (ledger.Entry, error) {
	return ledger.Entry{}, errors.New("disk full")
}

func TestSettleFailureLeavesGuestIntact(t *testing.T) {
	stock := inventory.NewService()
	require.NoError(t, stock.Add(inventory.Item{Name: "Cola", Price: decimal.NewFromInt(10), Quantity: 5}))
	fake := clock.NewFake(testStart)
	e := New(DefaultConfig(), stock, failingLedger{}, WithClock(fake))
	t.Cleanup(e.Close)

	_, _ = e.AddGuest()
	require.NoError(t, e.SelectRoom(1, "Room 1"))
	_, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	_, err = e.AddBarItem(1, "Cola")
	require.NoError(t, err)

	_, err = e.Settle(1)
	require.Error(t, err)

	q, err := e.Quote(1)
	require.NoError(t, err)
	assert.True(t, q.RoomTimer.Running)
	assert.Equal(t, "Room 1", q.Room)
	assert.Equal(t, []TabLine{{Item: "Cola", Count: 1}}, q.Tab)
	assert.Equal(t, 1, fake.Active())
}

func TestRemoveGuestVoidsTab(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	_, err := e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)
	_, err = e.AddBarItem(1, "Cola")
	require.NoError(t, err)
	_, err = e.AddBarItem(1, "Cola")
	require.NoError(t, err)

	require.NoError(t, e.RemoveGuest(1))
	assert.Equal(t, 5, f.quantity(t, "Cola"))
	assert.Zero(t, f.clock.Active())
	assert.Empty(t, f.ledger.List())

	_, ok := e.BilliardHolder()
	assert.False(t, ok)
	assert.ErrorIs(t, e.RemoveGuest(1), ErrGuestNotFound)
}

func TestRestoreContinuesNumbering(t *testing.T) {
	var saved [][]GuestRecord
	f := newFixture(t, WithGuestsHook(func(records []GuestRecord) {
		saved = append(saved, records)
	}))
	e := f.engine

	e.Restore([]GuestRecord{
		{GuestNumber: 4, CreatedAt: testStart},
		{GuestNumber: 2, CreatedAt: testStart},
		{GuestNumber: 0},
	})
	assert.Empty(t, saved, "restore does not persist")

	g, err := e.AddGuest()
	require.NoError(t, err)
	assert.Equal(t, 5, g.GuestNumber)

	records := e.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []int{2, 4, 5}, []int{records[0].GuestNumber, records[1].GuestNumber, records[2].GuestNumber})

	require.Len(t, saved, 1)
	assert.Len(t, saved[0], 3)

	q, err := e.Quote(4)
	require.NoError(t, err)
	assert.Empty(t, q.Room)
	assert.False(t, q.RoomTimer.Running)
}

func TestCloseStopsTicks(t *testing.T) {
	f := newFixture(t)
	e := f.engine
	_, _ = e.AddGuest()
	_, err := e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)

	e.Close()
	assert.Zero(t, f.clock.Active())

	_, err = e.AddGuest()
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.StartTimer(1, ServiceRoom)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestParseService(t *testing.T) {
	tests := []struct {
		in   string
		want Service
	}{
		{"room", ServiceRoom},
		{"PS", ServiceRoom},
		{" billiard ", ServiceBilliard},
		{"billiardo", ServiceBilliard},
	}
	for _, tt := range tests {
		got, err := ParseService(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseService("darts")
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestRealClockEngineDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	stock := inventory.NewService()
	e := New(DefaultConfig(), stock, ledger.New())
	_, _ = e.AddGuest()
	require.NoError(t, e.SelectRoom(1, "Room 1"))
	_, err := e.StartTimer(1, ServiceRoom)
	require.NoError(t, err)
	_, err = e.StartTimer(1, ServiceBilliard)
	require.NoError(t, err)

	_, err = e.StopTimer(1, ServiceBilliard)
	require.NoError(t, err)
	_, err = e.Settle(1)
	require.NoError(t, err)
	e.Close()
}
