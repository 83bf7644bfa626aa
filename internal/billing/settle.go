package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"loungebackend/internal/ledger"
	"loungebackend/internal/logger"
)

var sixty = decimal.NewFromInt(60)

// meteredCost is (seconds / 60) * rate, unrounded.
func meteredCost(seconds int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(seconds).Mul(rate).Div(sixty)
}

// quoteLocked prices a guest against one price snapshot. Items no longer in
// the catalog price at zero.
func (e *Engine) quoteLocked(g *guest, prices map[string]decimal.Decimal) Quote {
	room := g.timer(ServiceRoom).snapshot()
	billiard := g.timer(ServiceBilliard).snapshot()

	bar := decimal.Zero
	for _, line := range g.tab {
		price, ok := prices[line.Item]
		if !ok {
			continue
		}
		bar = bar.Add(price.Mul(decimal.NewFromInt(int64(line.Count))))
	}

	roomCost := meteredCost(room.ElapsedSeconds, e.cfg.RoomRate)
	billiardCost := meteredCost(billiard.ElapsedSeconds, e.cfg.BilliardRate)

	return Quote{
		GuestNumber:  g.number,
		Room:         g.room,
		RoomTimer:    room,
		Billiard:     billiard,
		Tab:          copyTab(g.tab),
		RoomCost:     roomCost,
		BilliardCost: billiardCost,
		BarCost:      bar,
		Total:        roomCost.Add(billiardCost).Add(bar),
	}
}

// Quote returns the guest's current billing state.
func (e *Engine) Quote(number int) (Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return Quote{}, err
	}
	return e.quoteLocked(g, e.catalog.Prices()), nil
}

// LiveTotal returns room, billiard and bar cost summed from one snapshot.
func (e *Engine) LiveTotal(number int) (decimal.Decimal, error) {
	q, err := e.Quote(number)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

// Settle archives the guest's bill into the ledger, crediting income, then
// releases everything the guest held and removes them. Nothing changes if
// the ledger rejects the entry. Settling a guest that no longer exists
// returns ErrGuestNotFound and has no effect.
func (e *Engine) Settle(number int) (ledger.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return ledger.Entry{}, err
	}

	q := e.quoteLocked(g, e.catalog.Prices())
	entry := e.entryLocked(g, q)

	recorded, err := e.ledger.Record(entry)
	if err != nil {
		logger.LogError("Guest %d: settlement not recorded: %v", number, err)
		return ledger.Entry{}, fmt.Errorf("settle guest %d: %w", number, err)
	}

	e.dropGuestLocked(g)
	logger.LogInfo("Guest %d settled: room %s, billiard %s, bar %s, total %s",
		number,
		q.RoomCost.StringFixed(2),
		q.BilliardCost.StringFixed(2),
		q.BarCost.StringFixed(2),
		q.Total.StringFixed(2))
	e.persistGuestsLocked()
	return recorded, nil
}

// SettleIfPresent settles the guest and reports whether they existed.
// A missing guest is not an error.
func (e *Engine) SettleIfPresent(number int) (ledger.Entry, bool, error) {
	entry, err := e.Settle(number)
	if errors.Is(err, ErrGuestNotFound) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return entry, true, nil
}

// entryLocked builds the history entry for q. A timer still running is
// closed at the current time in the entry only; the guest's own state is
// not touched until the entry is recorded.
func (e *Engine) entryLocked(g *guest, q Quote) ledger.Entry {
	now := e.stamp()

	room := ledger.RoomUse{
		Name:  orNA(q.Room),
		Start: orNA(q.RoomTimer.Start),
		End:   orNA(endStamp(q.RoomTimer, now)),
	}
	billiard := ledger.BilliardUse{
		Start: orNA(q.Billiard.Start),
		End:   orNA(endStamp(q.Billiard, now)),
	}

	return ledger.Entry{
		GuestNumber:  g.number,
		Room:         room,
		RoomCost:     q.RoomCost,
		Billiard:     billiard,
		BilliardCost: q.BilliardCost,
		BarItems:     q.TabSummary(),
		BarCost:      q.BarCost,
		Total:        q.Total,
		SettledAt:    e.clock.Now(),
	}
}

func endStamp(t TimerSnapshot, now string) string {
	if t.Running {
		return now
	}
	return t.End
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
