// Package billing is the per-guest billing and timer engine: room and
// billiard timers, room selection and billiard exclusivity, bar tabs, the
// live running total and settlement into the ledger.
package billing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"loungebackend/internal/clock"
	"loungebackend/internal/logger"
)

const (
	defaultClockLayout = "03:04 PM"
	notAvailable       = "N/A"
	tickPeriod         = time.Second
)

// Config holds the engine's business defaults.
type Config struct {
	Rooms        []string
	RoomRate     decimal.Decimal // per minute
	BilliardRate decimal.Decimal // per minute
	ClockLayout  string          // layout for start/end stamps
	Location     *time.Location
}

// DefaultConfig returns six rooms, 1.7/min for rooms and 1.2/min for the
// billiard table.
func DefaultConfig() Config {
	return Config{
		Rooms:        []string{"Room 1", "Room 2", "Room 3", "Room 4", "Room 5", "Room 6"},
		RoomRate:     decimal.RequireFromString("1.7"),
		BilliardRate: decimal.RequireFromString("1.2"),
		ClockLayout:  defaultClockLayout,
		Location:     time.Local,
	}
}

// Engine owns every active guest. One mutex serializes all mutations,
// including timer ticks, so no two updates ever interleave on a guest.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	clock   clock.Clock
	catalog Catalog
	ledger  Ledger

	guests     map[int]*guest
	nextNumber int
	closed     bool

	onGuests func([]GuestRecord)
}

type guest struct {
	number    int
	createdAt time.Time
	room      string
	timers    [2]*meteredTimer
	tab       []TabLine
}

type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithGuestsHook registers fn to receive the guest list after guests are
// added or removed. fn runs with the engine lock held.
func WithGuestsHook(fn func([]GuestRecord)) Option {
	return func(e *Engine) { e.onGuests = fn }
}

// New builds an engine. Zero-valued config fields take the defaults.
func New(cfg Config, catalog Catalog, sink Ledger, opts ...Option) *Engine {
	def := DefaultConfig()
	if len(cfg.Rooms) == 0 {
		cfg.Rooms = def.Rooms
	}
	if cfg.RoomRate.IsZero() {
		cfg.RoomRate = def.RoomRate
	}
	if cfg.BilliardRate.IsZero() {
		cfg.BilliardRate = def.BilliardRate
	}
	if cfg.ClockLayout == "" {
		cfg.ClockLayout = def.ClockLayout
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	e := &Engine{
		cfg:        cfg,
		clock:      clock.Real{},
		catalog:    catalog,
		ledger:     sink,
		guests:     make(map[int]*guest),
		nextNumber: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Restore re-creates persisted guests with fresh, idle session state.
// Numbering continues after the highest restored guest number.
func (e *Engine) Restore(records []GuestRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range records {
		if rec.GuestNumber <= 0 {
			continue
		}
		if _, exists := e.guests[rec.GuestNumber]; exists {
			continue
		}
		e.guests[rec.GuestNumber] = newGuest(rec.GuestNumber, rec.CreatedAt)
		if rec.GuestNumber >= e.nextNumber {
			e.nextNumber = rec.GuestNumber + 1
		}
	}
	logger.LogInfo("Restored %d guests, next guest number %d", len(e.guests), e.nextNumber)
}

// AddGuest creates a guest with the next guest number.
func (e *Engine) AddGuest() (GuestRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return GuestRecord{}, ErrEngineClosed
	}

	g := newGuest(e.nextNumber, e.clock.Now())
	e.guests[g.number] = g
	e.nextNumber++

	logger.LogInfo("Guest %d added", g.number)
	e.persistGuestsLocked()
	return g.record(), nil
}

// RemoveGuest drops a guest without settling. Running timers are cancelled
// and the bar tab is voided back into stock.
func (e *Engine) RemoveGuest(number int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.guests[number]
	if !ok {
		return fmt.Errorf("%w: %d", ErrGuestNotFound, number)
	}

	for _, line := range g.tab {
		if _, err := e.catalog.Increment(line.Item, line.Count); err != nil {
			logger.LogWarn("Could not restock %d x %s for removed guest %d: %v", line.Count, line.Item, number, err)
		}
	}
	e.dropGuestLocked(g)

	logger.LogInfo("Guest %d removed without settlement", number)
	e.persistGuestsLocked()
	return nil
}

// Guests returns a quote for every active guest, ordered by guest number.
func (e *Engine) Guests() []Quote {
	e.mu.Lock()
	defer e.mu.Unlock()

	numbers := make([]int, 0, len(e.guests))
	for n := range e.guests {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	prices := e.catalog.Prices()
	out := make([]Quote, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, e.quoteLocked(e.guests[n], prices))
	}
	return out
}

// Records returns the persisted view of every active guest.
func (e *Engine) Records() []GuestRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordsLocked()
}

// Close cancels every running tick. Timer state is kept but no longer
// advances, and no new guests or timer starts are accepted.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for _, g := range e.guests {
		for _, t := range g.timers {
			t.cancel()
		}
	}
	logger.LogInfo("Billing engine closed")
}

func newGuest(number int, createdAt time.Time) *guest {
	return &guest{
		number:    number,
		createdAt: createdAt,
		timers:    [2]*meteredTimer{{}, {}},
	}
}

func (g *guest) record() GuestRecord {
	return GuestRecord{GuestNumber: g.number, CreatedAt: g.createdAt}
}

func (g *guest) timer(svc Service) *meteredTimer {
	return g.timers[svc]
}

func (e *Engine) guestLocked(number int) (*guest, error) {
	g, ok := e.guests[number]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGuestNotFound, number)
	}
	return g, nil
}

// dropGuestLocked cancels the guest's ticks and forgets all their state.
func (e *Engine) dropGuestLocked(g *guest) {
	for _, t := range g.timers {
		t.cancel()
	}
	delete(e.guests, g.number)
}

func (e *Engine) recordsLocked() []GuestRecord {
	out := make([]GuestRecord, 0, len(e.guests))
	for _, g := range e.guests {
		out = append(out, g.record())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuestNumber < out[j].GuestNumber })
	return out
}

func (e *Engine) persistGuestsLocked() {
	if e.onGuests != nil {
		e.onGuests(e.recordsLocked())
	}
}

func (e *Engine) stamp() string {
	return e.clock.Now().In(e.cfg.Location).Format(e.cfg.ClockLayout)
}
