// Package ledger holds the append-only history of settled visits and the
// additive income accumulator.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loungebackend/internal/logger"
)

var (
	ErrEntryNotFound = errors.New("history entry not found")
	ErrInvalidEntry  = errors.New("invalid history entry")
)

// RoomUse describes the room part of a settled visit.
type RoomUse struct {
	Name  string `json:"name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// BilliardUse describes the billiard part of a settled visit.
type BilliardUse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Entry is one settled visit. Entries are immutable once recorded.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	GuestNumber  int             `json:"guest_number"`
	Room         RoomUse         `json:"room"`
	RoomCost     decimal.Decimal `json:"room_cost"`
	Billiard     BilliardUse     `json:"billiard"`
	BilliardCost decimal.Decimal `json:"billiard_cost"`
	BarItems     string          `json:"bar_items"`
	BarCost      decimal.Decimal `json:"bar_cost"`
	Total        decimal.Decimal `json:"total"`
	SettledAt    time.Time       `json:"settled_at"`
}

// Income is the running revenue per service line.
type Income struct {
	PS       decimal.Decimal `json:"ps_income"`
	Billiard decimal.Decimal `json:"billiardo_income"`
	Bar      decimal.Decimal `json:"bar_income"`
}

func (i Income) Total() decimal.Decimal {
	return i.PS.Add(i.Billiard).Add(i.Bar)
}

// Credit is an additive income update. Negative components are rejected.
type Credit struct {
	PS       decimal.Decimal
	Billiard decimal.Decimal
	Bar      decimal.Decimal
}

func (c Credit) validate() error {
	if c.PS.IsNegative() || c.Billiard.IsNegative() || c.Bar.IsNegative() {
		return fmt.Errorf("%w: income credit must not be negative", ErrInvalidEntry)
	}
	return nil
}

// Ledger combines the history sink and the income accumulator behind one
// lock so a settlement lands in both or in neither.
type Ledger struct {
	mu      sync.RWMutex
	history []Entry
	income  Income

	onHistory func([]Entry)
	onIncome  func(Income)
	notifyMu  sync.Mutex
}

type Option func(*Ledger)

// WithHistoryHook registers fn to receive a copy of the history after it
// changes.
func WithHistoryHook(fn func([]Entry)) Option {
	return func(l *Ledger) { l.onHistory = fn }
}

// WithIncomeHook registers fn to receive the income totals after they change.
func WithIncomeHook(fn func(Income)) Option {
	return func(l *Ledger) { l.onIncome = fn }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{income: zeroIncome()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore replaces history and income without firing hooks.
func (l *Ledger) Restore(history []Entry, income Income) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append([]Entry(nil), history...)
	l.income = income
}

// Record appends entry to the history and credits its three cost components
// to income. The entry gets an ID and settlement time if it has none.
func (l *Ledger) Record(entry Entry) (Entry, error) {
	credit := Credit{PS: entry.RoomCost, Billiard: entry.BilliardCost, Bar: entry.BarCost}
	if err := credit.validate(); err != nil {
		return Entry{}, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.SettledAt.IsZero() {
		entry.SettledAt = time.Now()
	}

	l.mu.Lock()
	l.history = append(l.history, entry)
	l.income = l.income.add(credit)
	l.mu.Unlock()

	logger.LogInfo("Recorded settlement %s for guest %d: total %s", entry.ID, entry.GuestNumber, entry.Total.StringFixed(2))
	l.notifyHistory()
	l.notifyIncome()
	return entry, nil
}

// Append adds entry to history without touching income.
func (l *Ledger) Append(entry Entry) Entry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	l.mu.Lock()
	l.history = append(l.history, entry)
	l.mu.Unlock()

	l.notifyHistory()
	return entry
}

// Credit adds c to the income totals.
func (l *Ledger) Credit(c Credit) error {
	if err := c.validate(); err != nil {
		return err
	}

	l.mu.Lock()
	l.income = l.income.add(c)
	l.mu.Unlock()

	l.notifyIncome()
	return nil
}

// List returns a copy of the history, oldest first.
func (l *Ledger) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.history...)
}

// Income returns the current totals.
func (l *Ledger) Income() Income {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.income
}

// RemoveAt deletes the entry at index. Income already credited stays.
func (l *Ledger) RemoveAt(index int) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.history) {
		l.mu.Unlock()
		return fmt.Errorf("%w: index %d", ErrEntryNotFound, index)
	}
	removed := l.history[index]
	l.history = append(l.history[:index:index], l.history[index+1:]...)
	l.mu.Unlock()

	logger.LogInfo("Removed history entry %s (guest %d)", removed.ID, removed.GuestNumber)
	l.notifyHistory()
	return nil
}

// Clear drops every history entry. Income is left as is.
func (l *Ledger) Clear() {
	l.mu.Lock()
	n := len(l.history)
	l.history = nil
	l.mu.Unlock()

	logger.LogInfo("Cleared %d history entries", n)
	l.notifyHistory()
}

func (l *Ledger) notifyHistory() {
	if l.onHistory == nil {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.onHistory(l.List())
}

func (l *Ledger) notifyIncome() {
	if l.onIncome == nil {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.onIncome(l.Income())
}

func (i Income) add(c Credit) Income {
	return Income{
		PS:       i.PS.Add(c.PS),
		Billiard: i.Billiard.Add(c.Billiard),
		Bar:      i.Bar.Add(c.Bar),
	}
}

func zeroIncome() Income {
	return Income{PS: decimal.Zero, Billiard: decimal.Zero, Bar: decimal.Zero}
}
