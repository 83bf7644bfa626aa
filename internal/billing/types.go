package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loungebackend/internal/ledger"
)

// Service names one of the two time-metered services a guest can run.
type Service int

const (
	ServiceRoom Service = iota
	ServiceBilliard
)

var serviceNames = [...]string{"room", "billiard"}

func (s Service) String() string {
	if s.valid() {
		return serviceNames[s]
	}
	return fmt.Sprintf("service(%d)", int(s))
}

func (s Service) valid() bool { return s == ServiceRoom || s == ServiceBilliard }

// ParseService maps "room" or "billiard" (case-insensitive) to a Service.
func ParseService(name string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "room", "ps":
		return ServiceRoom, nil
	case "billiard", "billiardo":
		return ServiceBilliard, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// Catalog is the part of the inventory the engine needs.
type Catalog interface {
	Decrement(name string, n int) (int, error)
	Increment(name string, n int) (int, error)
	Prices() map[string]decimal.Decimal
}

// Ledger receives settled visits.
type Ledger interface {
	Record(entry ledger.Entry) (ledger.Entry, error)
}

// GuestRecord is the persisted part of a guest. Timers, selections and the
// bar tab are session-only.
type GuestRecord struct {
	GuestNumber int       `json:"guest_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// TimerSnapshot is a point-in-time copy of one metered timer.
type TimerSnapshot struct {
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Running        bool   `json:"running"`
	Start          string `json:"start,omitempty"`
	End            string `json:"end,omitempty"`
}

// Elapsed formats the counter as M:SS.
func (t TimerSnapshot) Elapsed() string {
	return FormatElapsed(t.ElapsedSeconds)
}

// TabLine is one item type on a bar tab.
type TabLine struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Quote is the billing state of one guest, read under a single lock so the
// three cost components and the total always agree.
type Quote struct {
	GuestNumber  int             `json:"guest_number"`
	Room         string          `json:"room,omitempty"`
	RoomTimer    TimerSnapshot   `json:"room_timer"`
	Billiard     TimerSnapshot   `json:"billiard_timer"`
	Tab          []TabLine       `json:"tab"`
	RoomCost     decimal.Decimal `json:"room_cost"`
	BilliardCost decimal.Decimal `json:"billiard_cost"`
	BarCost      decimal.Decimal `json:"bar_cost"`
	Total        decimal.Decimal `json:"total"`
}

// TabSummary renders the tab as "Cola(2), Chips(1)".
func (q Quote) TabSummary() string {
	return summarizeTab(q.Tab)
}

// RoomOption is one entry of a guest's room picker.
type RoomOption struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Selected  bool   `json:"selected"`
}

// FormatElapsed renders seconds as M:SS.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func summarizeTab(tab []TabLine) string {
	parts := make([]string, 0, len(tab))
	for _, line := range tab {
		parts = append(parts, fmt.Sprintf("%s(%d)", line.Item, line.Count))
	}
	return strings.Join(parts, ", ")
}
