// Package clock abstracts wall-clock reads and recurring ticks so the billing
// engine can be driven by real time in production and by simulated seconds in
// tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source the billing engine depends on.
type Clock interface {
	Now() time.Time
	// Tick calls fn every period until the returned stop func is called.
	// stop is idempotent. A call to fn that was already due when stop ran
	// may still be delivered; callers guard against that themselves.
	Tick(period time.Duration, fn func()) (stop func())
}

// Real is backed by the runtime clock. Each Tick registration owns one
// goroutine which exits once stopped.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Tick(period time.Duration, fn func()) func() {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// Fake is a manually advanced clock. Due ticks fire synchronously inside
// Advance, ordered by deadline and then by registration order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	tickers map[int]*fakeTicker
}

type fakeTicker struct {
	id     int
	period time.Duration
	next   time.Time
	fn     func()
}

// NewFake returns a Fake clock reading start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, tickers: make(map[int]*fakeTicker)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Tick(period time.Duration, fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.tickers[id] = &fakeTicker{id: id, period: period, next: f.now.Add(period), fn: fn}

	return func() {
		f.mu.Lock()
		delete(f.tickers, id)
		f.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing every tick that falls due on
// the way. fn runs without the clock lock held, so it may stop tickers or
// register new ones.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		due := f.earliestDue(target)
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = due.next
		due.next = due.next.Add(due.period)
		fn := due.fn
		f.mu.Unlock()

		fn()
	}
}

// Active reports how many tick registrations are live.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *Fake) earliestDue(target time.Time) *fakeTicker {
	due := make([]*fakeTicker, 0, len(f.tickers))
	for _, t := range f.tickers {
		if !t.next.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next.Equal(due[j].next) {
			return due[i].id < due[j].id
		}
		return due[i].next.Before(due[j].next)
	})
	return due[0]
}
