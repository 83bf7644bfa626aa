package billing

import (
	"fmt"

	"loungebackend/internal/logger"
)

// meteredTimer is one (guest, service) counter. Each run gets a new
// generation; a tick carrying an older generation is discarded, so a tick
// already in flight when the timer stops can never be counted.
type meteredTimer struct {
	elapsed int64
	running bool
	start   string // set once, on the first start
	end     string // overwritten on every stop
	gen     uint64
	stop    func()
}

func (t *meteredTimer) snapshot() TimerSnapshot {
	return TimerSnapshot{
		ElapsedSeconds: t.elapsed,
		Running:        t.running,
		Start:          t.start,
		End:            t.end,
	}
}

// cancel invalidates the current run and releases its tick without
// recording an end stamp.
func (t *meteredTimer) cancel() {
	t.gen++
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

// StartTimer moves a guest's timer to Running. Starting a running timer is
// a no-op. The room timer needs a room selection; the billiard timer needs
// the table to be free of every other guest's running timer.
func (e *Engine) StartTimer(number int, svc Service) (TimerSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !svc.valid() {
		return TimerSnapshot{}, fmt.Errorf("%w: %d", ErrUnknownService, int(svc))
	}
	if e.closed {
		return TimerSnapshot{}, ErrEngineClosed
	}
	g, err := e.guestLocked(number)
	if err != nil {
		return TimerSnapshot{}, err
	}

	t := g.timer(svc)
	if t.running {
		return t.snapshot(), nil
	}
	if err := e.checkStartLocked(g, svc); err != nil {
		logger.LogWarn("Guest %d: %s timer start rejected: %v", number, svc, err)
		return TimerSnapshot{}, err
	}

	e.startLocked(g, svc)
	logger.LogDebug("Guest %d: %s timer started at %s", number, svc, t.start)
	return t.snapshot(), nil
}

// StopTimer moves a guest's timer to Stopped and records the end stamp.
// Stopping a timer that is not running is a no-op.
func (e *Engine) StopTimer(number int, svc Service) (TimerSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !svc.valid() {
		return TimerSnapshot{}, fmt.Errorf("%w: %d", ErrUnknownService, int(svc))
	}
	g, err := e.guestLocked(number)
	if err != nil {
		return TimerSnapshot{}, err
	}

	t := g.timer(svc)
	if t.running {
		e.stopLocked(t)
		logger.LogDebug("Guest %d: %s timer stopped at %s after %ds", number, svc, t.end, t.elapsed)
	}
	return t.snapshot(), nil
}

// ToggleTimer starts a stopped timer or stops a running one.
func (e *Engine) ToggleTimer(number int, svc Service) (TimerSnapshot, error) {
	e.mu.Lock()
	running := false
	if g, ok := e.guests[number]; ok && svc.valid() {
		running = g.timer(svc).running
	}
	e.mu.Unlock()

	// A toggle racing another toggle resolves to whichever lands first; the
	// second becomes a no-op start or stop.
	if running {
		return e.StopTimer(number, svc)
	}
	return e.StartTimer(number, svc)
}

func (e *Engine) checkStartLocked(g *guest, svc Service) error {
	switch svc {
	case ServiceRoom:
		if g.room == "" {
			return ErrNoRoomSelected
		}
	case ServiceBilliard:
		if holder, ok := e.billiardHolderLocked(); ok && holder != g.number {
			return fmt.Errorf("%w (guest %d)", ErrBilliardInUse, holder)
		}
	}
	return nil
}

func (e *Engine) startLocked(g *guest, svc Service) {
	t := g.timer(svc)
	if t.start == "" {
		t.start = e.stamp()
	}
	t.running = true
	t.gen++
	gen, number := t.gen, g.number
	t.stop = e.clock.Tick(tickPeriod, func() { e.tick(number, svc, gen) })
}

func (e *Engine) stopLocked(t *meteredTimer) {
	t.running = false
	t.end = e.stamp()
	t.cancel()
}

// tick adds one second to the timer if the run that scheduled it is still
// the current one.
func (e *Engine) tick(number int, svc Service, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.guests[number]
	if !ok {
		return
	}
	t := g.timer(svc)
	if !t.running || t.gen != gen {
		return
	}
	t.elapsed++
}
