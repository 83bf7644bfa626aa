package billing

import (
	"fmt"

	"loungebackend/internal/logger"
)

// Rooms returns the configured room names in picker order.
func (e *Engine) Rooms() []string {
	return append([]string(nil), e.cfg.Rooms...)
}

// SelectRoom binds room to the guest. The selection is advisory: it keeps
// the room out of other guests' pickers but is not checked again when the
// room timer starts.
func (e *Engine) SelectRoom(number int, room string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return err
	}
	if !e.knownRoom(room) {
		logger.LogWarn("Guest %d: unknown room %q", number, room)
		return fmt.Errorf("%w: %q", ErrUnknownRoom, room)
	}
	if !e.roomAvailableLocked(room, number) {
		logger.LogWarn("Guest %d: %s is selected by another guest", number, room)
		return fmt.Errorf("%w: %s", ErrRoomTaken, room)
	}

	g.room = room
	return nil
}

// RoomAvailable reports whether no guest other than excluding has room
// selected. A guest always sees their own selection as available.
func (e *Engine) RoomAvailable(room string, excluding int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roomAvailableLocked(room, excluding)
}

// RoomOptions returns the room picker for a guest.
func (e *Engine) RoomOptions(number int) ([]RoomOption, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return nil, err
	}

	out := make([]RoomOption, 0, len(e.cfg.Rooms))
	for _, room := range e.cfg.Rooms {
		out = append(out, RoomOption{
			Name:      room,
			Available: e.roomAvailableLocked(room, number),
			Selected:  g.room == room,
		})
	}
	return out, nil
}

// BilliardHolder returns the guest whose billiard timer is running, if any.
func (e *Engine) BilliardHolder() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.billiardHolderLocked()
}

func (e *Engine) knownRoom(room string) bool {
	for _, r := range e.cfg.Rooms {
		if r == room {
			return true
		}
	}
	return false
}

func (e *Engine) roomAvailableLocked(room string, excluding int) bool {
	for n, g := range e.guests {
		if n != excluding && g.room == room {
			return false
		}
	}
	return true
}

// billiardHolderLocked scans every guest: the table is venue-wide, so any
// running billiard timer holds it.
func (e *Engine) billiardHolderLocked() (int, bool) {
	for n, g := range e.guests {
		if g.timer(ServiceBilliard).running {
			return n, true
		}
	}
	return 0, false
}
