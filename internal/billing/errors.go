package billing

import (
	"errors"

	"loungebackend/internal/inventory"
)

// Precondition violations. The operation that returns one of these made no
// state change.
var (
	ErrNoRoomSelected = errors.New("please select a room before starting the timer")
	ErrBilliardInUse  = errors.New("billiard table is already in use by another guest")
	ErrEmptyTab       = errors.New("bar tab is empty")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrRoomTaken      = errors.New("room is already selected by another guest")
	ErrUnknownService = errors.New("unknown metered service")
	ErrEngineClosed   = errors.New("billing engine is closed")
)

// ErrGuestNotFound is returned when the guest number is not active. Callers
// settling or removing a guest treat it as a no-op.
var ErrGuestNotFound = errors.New("guest not found")

// IsPrecondition reports whether err is a user-facing rejection of the
// requested action.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrNoRoomSelected,
		ErrBilliardInUse,
		ErrEmptyTab,
		ErrUnknownRoom,
		ErrRoomTaken,
		ErrUnknownService,
		inventory.ErrOutOfStock,
		inventory.ErrItemNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
