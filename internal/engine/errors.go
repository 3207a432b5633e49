package engine

import "errors"

var (
	ErrBusy            = errors.New("already in a session")
	ErrNoSession       = errors.New("not in a session")
	ErrHostUnavailable = errors.New("host unavailable")
	ErrStopped         = errors.New("device stopped")
)

// Notice is a user-facing error. Blocking notices need acknowledgement
// before the game can move on; the rest are dismissible.
type Notice struct {
	Err      error
	Blocking bool
}

func (n Notice) Error() string { return n.Err.Error() }
