package viewer

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-viewer/viewstate"
)

var (
	// ErrContainerRequired is returned when CreateSession has nothing to mount on.
	ErrContainerRequired = errors.New("viewer: container is required")
	// ErrSessionClosed is returned by handle methods after Close.
	ErrSessionClosed = errors.New("viewer: session closed")
	// ErrDuplicatePanel is returned when a panel component is added twice.
	ErrDuplicatePanel = viewstate.ErrDuplicatePanel
)

// SessionError records which step of a session operation failed.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("viewer: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapSessionError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return err
	}
	return &SessionError{Op: op, Err: err}
}
