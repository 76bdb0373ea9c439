package register

import (
	"errors"
	"fmt"
)

var (
	ErrClosed    = errors.New("register: queue is closed")
	ErrReadOnly  = errors.New("register: backend is read-only")
	ErrNoReading = errors.New("register: no reading received yet")
	ErrDrained   = errors.New("register: command drained")
)

// ErrDeviceDisconnected wraps the error that made a backend unusable.
type ErrDeviceDisconnected struct {
	Wrapped error
}

func (e ErrDeviceDisconnected) Unwrap() error { return e.Wrapped }
func (e ErrDeviceDisconnected) Error() string {
	if e.Wrapped == nil {
		return "register: device disconnected"
	}
	return fmt.Sprintf("register: device disconnected: %v", e.Wrapped)
}

func IsDeviceDisconnected(err error) bool {
	var d ErrDeviceDisconnected
	return errors.As(err, &d)
}
