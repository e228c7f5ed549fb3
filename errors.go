package central

import "github.com/pkg/errors"

var (
	// ErrPoolFull is returned when every connection slot is taken.
	ErrPoolFull = errors.New("connection pool full")

	// ErrDuplicateSession is returned when a device already has a session.
	ErrDuplicateSession = errors.New("device already has a session")

	// ErrUnknownDevice is returned when no identified session matches.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrWriteFailed is returned when the radio refuses a write.
	ErrWriteFailed = errors.New("write failed")

	// ErrIllegalTransition is returned for a backwards or terminal state change.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrNotRunning is returned when the manager has not been started.
	ErrNotRunning = errors.New("manager not running")

	// ErrInvalidConfig is returned by constructors on bad configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)
