package runner

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for an empty or whitespace-only script.
// No shell is started.
var ErrInvalidInput = errors.New("script is empty")

// ErrBusy is returned when the concurrency cap is reached and the caller
// gave up waiting for a slot.
var ErrBusy = errors.New("too many scripts running")

// SpawnError reports that the shell could not be started.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
