package perf

import (
	"errors"
	"fmt"
)

// ErrNotActive is returned when a capture is requested without an active
// session.
var ErrNotActive = errors.New("profiling session not active")

// SessionError reports a failure to open or operate the instrumentation
// connection.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// CaptureError reports a capture-subsystem failure mid-operation, including
// a rejected concurrent capture.
type CaptureError struct {
	Type ProfileType
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s capture: %v", e.Type, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// PersistenceError reports an artifact write or delete failure.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
