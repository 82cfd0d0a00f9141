package publisher

import (
	"errors"
	"fmt"
	"time"
)

// State is the publisher lifecycle state.
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrTooManyFailures is returned by Run when consecutive delivery failures
// forced the shutdown.
var ErrTooManyFailures = errors.New("too many consecutive delivery failures")

// errInterrupted marks a tick cut short by a shutdown request.
var errInterrupted = errors.New("tick interrupted by shutdown")

// UnexpectedError wraps a failure outside the validation and delivery
// taxonomy, including recovered panics.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string { return "unexpected failure: " + e.Err.Error() }

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Status is a point-in-time view of the publisher.
type Status struct {
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Generated           int64      `json:"generated"`
	Rejected            int64      `json:"rejected"`
	Published           int64      `json:"published"`
	Failed              int64      `json:"failed"`
	LastError           string     `json:"last_error,omitempty"`
	LastPublished       *time.Time `json:"last_published,omitempty"`
}
