package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Failure kinds reported through Outcome.Err. Match them with errors.Is.
var (
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrTimeout           = errors.New("delivery timed out")
	ErrRejected          = errors.New("record rejected")
)

// Error is a failed delivery.
type Error struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v after %d attempt(s)", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var rejectedErrors = []error{
	kerr.MessageTooLarge,
	kerr.RecordListTooLarge,
	kerr.InvalidRecord,
	kerr.CorruptMessage,
	kerr.InvalidTopicException,
	kerr.TopicAuthorizationFailed,
	kerr.PolicyViolation,
}

// Classify maps a client error onto one of the failure kinds.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRejected):
		return ErrRejected
	case errors.Is(err, ErrTimeout):
		return ErrTimeout
	case errors.Is(err, ErrBrokerUnavailable):
		return ErrBrokerUnavailable
	case errors.Is(err, kgo.ErrRecordTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	for _, r := range rejectedErrors {
		if errors.Is(err, r) {
			return ErrRejected
		}
	}
	return ErrBrokerUnavailable
}
