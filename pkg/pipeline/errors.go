package pipeline

import (
	"errors"
	"fmt"

	"github.com/openshift-assisted/fleet-telemetry/pkg/eventbus"
)

// ErrProcessingError

type ErrProcessingError struct {
	error
	Category string
	// Event is the bus event being processed, when known.
	Event            *eventbus.Event
	AdditionalInputs []Input
}

type Input struct {
	Source string
	Key    string
	Value  []byte
}

const (
	UnknownCategory = "unknown"
	DecodeCategory  = "decode"
	PanicCategory   = "panic"
	TimeoutCategory = "timeout"
)

func NewErrProcessingError(err error, category string, additionalInputs []Input) ErrProcessingError {
	return ErrProcessingError{
		error:            err,
		Category:         category,
		AdditionalInputs: additionalInputs,
	}
}

func (e ErrProcessingError) Unwrap() error {
	return e.error
}

// WithEvent returns a copy of e attached to event.
func (e ErrProcessingError) WithEvent(event eventbus.Event) ErrProcessingError {
	e.Event = &event

	return e
}

// ErrRetryableError

var ErrRetryableError = errors.New("retryable error")

func NewErrRetryableError(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryableError, err)
}

func NewRetryableErrProcessingError(err error, category string, additionalInputs []Input) ErrProcessingError {
	return NewErrProcessingError(NewErrRetryableError(err), category, additionalInputs)
}

// AsProcessingError keeps the category of an ErrProcessingError found in err's chain,
// otherwise it wraps err in the unknown category.
func AsProcessingError(err error) ErrProcessingError {
	ret := ErrProcessingError{}
	if errors.As(err, &ret) {
		return ret
	}

	return NewErrProcessingError(err, UnknownCategory, nil)
}
