package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Upstream failures are wrapped with one of them so callers can use errors.Is.
var (
	ErrNetwork        = errors.New("network error")
	ErrTimeout        = errors.New("timeout")
	ErrAuthentication = errors.New("authentication error")
	ErrBadRequest     = errors.New("bad request")
	ErrRateLimit      = errors.New("rate limited")
	ErrServer         = errors.New("server error")
	ErrData           = errors.New("malformed response")

	// ErrBreakerOpen is returned without any network round-trip while the circuit breaker is open.
	ErrBreakerOpen = errors.New("circuit breaker open")
	// ErrCancelled is returned to queued callers when the queue is cancelled.
	ErrCancelled = errors.New("request cancelled")
	// ErrClosed is returned once the gateway stopped.
	ErrClosed = errors.New("gateway closed")
)

const previewSize = 256

func wrap(kind error, err error) error {
	if err == nil {
		return kind
	}

	return fmt.Errorf("%w: %w", kind, err)
}

func NewErrNetwork(err error) error        { return wrap(ErrNetwork, err) }
func NewErrTimeout(err error) error        { return wrap(ErrTimeout, err) }
func NewErrAuthentication(err error) error { return wrap(ErrAuthentication, err) }
func NewErrBadRequest(err error) error     { return wrap(ErrBadRequest, err) }
func NewErrRateLimit(err error) error      { return wrap(ErrRateLimit, err) }
func NewErrServer(err error) error         { return wrap(ErrServer, err) }

// ErrMalformedResponse is a data error keeping a preview of the raw payload for troubleshooting.
type ErrMalformedResponse struct {
	error
	Action  string
	Preview string
}

func NewErrMalformedResponse(err error, action string, payload []byte) ErrMalformedResponse {
	preview := payload
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}

	return ErrMalformedResponse{
		error:   wrap(ErrData, err),
		Action:  action,
		Preview: string(preview),
	}
}

func (e ErrMalformedResponse) Unwrap() error {
	return e.error
}

// IsRetryable reports whether err is transient: network, timeout or server failures.
// Errors without a kind are considered network failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	switch {
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTimeout), errors.Is(err, ErrServer):
		return true
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrBadRequest), errors.Is(err, ErrRateLimit),
		errors.Is(err, ErrData), errors.Is(err, ErrBreakerOpen), errors.Is(err, ErrCancelled), errors.Is(err, ErrClosed):
		return false
	}

	return !errors.Is(err, context.DeadlineExceeded)
}

// Kind returns a short label for err, used in metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBreakerOpen):
		return "breaker_open"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrData):
		return "data"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "network"
	}
}

// countsAsFailure reports whether err feeds the circuit breaker.
func countsAsFailure(err error) bool {
	return err != nil && Kind(err) != "cancelled" && Kind(err) != "breaker_open"
}
