package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout is returned when the upstream call outlives its bound.
var ErrTimeout = errors.New("request timed out, please retry")

// ErrEmptyMessage is wrapped by ValidationError for a blank message.
var ErrEmptyMessage = errors.New("message must not be empty")

// ErrClientGone is wrapped by TransportError when the client stops reading.
var ErrClientGone = errors.New("client disconnected")

// ValidationError rejects a request before any upstream call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UpstreamStatusError carries a non-200 upstream status.
type UpstreamStatusError struct {
	Status int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("request failed: upstream status %d", e.Status)
}

// TransportError wraps a connection or read failure on either leg.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// isTimeout reports whether err stems from the call's deadline.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
