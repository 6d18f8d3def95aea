package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

var (
	// ErrInvalidConfig is returned before any worker starts when the run parameters are unusable.
	ErrInvalidConfig = errors.New("invalid run config")
	// ErrRetryExhausted is returned when a bounded retry policy gives up on a transient failure.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
	// ErrStoreWrite wraps persistence failures on append.
	ErrStoreWrite = errors.New("store write failed")
)

// FetchError describes a failed fetch and whether it is worth retrying.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch error for %s (status %d): %v", kind, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch error for %s: %v", kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransientStatus reports whether an HTTP status should be retried rather than parsed.
func TransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsTransient classifies err as a temporary transport failure.
// Cancellation is never transient; the caller checks its own context first so a
// per-request deadline still counts as a timeout.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// url.Error satisfies net.Error for every client failure, so classify what it wraps.
	var urlErr *url.Error
	for errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	default:
		return false
	}
}
