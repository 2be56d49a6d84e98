// Package testutil provides shared test helpers for waiting on channels.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeouts.
const (
	// DefaultTestTimeout is the standard timeout for async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second
)

// WaitForChannel waits for a signal or close on ch, failing after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// Receive returns the next value from ch. It fails if ch is closed or
// nothing arrives within timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed: %s", msg)
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
		var zero T
		return zero
	}
}

// WaitClosed fails unless ch is closed within timeout. Values received
// before the close fail the test.
func WaitClosed[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.False(t, ok, "%s: received %v", msg, v)
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}
