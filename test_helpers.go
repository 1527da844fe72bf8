package gudaprim

import (
	"testing"
	"time"
)

// NewContextOrFail creates a context and fails the test if unsuccessful.
// The context is destroyed when the test finishes.
func NewContextOrFail(t testing.TB, cfg Config) *Context {
	t.Helper()
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}
	t.Cleanup(ctx.Destroy)
	return ctx
}

// WaitOrFail waits for ev and fails the test if it reports an error.
func WaitOrFail(t testing.TB, ev *Event) {
	t.Helper()
	if err := ev.Wait(); err != nil {
		t.Fatalf("Event failed: %v", err)
	}
}

// WaitTimeout waits for ev for at most d and fails the test if the event
// has not signalled by then. It returns the event error.
func WaitTimeout(t testing.TB, ev *Event, d time.Duration) error {
	t.Helper()
	select {
	case <-ev.Done():
		return ev.Wait()
	case <-time.After(d):
		t.Fatalf("Event did not signal within %v", d)
		return nil
	}
}

// SynchronizeOrFail synchronizes the context and fails the test if
// unsuccessful.
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}
