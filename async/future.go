// Package async composes device submissions on the host. A Future owns the
// completion event of a submission, the closure that extracts its result
// and the temporaries the submission needs until it has finished. Chained
// futures hand all of that down the chain, so a pipeline of any length is
// synchronised once, on its last future.
package async

import (
	"runtime"
	"sync"

	"github.com/LynnColeArt/gudaprim"
)

// Void is the result type of futures that only signal completion.
type Void = struct{}

// Releaser is a temporary resource whose release is deferred until the
// future owning it has been fulfilled.
type Releaser interface {
	Release()
}

// Future is the pending result of one or more device submissions.
type Future[T any] struct {
	event   *gudaprim.Event
	preds   []*gudaprim.Event
	extract func() (T, error)

	mu        sync.Mutex
	temps     []Releaser
	finalizer bool

	waitOnce sync.Once
	waitErr  error
	getOnce  sync.Once
	value    T
	getErr   error
}

// Ready returns a fulfilled future holding v.
func Ready[T any](v T) *Future[T] {
	f := &Future[T]{}
	f.value = v
	return f
}

// Failed returns a fulfilled future that reports err. Its event is
// already signalled with err, so submissions depending on it never run.
func Failed[T any](err error) *Future[T] {
	return &Future[T]{event: gudaprim.FailedEvent(err)}
}

// New returns a future for the submission signalled by ev. extract, which
// may be nil, runs at most once, after ev has completed successfully.
// temps are released once the future is fulfilled, or after ev completes
// if the future is dropped without being waited on.
func New[T any](ev *gudaprim.Event, extract func() (T, error), temps ...Releaser) *Future[T] {
	f := &Future[T]{
		event:   ev,
		extract: extract,
		temps:   temps,
	}
	f.keepAlive()
	return f
}

// FromEvent returns a completion-only future for ev.
func FromEvent(ev *gudaprim.Event, temps ...Releaser) *Future[Void] {
	return New[Void](ev, nil, temps...)
}

// After makes next subsume prev: next takes over prev's event and
// temporaries, so waiting on next alone covers both stages. next must have
// been submitted with prev.Event() among its dependencies. After returns
// next.
func After[T, U any](prev *Future[U], next *Future[T]) *Future[T] {
	prev.mu.Lock()
	temps := prev.temps
	prev.temps = nil
	prev.mu.Unlock()

	if prev.event != nil {
		next.preds = append(next.preds, prev.event)
	}
	next.preds = append(next.preds, prev.preds...)

	next.mu.Lock()
	next.temps = append(next.temps, temps...)
	next.mu.Unlock()
	next.keepAlive()
	return next
}

// Then returns the future of a submission that was made with prev.Event()
// as a dependency, subsuming prev.
func Then[T, U any](prev *Future[U], ev *gudaprim.Event, extract func() (T, error), temps ...Releaser) *Future[T] {
	return After(prev, New(ev, extract, temps...))
}

// Event returns the completion event of the last submission, or nil for
// futures created by Ready. A nil event is accepted as a
// dependency by Stream.Launch.
func (f *Future[T]) Event() *gudaprim.Event {
	return f.event
}

// IsReady reports whether Wait would return without blocking.
func (f *Future[T]) IsReady() bool {
	if f.event != nil && !f.event.IsComplete() {
		return false
	}
	for _, p := range f.preds {
		if !p.IsComplete() {
			return false
		}
	}
	return true
}

// Wait blocks until the future's submissions have completed and releases
// the temporaries it owns. It returns the first error of the chain; it
// can be called any number of times.
func (f *Future[T]) Wait() error {
	f.waitOnce.Do(func() {
		var err error
		if f.event != nil {
			err = f.event.Wait()
		}
		for _, p := range f.preds {
			if pErr := p.Wait(); err == nil {
				err = pErr
			}
		}
		f.waitErr = err
		f.release()
	})
	return f.waitErr
}

// Get waits and returns the result. The extraction closure runs exactly
// once; later calls return the same value.
func (f *Future[T]) Get() (T, error) {
	if err := f.Wait(); err != nil {
		var zero T
		return zero, err
	}
	f.getOnce.Do(func() {
		if f.extract != nil {
			f.value, f.getErr = f.extract()
		}
	})
	return f.value, f.getErr
}

func (f *Future[T]) release() {
	f.mu.Lock()
	temps := f.temps
	f.temps = nil
	f.mu.Unlock()
	for _, t := range temps {
		t.Release()
	}
}

// keepAlive arranges for the temporaries of a future that is dropped
// without being waited on to be released once its submissions finish.
func (f *Future[T]) keepAlive() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizer || len(f.temps) == 0 {
		return
	}
	f.finalizer = true
	runtime.SetFinalizer(f, (*Future[T]).releaseWhenDone)
}

// releaseWhenDone keeps the temporaries of a dropped future alive until
// its submissions finish.
func (f *Future[T]) releaseWhenDone() {
	f.mu.Lock()
	pending := len(f.temps) > 0
	f.mu.Unlock()
	if !pending {
		return
	}
	go func() {
		_ = f.Wait()
	}()
}
