package gudaprim

import (
	"sync"
	"time"
)

// Profile holds the timestamps recorded for a submission.
type Profile struct {
	Submitted time.Time
	Started   time.Time
	Ended     time.Time
}

// Duration returns the time from start to end of execution.
func (p Profile) Duration() time.Duration {
	return p.Ended.Sub(p.Started)
}

// Event signals the completion of a submission. It carries the error, if
// any, that the submission finished with.
type Event struct {
	done chan struct{}

	mu      sync.Mutex
	err     error
	profile Profile
}

func newEvent(submitted time.Time) *Event {
	return &Event{
		done:    make(chan struct{}),
		profile: Profile{Submitted: submitted},
	}
}

// complete must be called exactly once.
func (e *Event) complete(started, ended time.Time, err error) {
	e.mu.Lock()
	e.err = err
	e.profile.Started = started
	e.profile.Ended = ended
	e.mu.Unlock()
	close(e.done)
}

// Wait blocks until the event has signalled and returns the error the
// submission finished with. It can be called any number of times.
func (e *Event) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// IsComplete reports whether the event has signalled.
func (e *Event) IsComplete() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the event signals.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Err returns the error of a completed event, or nil if the event has not
// signalled yet.
func (e *Event) Err() error {
	if !e.IsComplete() {
		return nil
	}
	return e.Wait()
}

// Profile returns the submission timestamps. Started and Ended are zero
// until the event completes.
func (e *Event) Profile() Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// WaitAll waits for every event and returns the first error encountered.
func WaitAll(events ...*Event) error {
	var first error
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if err := ev.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FailedEvent returns an event that has already signalled with err.
func FailedEvent(err error) *Event {
	ev := newEvent(time.Time{})
	ev.complete(time.Time{}, time.Time{}, err)
	return ev
}
