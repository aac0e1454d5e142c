// Package latch provides a one-shot broadcast event, the building block
// behind started_event/ended_event/first_output_event and the start-on-
// output trigger. It's the same "close a channel to broadcast" idiom the
// teacher uses for cancellation throughout runtime/execution (ctx.Done()).
package latch

import "sync"

// Latch fires at most once. Fire is idempotent; Wait returns a channel that
// closes when (and if) the latch fires, and is safe to call before or after
// Fire from any number of goroutines.
type Latch struct {
	mu   sync.Mutex
	ch   chan struct{}
	fired bool
}

// New returns a latch that has not yet fired.
func New() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Fire closes the wait channel exactly once. Subsequent calls are no-ops.
func (l *Latch) Fire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fired {
		return
	}
	l.fired = true
	close(l.ch)
}

// Fired reports whether Fire has been called.
func (l *Latch) Fired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fired
}

// Wait returns the channel that closes when the latch fires.
func (l *Latch) Wait() <-chan struct{} {
	return l.ch
}
