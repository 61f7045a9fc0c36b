// Package debounce collapses bursts of calls to an expensive asynchronous
// operation into a single execution. It backs the interactive preview flows:
// while a user is still typing, repeated preview requests keep superseding
// each other, and only the last one issued before a quiet period actually
// reaches the generation service.
//
// A Coalescer holds a table of slots keyed by an explicit correlation key, so
// the caller decides the granularity (one shared global slot, one per user,
// one per room). Each slot owns at most one live timer; arming a new timer and
// cancelling the previous one happen atomically under the slot table's mutex.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Op is the debounced operation. It receives the context and arguments of the
// call that survived the quiet period.
type Op[A, R any] func(ctx context.Context, args A) (R, error)

// outcome is what a waiting caller eventually receives: either the
// operation's result/error, or a superseded marker.
type outcome[R any] struct {
	value      R
	err        error
	superseded bool
}

// slot is the scheduling state for one correlation key: the pending timer and
// the channel that unblocks the caller currently waiting on it.
type slot[R any] struct {
	timer *time.Timer
	wait  chan outcome[R]
}

// Coalescer debounces an operation with a fixed delay across a table of
// keyed slots. The zero value is not usable; construct with New.
type Coalescer[A, R any] struct {
	op    Op[A, R]
	delay time.Duration

	mu    sync.Mutex
	slots map[string]*slot[R]
}

// New returns a Coalescer that executes op after calls on a slot have been
// quiet for delay.
func New[A, R any](op Op[A, R], delay time.Duration) *Coalescer[A, R] {
	return &Coalescer[A, R]{
		op:    op,
		delay: delay,
		slots: make(map[string]*slot[R]),
	}
}

// Do schedules op with args on the slot identified by key and blocks until
// the call is either executed or superseded.
//
// Semantics:
//   - If another Do on the same key arrives within the delay, this caller
//     unblocks immediately with ok=false and a nil error; its args never
//     reach op. Superseding is not an error condition.
//   - The last caller in a burst blocks until the delay elapses, then
//     receives op's result (ok=true) or op's error (ok=false, err != nil).
//   - Different keys never supersede each other.
//
// The context is the one handed to op if this call survives; it does not
// cancel the wait itself.
func (c *Coalescer[A, R]) Do(ctx context.Context, key string, args A) (value R, ok bool, err error) {
	c.mu.Lock()
	s := c.slots[key]
	if s == nil {
		s = &slot[R]{}
		c.slots[key] = s
	}

	// Supersede whoever is still waiting on this slot: kill their timer and
	// resolve them with no result before our own execution is even scheduled.
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.wait != nil {
		s.wait <- outcome[R]{superseded: true}
	}

	ch := make(chan outcome[R], 1)
	s.wait = ch
	s.timer = time.AfterFunc(c.delay, func() {
		v, opErr := c.op(ctx, args)

		// Only deliver if we are still the slot's current caller. A burst
		// that arrived while op was running has already resolved us as
		// superseded; the produced value is discarded.
		c.mu.Lock()
		current := s.wait == ch
		if current {
			s.timer = nil
			s.wait = nil
		}
		c.mu.Unlock()

		if current {
			ch <- outcome[R]{value: v, err: opErr}
		}
	})
	c.mu.Unlock()

	out := <-ch
	if out.superseded {
		var zero R
		return zero, false, nil
	}
	if out.err != nil {
		var zero R
		return zero, false, out.err
	}
	return out.value, true, nil
}

// Flush cancels any pending execution on key, resolving its waiter as
// superseded. It is intended for shutdown paths.
func (c *Coalescer[A, R]) Flush(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slots[key]
	if s == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.wait != nil {
		s.wait <- outcome[R]{superseded: true}
		s.wait = nil
	}
}
