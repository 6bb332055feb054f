// Package clock provides the UNIX-nanosecond time abstractions shared by
// the engines: a lock-free atomic timestamp, a live wall-clock reader, and
// a deterministic test clock.
package clock

import (
	"sync/atomic"
	"time"
)

// UnixNanos is a UNIX timestamp expressed in nanoseconds.
type UnixNanos = uint64

// Now returns the current wall-clock time as UnixNanos.
func Now() UnixNanos {
	return uint64(time.Now().UnixNano())
}

// Clock is implemented by both the live clock and the test clock.
type Clock interface {
	Now() UnixNanos
}

// LiveClock reads system time.
type LiveClock struct{}

// Now returns the current wall-clock time.
func (LiveClock) Now() UnixNanos { return Now() }

// AtomicTime is a lock-free atomic timestamp a caller can read and update.
type AtomicTime struct {
	nanos atomic.Uint64
}

// NewAtomicTime creates an AtomicTime initialized to the current wall time.
func NewAtomicTime() *AtomicTime {
	at := &AtomicTime{}
	at.nanos.Store(Now())
	return at
}

// Get returns the current stored timestamp.
func (a *AtomicTime) Get() UnixNanos { return a.nanos.Load() }

// Set stores an explicit timestamp.
func (a *AtomicTime) Set(ts UnixNanos) { a.nanos.Store(ts) }

// UpdateNow stores the current wall-clock time.
func (a *AtomicTime) UpdateNow() { a.nanos.Store(Now()) }

// TestClock is an atomic timestamp the caller advances manually, used to
// drive deterministic tests of time-based behavior (e.g. Time-mode bar
// aggregation).
type TestClock struct {
	nanos atomic.Uint64
}

// NewTestClock creates a TestClock starting at the given timestamp.
func NewTestClock(start UnixNanos) *TestClock {
	tc := &TestClock{}
	tc.nanos.Store(start)
	return tc
}

// Now returns the clock's current timestamp.
func (t *TestClock) Now() UnixNanos { return t.nanos.Load() }

// Advance moves the clock forward by the given duration in nanoseconds.
func (t *TestClock) Advance(deltaNanos uint64) UnixNanos {
	return t.nanos.Add(deltaNanos)
}

// SetTime sets the clock to an explicit timestamp.
func (t *TestClock) SetTime(ts UnixNanos) { t.nanos.Store(ts) }
