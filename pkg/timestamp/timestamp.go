// Package timestamp handles the int64 Unix-millisecond timestamps carried by
// user records. Zero means "not set".
package timestamp

import (
	"sync/atomic"
	"time"
)

// Clock yields the current time in Unix milliseconds.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

// Now implements Clock.
func (f ClockFunc) Now() int64 { return f() }

// System is the wall clock.
var System Clock = ClockFunc(Now)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time; 0 yields the zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToUnixMs converts t to Unix milliseconds; the zero time yields 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Format renders ms as RFC3339 in UTC, or "" for 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// After returns max(now, prev+1) so successive stamps strictly increase even
// when the clock stalls or steps back.
func After(prev, now int64) int64 {
	if now <= prev {
		return prev + 1
	}
	return now
}

// Monotonic wraps a Clock so that every reading is strictly greater than the
// previous one. Safe for concurrent use.
type Monotonic struct {
	clock Clock
	last  atomic.Int64
}

// NewMonotonic wraps clock; a nil clock means System.
func NewMonotonic(clock Clock) *Monotonic {
	if clock == nil {
		clock = System
	}
	return &Monotonic{clock: clock}
}

// Now implements Clock.
func (m *Monotonic) Now() int64 {
	for {
		prev := m.last.Load()
		next := After(prev, m.clock.Now())
		if m.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
