// Package timeutil provides a small clock abstraction so that stores and
// lifecycle logic can be tested with deterministic timestamps.
package timeutil

import (
	"sync"
	"time"
)

// Clock supplies the current time. Production code uses System; tests use
// Fake to control timestamps.
type Clock interface {
	Now() time.Time
}

// systemClock is the wall clock, always in UTC.
type systemClock struct{}

// Now returns the current UTC time.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu sync.Mutex
	t  time.Time
}

// NewFake creates a fake clock frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{t: t.UTC()}
}

// Now returns the frozen time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t.UTC()
}

// StartOfDay returns midnight of the given day, preserving location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameInstant reports whether two timestamps are equal ignoring monotonic
// clock readings and location.
func SameInstant(a, b time.Time) bool {
	return a.UTC().Equal(b.UTC())
}
