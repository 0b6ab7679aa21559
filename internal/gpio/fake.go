package gpio

import (
	"sync"
	"time"
)

// FakeRelay is a test double that records rings.
type FakeRelay struct {
	mu sync.Mutex

	// Rings holds the duration of every Ring call.
	Rings []time.Duration

	// Closed tracks if Close was called
	Closed bool

	// RingError, if set, will be returned by Ring()
	RingError error
}

// NewFakeRelay creates a FakeRelay.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Ring records d.
func (f *FakeRelay) Ring(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RingError != nil {
		return f.RingError
	}
	f.Rings = append(f.Rings, d)
	return nil
}

// RingCount returns the number of successful rings.
func (f *FakeRelay) RingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Rings)
}

// Close marks the relay as closed.
func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset clears recorded rings.
func (f *FakeRelay) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rings = nil
	f.Closed = false
}
