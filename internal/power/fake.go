package power

import (
	"context"
	"sync"
)

// FakeActions records power actions for testing.
type FakeActions struct {
	mu         sync.Mutex
	Shutdowns  int
	Hibernates int
	// Err, if set, is returned by every action.
	Err error
}

// NewFakeActions creates a new fake.
func NewFakeActions() *FakeActions {
	return &FakeActions{}
}

// Shutdown records a shutdown.
func (f *FakeActions) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Shutdowns++
	return f.Err
}

// Hibernate records a hibernation.
func (f *FakeActions) Hibernate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Hibernates++
	return f.Err
}

// Counts returns the number of each action.
func (f *FakeActions) Counts() (shutdowns, hibernates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Shutdowns, f.Hibernates
}
