package alert

import (
	"context"
	"sync"
)

// FakeStatusSource returns scripted statuses for testing.
type FakeStatusSource struct {
	mu     sync.Mutex
	status string
	err    error
	Calls  int
}

// NewFakeStatusSource creates a source that returns status.
func NewFakeStatusSource(status string) *FakeStatusSource {
	return &FakeStatusSource{status: status}
}

// Set changes the scripted response.
func (f *FakeStatusSource) Set(status string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.err = status, err
}

// Status returns the scripted response.
func (f *FakeStatusSource) Status(ctx context.Context, creds Credentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

// CallCount returns the number of Status calls.
func (f *FakeStatusSource) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
