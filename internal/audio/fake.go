package audio

import (
	"sync"
)

// FakePlayer records calls for testing.
type FakePlayer struct {
	mu      sync.Mutex
	Played  []string
	Looped  []string
	Stops   int
	looping bool
	// PlayErr, if set, is returned by Play and Loop.
	PlayErr error
}

// NewFakePlayer creates a new fake player.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

// Play records path.
func (f *FakePlayer) Play(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayErr != nil {
		return f.PlayErr
	}
	f.Played = append(f.Played, path)
	return nil
}

// Stop counts a track stop.
func (f *FakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stops++
}

// Loop records path and marks the siren as running.
func (f *FakePlayer) Loop(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayErr != nil {
		return f.PlayErr
	}
	if f.looping {
		return nil
	}
	f.looping = true
	f.Looped = append(f.Looped, path)
	return nil
}

// StopLoop stops the siren.
func (f *FakePlayer) StopLoop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.looping = false
}

// Looping reports whether the siren is running.
func (f *FakePlayer) Looping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.looping
}

// PlayedPaths returns a copy of the played paths.
func (f *FakePlayer) PlayedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Played))
	copy(out, f.Played)
	return out
}

// StopCount returns the number of track stops.
func (f *FakePlayer) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Stops
}

// Reset clears recorded calls.
func (f *FakePlayer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Played = nil
	f.Looped = nil
	f.Stops = 0
}
