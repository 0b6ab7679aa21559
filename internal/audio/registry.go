package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrRecordingExists   = errors.New("recording already exists")
)

// Recording is one registered custom sound.
type Recording struct {
	Path           string `yaml:"path" json:"path"`
	Created        string `yaml:"created,omitempty" json:"created,omitempty"`
	UsedInSchedule []int  `yaml:"used_in_schedule,omitempty" json:"used_in_schedule,omitempty"`
}

// Registry maps recording names to files. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	recs map[string]Recording
}

// NewRegistry creates a registry holding a copy of recs.
func NewRegistry(recs map[string]Recording) *Registry {
	r := &Registry{recs: make(map[string]Recording, len(recs))}
	for name, rec := range recs {
		r.recs[name] = rec
	}
	return r
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Get returns the recording registered under name. Nil registries are empty.
func (r *Registry) Get(name string) (Recording, bool) {
	if r == nil {
		return Recording{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[name]
	return rec, ok
}

// Add registers a new recording.
func (r *Registry) Add(name, path string, created time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrRecordingExists)
	}
	r.recs[name] = Recording{Path: path, Created: created.Format("2006-01-02T15:04:05")}
	return nil
}

// Rename moves a recording to a new name.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[oldName]
	if !ok {
		return fmt.Errorf("%q: %w", oldName, ErrRecordingNotFound)
	}
	if _, ok := r.recs[newName]; ok && newName != oldName {
		return fmt.Errorf("%q: %w", newName, ErrRecordingExists)
	}
	delete(r.recs, oldName)
	r.recs[newName] = rec
	return nil
}

// Delete unregisters a recording and returns it so the caller can remove the file.
func (r *Registry) Delete(name string) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[name]
	if !ok {
		return Recording{}, fmt.Errorf("%q: %w", name, ErrRecordingNotFound)
	}
	delete(r.recs, name)
	return rec, nil
}

// All returns a copy of the registry contents.
func (r *Registry) All() map[string]Recording {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Recording, len(r.recs))
	for n, rec := range r.recs {
		out[n] = rec
	}
	return out
}

// Replace swaps the whole registry, e.g. after the config file changed.
func (r *Registry) Replace(recs map[string]Recording) {
	next := make(map[string]Recording, len(recs))
	for name, rec := range recs {
		next[name] = rec
	}
	r.mu.Lock()
	r.recs = next
	r.mu.Unlock()
}
