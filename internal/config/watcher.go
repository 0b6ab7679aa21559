package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-reads the config file when it changes on disk and hands the new
// contents to onChange. Saves made through the Manager are not reported.
type Watcher struct {
	mgr      *Manager
	onChange func(File)
	debounce time.Duration

	fsw      *fsnotify.Watcher
	reload   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for the manager's file.
func NewWatcher(mgr *Manager, onChange func(File)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		mgr:      mgr,
		onChange: onChange,
		debounce: DefaultDebounce,
		fsw:      fsw,
		reload:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce window.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start watches the directory containing the config file. Watching the
// directory survives editors that replace the file on save.
func (w *Watcher) Start() error {
	dir := w.mgr.Dir()
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	w.wg.Add(2)
	go w.watchLoop()
	go w.reloadLoop()
	log.Printf("config: watching %s", w.mgr.Path())
	return nil
}

// Stop ends both loops and closes the underlying watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		if err := w.fsw.Close(); err != nil {
			log.Printf("config: close watcher: %v", err)
		}
		w.wg.Wait()
	})
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	name := filepath.Base(w.mgr.Path())
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				select {
				case w.reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

func (w *Watcher) reloadLoop() {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.reload:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.apply()
		}
	}
}

func (w *Watcher) apply() {
	f, changed, err := w.mgr.Reload()
	if err != nil {
		log.Printf("config: reload failed, keeping current settings: %v", err)
		return
	}
	if !changed {
		return
	}
	log.Printf("config: reloaded %s", w.mgr.Path())
	if w.onChange != nil {
		w.onChange(f)
	}
}
