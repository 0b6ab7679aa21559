// Package engine ties the bell rules to the outside world. One Engine holds
// the clock, timetable, ledger, minute of silence, daily triggers and alarm
// flag, and is shared by the worker, render and poll actors.
//
// Ownership: the worker is the only writer of the ledger, the minute of
// silence and the triggers; the alert poller is the only writer of the alarm
// flag. Control operations replace the timetable and settings wholesale.
package engine

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/clock"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/gpio"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/metrics"
	"github.com/sweeney/bell-scheduler/internal/mqtt"
	"github.com/sweeney/bell-scheduler/internal/power"
	"github.com/sweeney/bell-scheduler/internal/schedule"
	"github.com/sweeney/bell-scheduler/internal/status"
	"github.com/sweeney/bell-scheduler/internal/store"
)

// ErrInvalidName is returned for an empty or blank recording name.
var ErrInvalidName = errors.New("invalid recording name")

// Persister saves engine-originated changes to the config file.
type Persister interface {
	Update(fn func(*config.File)) error
}

// StateStore persists per-day firing state.
type StateStore interface {
	Load(date schedule.Date) (store.DayState, error)
	SaveFired(keys []logic.FiringKey) error
	SaveTrigger(kind logic.TriggerKind, date schedule.Date) error
	SaveSilence(date schedule.Date) error
}

// Options wires an Engine. Clock and Player are required; every other
// collaborator may be left nil.
type Options struct {
	Clock      *clock.Clock
	Timetable  *schedule.Timetable
	Settings   config.Settings
	Registry   *audio.Registry
	Player     audio.Player
	Power      power.Actions
	Relay      gpio.Relay
	RelayPulse time.Duration
	Publisher  mqtt.Publisher
	Tracker    *status.Tracker
	Metrics    *metrics.Recorder
	Store      StateStore
	Persist    Persister

	// Length measures a sound file; defaults to audio.Length.
	Length func(path string) (time.Duration, error)
	// SilenceAt is when the minute of silence arms; defaults to 09:00.
	SilenceAt *schedule.TimeOfDay
	Verbose   bool
}

// Engine is the single engine context.
type Engine struct {
	clock      *clock.Clock
	timetable  atomic.Pointer[schedule.Timetable]
	settings   atomic.Pointer[config.Settings]
	alarm      atomic.Bool
	ledger     *logic.Ledger
	dispatcher *logic.Dispatcher
	silence    *logic.Silence
	shutdown   *logic.DailyTrigger
	hibernate  *logic.DailyTrigger
	counter    *logic.Counter

	registry *audio.Registry
	player   audio.Player
	power    power.Actions
	relay    gpio.Relay
	pulse    time.Duration
	pub      mqtt.Publisher
	tracker  *status.Tracker
	metrics  *metrics.Recorder
	store    StateStore
	persist  Persister
	length   func(string) (time.Duration, error)
	verbose  bool

	// control serializes operations that read-modify-write settings or the
	// registry and persist the result.
	control sync.Mutex

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates an Engine. It does not start any loop.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.New(nil)
	}
	if opts.Timetable == nil {
		opts.Timetable = schedule.DefaultTimetable()
	}
	if opts.Registry == nil {
		opts.Registry = audio.NewRegistry(nil)
	}
	if opts.Length == nil {
		opts.Length = audio.Length
	}
	if opts.RelayPulse <= 0 {
		opts.RelayPulse = gpio.DefaultPulse
	}
	at := logic.DefaultSilenceAt
	if opts.SilenceAt != nil {
		at = *opts.SilenceAt
	}

	ledger := logic.NewLedger()
	e := &Engine{
		clock:      opts.Clock,
		ledger:     ledger,
		dispatcher: logic.NewDispatcher(ledger),
		silence:    logic.NewSilence(at),
		shutdown:   logic.NewDailyTrigger(logic.TriggerShutdown, opts.Settings.Shutdown),
		hibernate:  logic.NewDailyTrigger(logic.TriggerHibernate, opts.Settings.Hibernate),
		counter:    logic.NewCounter(opts.Clock.Real()),
		registry:   opts.Registry,
		player:     opts.Player,
		power:      opts.Power,
		relay:      opts.Relay,
		pulse:      opts.RelayPulse,
		pub:        opts.Publisher,
		tracker:    opts.Tracker,
		metrics:    opts.Metrics,
		store:      opts.Store,
		persist:    opts.Persist,
		length:     opts.Length,
		verbose:    opts.Verbose,
	}
	e.timetable.Store(opts.Timetable)
	s := opts.Settings
	e.settings.Store(&s)
	e.metrics.TestMode(opts.Clock.State().TestMode)
	return e
}

// Clock returns the engine clock.
func (e *Engine) Clock() *clock.Clock { return e.clock }

// Timetable returns the current timetable.
func (e *Engine) Timetable() *schedule.Timetable { return e.timetable.Load() }

// Settings returns a copy of the current settings.
func (e *Engine) Settings() config.Settings { return *e.settings.Load() }

// Registry returns the recording registry.
func (e *Engine) Registry() *audio.Registry { return e.registry }

// Ledger returns the dedup ledger.
func (e *Engine) Ledger() *logic.Ledger { return e.ledger }

// Alarm reports whether the alarm is active.
func (e *Engine) Alarm() bool { return e.alarm.Load() }

// Restore seeds today's firing state from the store so a restart does not
// repeat anything that already happened.
func (e *Engine) Restore(now time.Time) error {
	if e.store == nil {
		return nil
	}
	date := schedule.DateOf(now)
	st, err := e.store.Load(date)
	if err != nil {
		return err
	}
	e.ledger.Seed(date, st.Fired)
	if !st.SilenceFired.IsZero() {
		e.silence.MarkFired(st.SilenceFired)
	}
	for _, t := range []*logic.DailyTrigger{e.shutdown, e.hibernate} {
		if d, ok := st.TriggersFired[t.Kind]; ok {
			t.MarkFired(d)
		}
	}
	log.Printf("restored state for %s: %d fired, silence=%s", date, len(st.Fired), st.SilenceFired)
	return nil
}

// ApplyTimetable validates records strictly and replaces the timetable.
func (e *Engine) ApplyTimetable(records []schedule.Record) error {
	tt, err := schedule.StrictFromRecords(records)
	if err != nil {
		return err
	}
	e.timetable.Store(tt)
	log.Printf("timetable applied: %d periods", tt.Len())
	e.save(func(f *config.File) { f.SetTimetable(tt) })
	return nil
}

// EnableTestTime shifts logical time to hhmm.
func (e *Engine) EnableTestTime(hhmm string) error {
	if err := e.clock.EnableTest(hhmm); err != nil {
		return err
	}
	st := e.clock.State()
	log.Printf("test time enabled at %s (offset %v)", hhmm, st.Offset.Round(time.Second))
	e.metrics.TestMode(true)
	e.save(func(f *config.File) { f.SetClock(st) })
	return nil
}

// DisableTestTime returns to real time.
func (e *Engine) DisableTestTime() {
	e.clock.DisableTest()
	log.Printf("test time disabled")
	e.metrics.TestMode(false)
	e.save(func(f *config.File) { f.SetClock(clock.State{}) })
}

// ModifySettings applies fn to the current settings and stores the result.
// fn runs under the control lock, so concurrent partial updates never lose
// each other's fields. An error from fn changes nothing. The sound base
// directory is kept when the result leaves it empty. Disabling the minute of
// silence while it runs clears it on the next worker tick.
func (e *Engine) ModifySettings(fn func(config.Settings) (config.Settings, error)) (config.Settings, error) {
	e.control.Lock()
	defer e.control.Unlock()
	next, err := fn(e.Settings())
	if err != nil {
		return config.Settings{}, err
	}
	e.setSettings(next)
	e.save(func(f *config.File) { f.SetSettings(next) })
	return e.Settings(), nil
}

func (e *Engine) setSettings(s config.Settings) {
	if s.Sounds.BaseDir == "" {
		s.Sounds.BaseDir = e.Settings().Sounds.BaseDir
	}
	e.settings.Store(&s)
	e.shutdown.Configure(s.Shutdown)
	e.hibernate.Configure(s.Hibernate)
}

// ApplyConfig takes over a config file changed on disk. Nothing is saved.
func (e *Engine) ApplyConfig(f config.File) {
	e.control.Lock()
	defer e.control.Unlock()

	tt, err := f.Timetable()
	if err != nil {
		log.Printf("config: %v", err)
	}
	e.timetable.Store(tt)
	e.setSettings(f.Settings())
	e.registry.Replace(f.Recordings)

	want := f.Clock()
	cur := e.clock.State()
	if want.TestMode != cur.TestMode || (want.TestMode && want.Offset != cur.Offset.Truncate(time.Second)) {
		e.clock.Restore(want)
		e.metrics.TestMode(want.TestMode)
	}
	log.Printf("config applied: %d periods, silent=%v", tt.Len(), f.SilentMode)
}

// AddRecording registers an existing sound file as a custom recording. path
// is resolved against the sound base directory and must exist.
func (e *Engine) AddRecording(name, path string) error {
	e.control.Lock()
	defer e.control.Unlock()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("add %q: %w", name, ErrInvalidName)
	}
	if path == "" {
		return fmt.Errorf("recording %q: no path: %w", name, audio.ErrResourceUnavailable)
	}
	if _, err := os.Stat(e.Settings().Sounds.Path(path)); err != nil {
		return fmt.Errorf("recording %q: %v: %w", name, err, audio.ErrResourceUnavailable)
	}
	if err := e.registry.Add(name, path, e.clock.Real()); err != nil {
		return err
	}
	log.Printf("recording %q registered: %s", name, path)
	e.saveRecordings()
	return nil
}

// RenameRecording renames a custom recording.
func (e *Engine) RenameRecording(oldName, newName string) error {
	e.control.Lock()
	defer e.control.Unlock()
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("rename %q: %w", oldName, ErrInvalidName)
	}
	if err := e.registry.Rename(oldName, newName); err != nil {
		return err
	}
	e.saveRecordings()
	return nil
}

// DeleteRecording unregisters a custom recording and removes its file.
func (e *Engine) DeleteRecording(name string) error {
	e.control.Lock()
	defer e.control.Unlock()
	rec, err := e.registry.Delete(name)
	if err != nil {
		return err
	}
	if p := e.Settings().Sounds.Path(rec.Path); p != "" {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("recording %q: remove %s: %v", name, p, err)
		}
	}
	e.saveRecordings()
	return nil
}

func (e *Engine) saveRecordings() {
	recs := e.registry.All()
	e.save(func(f *config.File) { f.Recordings = recs })
}

func (e *Engine) save(fn func(*config.File)) {
	if e.persist == nil {
		return
	}
	if err := e.persist.Update(fn); err != nil {
		log.Printf("failed to save config: %v", err)
	}
}
