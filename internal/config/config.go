// Package config loads and saves the bell scheduler's settings file.
//
// Key names match the config.json written by earlier installs, so that file
// loads unchanged; YAML is a superset of JSON.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/clock"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config.yaml"

// UID is the alert region id. Older files store it as a number.
type UID string

// UnmarshalYAML accepts both numbers and strings.
func (u *UID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("ALERT_UID: expected a scalar, got kind %d", n.Kind)
	}
	v := strings.TrimSpace(n.Value)
	if v == "0" || n.Tag == "!!null" {
		v = ""
	}
	*u = UID(v)
	return nil
}

// MarshalYAML writes numeric ids as numbers to stay compatible.
func (u UID) MarshalYAML() (interface{}, error) {
	if u == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(string(u)); err == nil {
		return n, nil
	}
	return string(u), nil
}

// File is the on-disk configuration.
type File struct {
	Schedule         []schedule.Record          `yaml:"schedule"`
	LessonStartSound string                     `yaml:"lesson_start_sound_path"`
	LessonEndSound   string                     `yaml:"lesson_end_sound_path"`
	SirenSound       string                     `yaml:"siren_sound_path"`
	SilenceSound     string                     `yaml:"minute_of_silence_sound_path"`
	SilenceEnabled   bool                       `yaml:"minute_of_silence_enabled"`
	SilentMode       bool                       `yaml:"silent_mode"`
	TestMode         bool                       `yaml:"test_mode_on"`
	TestOffset       int64                      `yaml:"test_offset_seconds"`
	ShutdownEnabled  bool                       `yaml:"shutdown_enabled"`
	ShutdownTime     string                     `yaml:"shutdown_time"`
	HibernateEnabled bool                       `yaml:"hibernation_enabled"`
	HibernateTime    string                     `yaml:"hibernation_time"`
	AlertsToken      string                     `yaml:"ALERTS_TOKEN"`
	AlertUID         UID                        `yaml:"ALERT_UID"`
	Recordings       map[string]audio.Recording `yaml:"custom_recordings,omitempty"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() File {
	return File{
		Schedule:       schedule.DefaultTimetable().Records(),
		SilenceEnabled: true,
		ShutdownTime:   "00:00",
		HibernateTime:  "00:00",
	}
}

// Settings are the engine options a user can change at runtime.
type Settings struct {
	SilentMode     bool
	SilenceEnabled bool
	Sounds         audio.Sounds
	Shutdown       logic.TriggerConfig
	Hibernate      logic.TriggerConfig
}

// Settings extracts runtime options. Invalid trigger times read as 00:00.
func (f File) Settings() Settings {
	return Settings{
		SilentMode:     f.SilentMode,
		SilenceEnabled: f.SilenceEnabled,
		Sounds: audio.Sounds{
			LessonStart: f.LessonStartSound,
			LessonEnd:   f.LessonEndSound,
			Siren:       f.SirenSound,
			Silence:     f.SilenceSound,
		},
		Shutdown:  logic.TriggerConfig{Enabled: f.ShutdownEnabled, At: triggerTime(f.ShutdownTime)},
		Hibernate: logic.TriggerConfig{Enabled: f.HibernateEnabled, At: triggerTime(f.HibernateTime)},
	}
}

// SetSettings writes runtime options back. BaseDir is not persisted.
func (f *File) SetSettings(s Settings) {
	f.SilentMode = s.SilentMode
	f.SilenceEnabled = s.SilenceEnabled
	f.LessonStartSound = s.Sounds.LessonStart
	f.LessonEndSound = s.Sounds.LessonEnd
	f.SirenSound = s.Sounds.Siren
	f.SilenceSound = s.Sounds.Silence
	f.ShutdownEnabled = s.Shutdown.Enabled
	f.ShutdownTime = s.Shutdown.At.String()
	f.HibernateEnabled = s.Hibernate.Enabled
	f.HibernateTime = s.Hibernate.At.String()
}

func triggerTime(s string) schedule.TimeOfDay {
	tod, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		return 0
	}
	return tod
}

// Timetable builds the schedule leniently. The error lists dropped rows and
// is informational; the timetable is always usable.
func (f File) Timetable() (*schedule.Timetable, error) {
	if len(f.Schedule) == 0 {
		return schedule.DefaultTimetable(), nil
	}
	return schedule.FromRecords(f.Schedule)
}

// SetTimetable replaces the stored schedule.
func (f *File) SetTimetable(tt *schedule.Timetable) {
	f.Schedule = tt.Records()
}

// Clock returns the persisted clock state.
func (f File) Clock() clock.State {
	return clock.State{TestMode: f.TestMode, Offset: time.Duration(f.TestOffset) * time.Second}
}

// SetClock stores clock state as whole seconds.
func (f *File) SetClock(s clock.State) {
	f.TestMode = s.TestMode
	f.TestOffset = int64(s.Offset / time.Second)
	if !s.TestMode {
		f.TestOffset = 0
	}
}

// Parse decodes a config document on top of the defaults.
func Parse(data []byte) (File, error) {
	f := Defaults()
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Defaults(), fmt.Errorf("failed to parse config: %w", err)
	}
	return f, nil
}

// Load reads path. A missing file yields defaults and no error; an unreadable
// or malformed file yields defaults and the error.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Marshal encodes f as YAML.
func Marshal(f File) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a temp file beside path and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close temp config: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Manager owns the config file for one process: it serializes updates and
// remembers what it wrote so the watcher can ignore its own saves.
type Manager struct {
	path string

	mu      sync.Mutex
	current File
	written []byte
}

// NewManager loads path. The returned error is informational (defaults are
// in use); the manager is always usable.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := Load(path)
	return &Manager{path: path, current: f}, err
}

// Path returns the config file path.
func (m *Manager) Path() string { return m.path }

// Dir returns the directory relative sound paths resolve against.
func (m *Manager) Dir() string {
	abs, err := filepath.Abs(m.path)
	if err != nil {
		return filepath.Dir(m.path)
	}
	return filepath.Dir(abs)
}

// Current returns a copy of the loaded configuration.
func (m *Manager) Current() File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update applies fn to the current configuration and saves it.
func (m *Manager) Update(fn func(*File)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.current
	fn(&next)
	data, err := Marshal(next)
	if err != nil {
		return err
	}
	if err := writeAtomic(m.path, data); err != nil {
		return err
	}
	m.current = next
	m.written = data
	return nil
}

// Reload re-reads the file. changed is false when the file is exactly what
// this manager last wrote.
func (m *Manager) Reload() (f File, changed bool, err error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return m.Current(), false, fmt.Errorf("failed to read config file: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written != nil && bytes.Equal(data, m.written) {
		return m.current, false, nil
	}
	f, err = Parse(data)
	if err != nil {
		return m.current, false, err
	}
	m.current = f
	m.written = nil
	return f, true, nil
}
