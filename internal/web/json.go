package web

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/logic"
	"github.com/sweeney/bell-scheduler/internal/schedule"
)

// TimetableJSON is the body of GET and PUT /api/timetable. Rows use the same
// shape as the config file's schedule.
type TimetableJSON struct {
	Schedule []schedule.Record `json:"schedule"`
}

// TestTimeRequest is the body of POST /api/test-time.
type TestTimeRequest struct {
	Time string `json:"time"`
}

// SettingsJSON is the body of GET and PUT /api/settings. Keys match the
// config file. Fields left out of a PUT keep their current value.
type SettingsJSON struct {
	SilentMode       bool   `json:"silent_mode"`
	SilenceEnabled   bool   `json:"minute_of_silence_enabled"`
	LessonStartSound string `json:"lesson_start_sound_path"`
	LessonEndSound   string `json:"lesson_end_sound_path"`
	SirenSound       string `json:"siren_sound_path"`
	SilenceSound     string `json:"minute_of_silence_sound_path"`
	ShutdownEnabled  bool   `json:"shutdown_enabled"`
	ShutdownTime     string `json:"shutdown_time"`
	HibernateEnabled bool   `json:"hibernation_enabled"`
	HibernateTime    string `json:"hibernation_time"`
}

// RecordingJSON is one entry of GET /api/recordings and the body of
// POST /api/recordings.
type RecordingJSON struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Created string `json:"created,omitempty"`
}

// RenameRequest is the body of PUT /api/recordings/{name}.
type RenameRequest struct {
	Name string `json:"name"`
}

// ErrorJSON is returned with every 4xx response.
type ErrorJSON struct {
	Error string `json:"error"`
}

func settingsJSON(s config.Settings) SettingsJSON {
	return SettingsJSON{
		SilentMode:       s.SilentMode,
		SilenceEnabled:   s.SilenceEnabled,
		LessonStartSound: s.Sounds.LessonStart,
		LessonEndSound:   s.Sounds.LessonEnd,
		SirenSound:       s.Sounds.Siren,
		SilenceSound:     s.Sounds.Silence,
		ShutdownEnabled:  s.Shutdown.Enabled,
		ShutdownTime:     s.Shutdown.At.String(),
		HibernateEnabled: s.Hibernate.Enabled,
		HibernateTime:    s.Hibernate.At.String(),
	}
}

// settings validates both trigger times. The sound base directory is left
// empty so the engine keeps its own.
func (j SettingsJSON) settings() (config.Settings, error) {
	shut, err := schedule.ParseTimeOfDay(j.ShutdownTime)
	if err != nil {
		return config.Settings{}, err
	}
	hib, err := schedule.ParseTimeOfDay(j.HibernateTime)
	if err != nil {
		return config.Settings{}, err
	}
	return config.Settings{
		SilentMode:     j.SilentMode,
		SilenceEnabled: j.SilenceEnabled,
		Sounds: audio.Sounds{
			LessonStart: j.LessonStartSound,
			LessonEnd:   j.LessonEndSound,
			Siren:       j.SirenSound,
			Silence:     j.SilenceSound,
		},
		Shutdown:  logic.TriggerConfig{Enabled: j.ShutdownEnabled, At: shut},
		Hibernate: logic.TriggerConfig{Enabled: j.HibernateEnabled, At: hib},
	}, nil
}

func recordingsJSON(recs map[string]audio.Recording) []RecordingJSON {
	out := make([]RecordingJSON, 0, len(recs))
	for name, rec := range recs {
		out = append(out, RecordingJSON{Name: name, Path: rec.Path, Created: rec.Created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorJSON{Error: err.Error()})
}
