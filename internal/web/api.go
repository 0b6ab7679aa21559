package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/config"
)

// maxBody caps control request bodies.
const maxBody = 1 << 20

var errBadBody = errors.New("malformed request body")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// statusFor maps control errors to HTTP status codes. Anything not listed is
// a validation failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrRecordingNotFound):
		return http.StatusNotFound
	case errors.Is(err, audio.ErrRecordingExists):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func (s *Server) handleGetTimetable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TimetableJSON{Schedule: s.ctl.Timetable().Records()})
}

func (s *Server) handlePutTimetable(w http.ResponseWriter, r *http.Request) {
	var req TimetableJSON
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.ApplyTimetable(req.Schedule); err != nil {
		log.Printf("web: timetable rejected: %v", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, TimetableJSON{Schedule: s.ctl.Timetable().Records()})
}

func (s *Server) handleEnableTestTime(w http.ResponseWriter, r *http.Request) {
	var req TestTimeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.EnableTestTime(req.Time); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisableTestTime(w http.ResponseWriter, r *http.Request) {
	s.ctl.DisableTestTime()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsJSON(s.ctl.Settings()))
}

// handlePutSettings merges the body onto the current settings inside one
// engine update.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	next, err := s.ctl.ModifySettings(func(cur config.Settings) (config.Settings, error) {
		req := settingsJSON(cur)
		if err := json.Unmarshal(body, &req); err != nil {
			return cur, fmt.Errorf("%w: %v", errBadBody, err)
		}
		return req.settings()
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, settingsJSON(next))
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recordingsJSON(s.ctl.Registry().All()))
}

func (s *Server) handleAddRecording(w http.ResponseWriter, r *http.Request) {
	var req RecordingJSON
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.AddRecording(req.Name, req.Path); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, recordingsJSON(s.ctl.Registry().All()))
}

func (s *Server) handleRenameRecording(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req RenameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctl.RenameRecording(name, req.Name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, recordingsJSON(s.ctl.Registry().All()))
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.DeleteRecording(mux.Vars(r)["name"]); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
