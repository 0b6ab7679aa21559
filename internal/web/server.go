// Package web provides the HTTP status page, JSON status, live display feed
// and control API for the bell-scheduler daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sweeney/bell-scheduler/internal/audio"
	"github.com/sweeney/bell-scheduler/internal/config"
	"github.com/sweeney/bell-scheduler/internal/schedule"
	"github.com/sweeney/bell-scheduler/internal/status"
)

// Controller is the part of the engine the control API drives.
type Controller interface {
	Timetable() *schedule.Timetable
	ApplyTimetable(records []schedule.Record) error
	EnableTestTime(hhmm string) error
	DisableTestTime()
	Settings() config.Settings
	ModifySettings(fn func(config.Settings) (config.Settings, error)) (config.Settings, error)
	Registry() *audio.Registry
	AddRecording(name, path string) error
	RenameRecording(oldName, newName string) error
	DeleteRecording(name string) error
}

// Server serves the status page and control API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
	hub        *Hub
}

// New creates a Server that reads state from the given tracker. A nil
// controller leaves the control API out; a nil metrics handler leaves out
// /metrics.
func New(addr string, tracker *status.Tracker, ctl Controller, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, ctl: ctl, hub: NewHub()}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeHTTP)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if ctl != nil {
		api := r.PathPrefix("/api").Subrouter()
		api.HandleFunc("/timetable", s.handleGetTimetable).Methods(http.MethodGet)
		api.HandleFunc("/timetable", s.handlePutTimetable).Methods(http.MethodPut)
		api.HandleFunc("/test-time", s.handleEnableTestTime).Methods(http.MethodPost)
		api.HandleFunc("/test-time", s.handleDisableTestTime).Methods(http.MethodDelete)
		api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
		api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)
		api.HandleFunc("/recordings", s.handleListRecordings).Methods(http.MethodGet)
		api.HandleFunc("/recordings", s.handleAddRecording).Methods(http.MethodPost)
		api.HandleFunc("/recordings/{name}", s.handleRenameRecording).Methods(http.MethodPut)
		api.HandleFunc("/recordings/{name}", s.handleDeleteRecording).Methods(http.MethodDelete)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Hub returns the live display feed. Register it as a render sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown closes websocket feeds and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
