// Package web provides the HTTP control surface for the
// genset-controller daemon: the control panel page, the JSON status
// endpoint, the log view and the command API.
//
// Handlers never touch the controller directly. Start/stop commands
// are posted through the Commands sink and executed by the control
// loop on its next tick, preserving the single-writer rule for relay
// state. Config changes go through the store, which is the single
// writer of the settings cache.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/genset-controller/internal/config"
	"github.com/sweeney/genset-controller/internal/logbuf"
	"github.com/sweeney/genset-controller/internal/status"
	"github.com/sweeney/genset-controller/internal/update"
)

// Commands enqueues operator commands for the control loop.
type Commands interface {
	RequestStart()
	RequestStop()
}

// Settings is the subset of the config store the handlers use.
type Settings interface {
	SetPowerUpDuration(time.Duration) error
	SetPowerDownDuration(time.Duration) error
	SetRetryLimit(int) error
	SetAllowStart(bool) error
	Snapshot() config.Persisted
}

// Server serves the control panel over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   Commands
	settings   Settings
	logs       *logbuf.Buffer
	gate       *update.Gate
}

// New creates a Server wired to the given collaborators. logs and gate
// may be nil, disabling the log view and the update endpoints.
func New(addr string, tracker *status.Tracker, commands Commands, settings Settings, logs *logbuf.Buffer, gate *update.Gate) *Server {
	s := &Server{
		tracker:  tracker,
		commands: commands,
		settings: settings,
		logs:     logs,
		gate:     gate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/log", s.handleLog)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/update/begin", s.handleUpdateBegin)
	mux.HandleFunc("/api/update/end", s.handleUpdateEnd)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	var entries []logbuf.Entry
	if s.logs != nil {
		entries = s.logs.Entries()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, entries)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.logs == nil {
		return
	}
	for _, e := range s.logs.Entries() {
		fmt.Fprintf(w, "%s %s\n", e.Time.UTC().Format(time.RFC3339), e.Message)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.commands.RequestStart()
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "start requested")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.commands.RequestStop()
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "stop requested")
}

// handleConfig applies form fields to the config store. Only present
// fields are set; the first failure stops processing and reports the
// error (400 for rejected values, 500 for persistence failures).
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	apply := func(field string, set func(string) error) bool {
		v := r.PostFormValue(field)
		if v == "" {
			return true
		}
		if err := set(v); err != nil {
			writeConfigError(w, field, err)
			return false
		}
		return true
	}

	ok := apply("power_up_ms", func(v string) error {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", config.ErrInvalidInput, v)
		}
		return s.settings.SetPowerUpDuration(time.Duration(ms) * time.Millisecond)
	})
	ok = ok && apply("power_down_ms", func(v string) error {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", config.ErrInvalidInput, v)
		}
		return s.settings.SetPowerDownDuration(time.Duration(ms) * time.Millisecond)
	})
	ok = ok && apply("retry_limit", func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", config.ErrInvalidInput, v)
		}
		return s.settings.SetRetryLimit(n)
	})
	ok = ok && apply("allow_start", func(v string) error {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", config.ErrInvalidInput, v)
		}
		return s.settings.SetAllowStart(allow)
	})

	if !ok {
		return
	}
	fmt.Fprintln(w, "config updated")
}

func (s *Server) handleUpdateBegin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.gate == nil {
		http.Error(w, "updates disabled", http.StatusNotFound)
		return
	}
	if !s.gate.Begin() {
		http.Error(w, "update already in progress", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "update started, control loop paused")
}

func (s *Server) handleUpdateEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.gate == nil {
		http.Error(w, "updates disabled", http.StatusNotFound)
		return
	}
	s.gate.End()
	fmt.Fprintln(w, "update finished, control loop resumed")
}

func writeConfigError(w http.ResponseWriter, field string, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, config.ErrInvalidInput) {
		code = http.StatusBadRequest
	}
	http.Error(w, fmt.Sprintf("%s: %v", field, err), code)
}
