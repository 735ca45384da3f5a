package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"autominer/internal/config"
	"autominer/internal/logbus"
	"autominer/internal/model"
	"autominer/internal/ws"
)

// Controller is the slice of the scheduler the API drives.
type Controller interface {
	State() model.SchedulerState
	Stop()
	RequestSnapshot() bool
}

type AttemptLister interface {
	ListAttempts(ctx context.Context, limit int) ([]model.Attempt, error)
}

type Options struct {
	Cfg       config.Config
	Bus       *logbus.Bus
	Scheduler Controller
	Attempts  AttemptLister
	// Challenge reports the gate's counters; optional.
	Challenge func() model.ChallengeCounters
}

type Server struct {
	cfg       config.Config
	bus       *logbus.Bus
	scheduler Controller
	attempts  AttemptLister
	challenge func() model.ChallengeCounters
	ws        *ws.Handler
}

func New(opts Options) *Server {
	return &Server{
		cfg:       opts.Cfg,
		bus:       opts.Bus,
		scheduler: opts.Scheduler,
		attempts:  opts.Attempts,
		challenge: opts.Challenge,
		ws:        ws.NewHandler(opts.Bus, opts.Cfg.Server.Cors.AllowOrigins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/state", s.handleState)
	api.HandleFunc("/api/v1/attempts", s.handleAttempts)
	api.HandleFunc("/api/v1/stop", s.handleStop)
	api.HandleFunc("/api/v1/snapshot", s.handleSnapshot)

	mux.Handle("/api/", corsMiddleware(s.cfg.Server.Cors, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type stateView struct {
	model.SchedulerState
	Challenge *model.ChallengeCounters `json:"challenge,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := stateView{SchedulerState: s.scheduler.State()}
	if s.challenge != nil {
		c := s.challenge()
		out.Challenge = &c
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.attempts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"data": []model.Attempt{}})
		return
	}
	limit, err := parseInt(r.URL.Query().Get("limit"), 50)
	if err != nil || limit <= 0 || limit > 1000 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be 1..1000"})
		return
	}
	list, err := s.attempts.ListAttempts(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if list == nil {
		list = []model.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.bus.Info("stop requested over http", map[string]any{"remote": r.RemoteAddr})
	s.scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.scheduler.RequestSnapshot() {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "snapshot already pending"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(v string, def int) (int, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}
