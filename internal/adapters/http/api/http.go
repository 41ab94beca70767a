// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/dpsbar/internal/app"
)

// Dependencies required by HTTP handlers. The service satisfies the read
// and toggle side; the combat flag is a separate setter so the HTTP layer
// never ticks the debouncer itself.
type Dependencies interface {
	DisplayText() string
	Snapshot() service.Stats
	ToggleMetric(ctx context.Context)
}

// CombatSetter stores the sampled in-combat flag.
type CombatSetter interface {
	Set(inCombat bool)
	InCombat() bool
}

// Server wires HTTP routes for the host API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	controlHandler *ControlHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, combat CombatSetter) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		controlHandler: NewControlHandler(deps, combat),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/display", MetricsMiddleware(s.statsHandler.HandleDisplay, "display"))
	mux.HandleFunc("/combat", MetricsMiddleware(s.controlHandler.HandleCombat, "combat"))
	mux.HandleFunc("/toggle", MetricsMiddleware(s.controlHandler.HandleToggle, "toggle"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
