// Package api provides the HTTP server for ember. It is the read
// surface for external analytics and UI consumers of the persisted
// records (decision log, abort episodes, checkpoints, thermal trace),
// plus a decide endpoint for the external broker.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberline/ember/internal/app/decision"
	"github.com/emberline/ember/internal/app/requeue"
	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/health"
	"github.com/emberline/ember/internal/infra/sqlite"
	"github.com/emberline/ember/internal/infra/supervisor"
	"github.com/emberline/ember/internal/infra/thermal"
)

// Server is the ember HTTP API server.
type Server struct {
	db             *sqlite.DB
	coordinator    *decision.Coordinator
	supervisor     *supervisor.Supervisor
	predictor      *thermal.Predictor
	deviceID       string
	health         *health.Checker
	requeue        *requeue.Queue
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(db *sqlite.DB, coord *decision.Coordinator, sup *supervisor.Supervisor,
	pred *thermal.Predictor, deviceID string) *Server {
	return &Server{db: db, coordinator: coord, supervisor: sup, predictor: pred, deviceID: deviceID}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the health checker backing /health.
func (s *Server) SetHealth(h *health.Checker) { s.health = h }

// SetRequeue exposes deferral-requeue stats on /api/status.
func (s *Server) SetRequeue(q *requeue.Queue) { s.requeue = q }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/decisions", s.handleDecisions)
		r.Get("/episodes", s.handleEpisodes)
		r.Get("/monitors", s.handleMonitors)
		r.Get("/monitors/{taskID}", s.handleMonitorStats)
		r.Get("/tasks/{taskID}/trace", s.handleTrace)
		r.Post("/decide", s.handleDecide)
		r.Post("/forecast", s.handleForecast)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	if !s.health.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, s.health.Statuses())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.db.CountPending("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := map[string]any{
		"status":    "ember is running",
		"device_id": s.deviceID,
		"pending":   pending,
		"monitored": s.supervisor.Monitored(),
	}
	if s.requeue != nil {
		payload["requeue"] = s.requeue.Snapshot()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.db.ListDecisions(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := s.db.ListEpisodes(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Monitored())
}

func (s *Server) handleMonitorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.supervisor.Stats(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	temps, err := s.db.TraceTemps(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, temps)
}

// decideRequest is the broker's decision request.
type decideRequest struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := s.db.GetTask(req.TaskID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	dec, err := s.coordinator.Decide(*task, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

type forecastRequest struct {
	TaskID string `json:"task_id"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := s.db.GetTask(req.TaskID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	profile, err := s.db.GetProfile(s.deviceID)
	if err != nil {
		profile = domain.GenericProfile()
	}
	writeJSON(w, http.StatusOK, s.predictor.Forecast(*task, profile))
}

// queryLimit parses a ?limit= query parameter with a default.
func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
