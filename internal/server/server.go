// Package server exposes the dashboard API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/trustlens/trustlens/internal/history"
	"github.com/trustlens/trustlens/internal/model"
	"github.com/trustlens/trustlens/internal/monitoring"
	"github.com/trustlens/trustlens/internal/scheduler"
	"github.com/trustlens/trustlens/internal/state"
)

// Server wires the dashboard API onto the core components.
type Server struct {
	store     *state.Store
	sched     *scheduler.Scheduler
	hist      *history.Aggregator
	collector *monitoring.Collector

	// baseCtx outlives individual requests; timers started via the API are
	// bound to it, not to the request that changed the mode.
	baseCtx        context.Context
	allowedOrigins []string
}

// New creates a dashboard API server.
func New(baseCtx context.Context, store *state.Store, sched *scheduler.Scheduler, hist *history.Aggregator, collector *monitoring.Collector, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{
		store:          store,
		sched:          sched,
		hist:           hist,
		collector:      collector,
		baseCtx:        baseCtx,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/decision", s.handleGetDecision)
		r.Put("/decision", s.handlePutDecision)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/scheduler", s.handleGetScheduler)
		r.Put("/scheduler", s.handlePutScheduler)
		r.Get("/history/drift", s.handleDrift)
		r.Get("/history/audits", s.handleAudits)
		r.Get("/history/last", s.handleLast)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// decisionUpdate carries a partial decision edit. Absent fields are left
// untouched; an invalid field rejects the whole request without applying
// any of it.
type decisionUpdate struct {
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output"`
	Confidence *float64        `json:"confidence"`
}

func (s *Server) handlePutDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate everything before mutating anything.
	probe := state.NewStore(s.store.Snapshot())
	if err := applyUpdate(probe, req); err != nil {
		var invalid *state.InvalidInputError
		if errors.As(err, &invalid) {
			zap.L().Warn("rejected decision edit",
				zap.String("field", invalid.Field),
				zap.Error(invalid.Err),
			)
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := applyUpdate(s.store, req); err != nil {
		// Validation already passed on the probe copy; this is unreachable
		// short of a concurrent-edit race, and the store still guarantees
		// no partial update per field.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func applyUpdate(store *state.Store, req decisionUpdate) error {
	if req.Input != nil {
		if err := store.SetInputJSON(req.Input); err != nil {
			return err
		}
	}
	if req.Output != nil {
		if err := store.SetOutputJSON(req.Output); err != nil {
			return err
		}
	}
	if req.Confidence != nil {
		if err := store.SetConfidence(*req.Confidence); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	record := s.sched.AnalyzeNow(r.Context())
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetScheduler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) handlePutScheduler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode         *string `json:"mode"`
		IntervalSecs *int    `json:"intervalSecs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Mode != nil {
		mode, err := model.ParseMode(*req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown mode")
			return
		}
		s.sched.SetMode(s.baseCtx, mode)
	}
	if req.IntervalSecs != nil {
		if *req.IntervalSecs <= 0 {
			writeError(w, http.StatusBadRequest, "intervalSecs must be positive")
			return
		}
		s.sched.SetInterval(s.baseCtx, time.Duration(*req.IntervalSecs)*time.Second)
	}

	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hist.Drift())
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hist.Audits())
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	last := s.hist.Last()
	if last == nil {
		writeError(w, http.StatusNotFound, "no analysis yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Collect())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
