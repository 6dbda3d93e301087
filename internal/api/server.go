// Package api provides the HTTP orchestration surface for catalogd.
// Reconciliation is triggered over localhost HTTP; the same process owns
// the run lock, so remote triggers and scheduled runs cannot race.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magneticstudio/catalogd/internal/app/audit"
	"github.com/magneticstudio/catalogd/internal/app/reconciler"
	"github.com/magneticstudio/catalogd/internal/domain"
)

// Server is the catalogd HTTP API server.
type Server struct {
	reconciler     *reconciler.Reconciler
	auditor        *audit.Auditor
	runlog         domain.RunLog // nil when persistence is disabled
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(rec *reconciler.Reconciler, auditor *audit.Auditor) *Server {
	return &Server{reconciler: rec, auditor: auditor}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetRunLog sets the run-history store backing GET /api/runs.
func (s *Server) SetRunLog(rl domain.RunLog) { s.runlog = rl }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/plan", s.handlePlan)
		r.Post("/run", s.handleRun)
		r.Get("/audit", s.handleAudit)
		r.Get("/runs", s.handleRuns)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Handlers ───────────────────────────────────────────────────────────────

// handlePlan computes a fresh plan without executing anything.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	res, err := s.reconciler.Plan(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, planResponse{
		OK:      true,
		RunID:   res.RunID,
		Summary: res.Summary,
		Items:   res.Items,
	})
}

// handleRun triggers a reconciliation run.
// Query params: dry=true for a dry run, names=a,b,c to filter products.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	opts := reconciler.Options{
		DryRun: r.URL.Query().Get("dry") == "true",
	}
	if names := r.URL.Query().Get("names"); names != "" {
		for _, n := range strings.Split(names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				opts.Names = append(opts.Names, n)
			}
		}
	}

	res, err := s.reconciler.Run(r.Context(), opts)
	if errors.Is(err, domain.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		OK:       true,
		RunID:    res.RunID,
		DryRun:   res.DryRun,
		Summary:  res.Summary,
		Items:    res.Items,
		Results:  res.Results,
		Executed: res.Executed,
	})
}

// handleAudit returns the read-only drift report.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.auditor.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{
		OK:     true,
		Clean:  report.Clean(),
		Report: report,
	})
}

// handleRuns returns recent run history from the operational store.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runlog == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}
	runs, err := s.runlog.RecentRuns(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"runs": runs,
	})
}

// ─── Response Types ─────────────────────────────────────────────────────────

type planResponse struct {
	OK      bool              `json:"ok"`
	RunID   string            `json:"run_id"`
	Summary domain.Summary    `json:"summary"`
	Items   []domain.PlanItem `json:"items"`
}

type runResponse struct {
	OK       bool                `json:"ok"`
	RunID    string              `json:"run_id"`
	DryRun   bool                `json:"dry_run"`
	Summary  domain.Summary      `json:"summary"`
	Items    []domain.PlanItem   `json:"items"`
	Results  []domain.ItemResult `json:"results,omitempty"`
	Executed bool                `json:"executed"`
}

type auditResponse struct {
	OK     bool               `json:"ok"`
	Clean  bool               `json:"clean"`
	Report domain.DriftReport `json:"report"`
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
		"ok": false,
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
