// Package hostapi realizes SPEC_FULL.md §6's host command surface: a thin
// JSON-over-HTTP dispatcher in front of the RTP provider registry, the
// Extension Plane, and the Task Manager, plus the ambient /metrics and
// /healthz observability endpoints. It does not reimplement any of those
// packages' semantics — every handler is a direct call into the
// corresponding manager.
package hostapi

import (
	"encoding/json"
	"net/http"

	"github.com/HyphaGroup/oubliette/internal/metrics"
	"github.com/HyphaGroup/oubliette/internal/rtp"
	"github.com/HyphaGroup/oubliette/internal/skills"
	"github.com/HyphaGroup/oubliette/internal/tasks"
)

// Server wires the host command surface's dependencies and exposes an
// http.Handler mux: one ServeMux with method-routed handlers for the
// RTP, skills and tasks domains, wrapped in the metrics middleware.
type Server struct {
	providers *rtp.ProviderRegistry
	health    *rtp.HealthMonitor
	skills    *skills.Registry
	executor  *skills.Executor
	tasks     *tasks.Manager
	mux       *http.ServeMux
}

// NewServer builds the host command surface mux.
func NewServer(providers *rtp.ProviderRegistry, health *rtp.HealthMonitor, skillRegistry *skills.Registry, executor *skills.Executor, taskManager *tasks.Manager) *Server {
	s := &Server{
		providers: providers,
		health:    health,
		skills:    skillRegistry,
		executor:  executor,
		tasks:     taskManager,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	s.mux.HandleFunc("GET /api/providers", s.listProviders)
	s.mux.HandleFunc("POST /api/providers", s.createProvider)
	s.mux.HandleFunc("DELETE /api/providers/{id}", s.deleteProvider)
	s.mux.HandleFunc("GET /api/providers/{id}/health", s.providerHealth)

	s.mux.HandleFunc("GET /api/skills", s.listSkills)
	s.mux.HandleFunc("POST /api/skills", s.createSkill)
	s.mux.HandleFunc("DELETE /api/skills/{id}", s.deleteSkill)
	s.mux.HandleFunc("POST /api/skills/{id}/execute", s.executeSkill)
	s.mux.HandleFunc("POST /api/skills/import", s.importLegacySkills)

	s.mux.HandleFunc("GET /api/tasks", s.listTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.getTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/cancel", s.cancelTask)
	s.mux.HandleFunc("DELETE /api/tasks", s.clearTasks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.Middleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
