package hostapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HyphaGroup/oubliette/internal/audit"
	"github.com/HyphaGroup/oubliette/internal/rtp"
)

func (s *Server) listProviders(w http.ResponseWriter, _ *http.Request) {
	data, err := s.providers.MarshalRedacted()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

type createProviderRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Endpoint    string                 `json:"endpoint"`
	Auth        rtp.AuthConfig         `json:"auth"`
	Health      *rtp.HealthCheckConfig `json:"health,omitempty"`
}

func (s *Server) createProvider(w http.ResponseWriter, r *http.Request) {
	var req createProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	health := rtp.DefaultHealthCheckConfig()
	if req.Health != nil {
		health = *req.Health
	}

	p, err := s.providers.Register(r.Context(), req.Name, req.Description, req.Endpoint, req.Auth, health)
	if err != nil {
		audit.Log(&audit.Event{Operation: audit.OpProviderRegister, Success: false, Error: err.Error(), Details: map[string]interface{}{"name": req.Name}})
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if health.Enabled {
		s.health.StartMonitoring(r.Context(), map[string]string{p.ID: p.Endpoint})
	}
	audit.Log(&audit.Event{Operation: audit.OpProviderRegister, Success: true, Details: map[string]interface{}{"provider_id": p.ID, "name": p.Name}})
	writeJSON(w, http.StatusCreated, p.Redacted())
}

func (s *Server) deleteProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.providers.Unregister(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rtp.ErrServerNotFound) {
			status = http.StatusNotFound
		}
		audit.Log(&audit.Event{Operation: audit.OpProviderRemove, Success: false, Error: err.Error(), Details: map[string]interface{}{"provider_id": id}})
		writeError(w, status, err)
		return
	}
	audit.Log(&audit.Event{Operation: audit.OpProviderRemove, Success: true, Details: map[string]interface{}{"provider_id": id}})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) providerHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h, ok := s.health.GetHealth(id)
	if !ok {
		writeError(w, http.StatusNotFound, rtp.ErrServerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
