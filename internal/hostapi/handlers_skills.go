package hostapi

import (
	"encoding/json"
	"net/http"

	"github.com/HyphaGroup/oubliette/internal/audit"
	"github.com/HyphaGroup/oubliette/internal/skills"
)

func (s *Server) listSkills(w http.ResponseWriter, r *http.Request) {
	if project := r.URL.Query().Get("projectPath"); project != "" {
		writeJSON(w, http.StatusOK, s.skills.ListForProject(project))
		return
	}
	writeJSON(w, http.StatusOK, s.skills.ListAll())
}

func (s *Server) createSkill(w http.ResponseWriter, r *http.Request) {
	var skill skills.Skill
	if err := json.NewDecoder(r.Body).Decode(&skill); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.skills.Register(&skill); err != nil {
		audit.Log(&audit.Event{Operation: audit.OpSkillCreate, Success: false, Error: err.Error(), Details: map[string]interface{}{"skill_id": skill.ID}})
		writeError(w, http.StatusBadRequest, err)
		return
	}
	audit.Log(&audit.Event{Operation: audit.OpSkillCreate, Success: true, Details: map[string]interface{}{"skill_id": skill.ID}})
	writeJSON(w, http.StatusCreated, skill)
}

func (s *Server) deleteSkill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.skills.Unregister(id); err != nil {
		audit.Log(&audit.Event{Operation: audit.OpSkillDelete, Success: false, Error: err.Error(), Details: map[string]interface{}{"skill_id": id}})
		writeError(w, http.StatusNotFound, err)
		return
	}
	audit.Log(&audit.Event{Operation: audit.OpSkillDelete, Success: true, Details: map[string]interface{}{"skill_id": id}})
	w.WriteHeader(http.StatusNoContent)
}

type executeSkillRequest struct {
	ProjectPath string                 `json:"projectPath"`
	Arguments   map[string]interface{} `json:"arguments"`
	Variables   map[string]interface{} `json:"variables"`
}

func (s *Server) executeSkill(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req executeSkillRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result := s.executor.Execute(r.Context(), id, skills.Context{
		ProjectPath: req.ProjectPath,
		Arguments:   req.Arguments,
		Variables:   req.Variables,
	})
	audit.Log(&audit.Event{
		Operation: audit.OpSkillExecute,
		Success:   result.Success,
		Error:     result.Error,
		Details:   map[string]interface{}{"skill_id": id},
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) importLegacySkills(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	loader := skills.NewLoader("")
	imported, err := loader.ImportLegacySettings(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, skill := range imported {
		if err := s.skills.Register(skill); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, imported)
}
