package hostapi

import (
	"net/http"

	"github.com/HyphaGroup/oubliette/internal/audit"
	"github.com/HyphaGroup/oubliette/internal/tasks"
)

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("filter") {
	case "active":
		writeJSON(w, http.StatusOK, s.tasks.ListActive())
	case "background":
		writeJSON(w, http.StatusOK, s.tasks.ListBackground())
	case "completed":
		writeJSON(w, http.StatusOK, s.tasks.ListCompleted())
	default:
		writeJSON(w, http.StatusOK, s.tasks.List())
	}
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := s.tasks.GetInfo(id)
	if !ok {
		writeError(w, http.StatusNotFound, tasks.ErrTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.tasks.Cancel(id); err != nil {
		status := http.StatusInternalServerError
		switch err {
		case tasks.ErrTaskNotFound:
			status = http.StatusNotFound
		case tasks.ErrTaskNotCancellable:
			status = http.StatusConflict
		}
		audit.Log(&audit.Event{Operation: audit.OpTaskCancel, Success: false, Error: err.Error(), Details: map[string]interface{}{"task_id": id}})
		writeError(w, status, err)
		return
	}
	audit.Log(&audit.Event{Operation: audit.OpTaskCancel, Success: true, Details: map[string]interface{}{"task_id": id}})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearTasks(w http.ResponseWriter, _ *http.Request) {
	s.tasks.ClearCompleted()
	w.WriteHeader(http.StatusNoContent)
}
