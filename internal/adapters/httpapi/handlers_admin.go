package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/noos"
)

func (s *Server) handleListParams(w http.ResponseWriter, r *http.Request) {
	sets, err := s.deps.Params.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toParametersPayloads(sets))
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	set, err := s.deps.Params.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if set == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parameter set %s not found", name))
		return
	}
	writeJSON(w, http.StatusOK, toParametersPayload(set))
}

func (s *Server) handleCreateParams(w http.ResponseWriter, r *http.Request) {
	var payload parametersPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.ParameterSet == "" {
		writeError(w, http.StatusBadRequest, "parameterSet name is required")
		return
	}

	set, err := payload.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	set.Normalize()
	if err := set.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.deps.Params.FindByName(r.Context(), set.ParameterSet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("parameter set %s already exists", set.ParameterSet))
		return
	}

	if err := s.deps.Params.Create(r.Context(), set); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordAdminAudit(r, "algorithm_parameters", set.ID, audit.ActionInsert,
		fmt.Sprintf("Parameter set created: %s", set.ParameterSet))
	writeJSON(w, http.StatusCreated, toParametersPayload(set))
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	existing, err := s.deps.Params.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parameter set %s not found", name))
		return
	}

	var payload parametersPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	set, err := payload.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Identity and activation are immutable here; activation has its
	// own endpoint.
	set.ID = existing.ID
	set.ParameterSet = existing.ParameterSet
	set.IsActive = existing.IsActive
	set.CreatedAt = existing.CreatedAt

	set.Normalize()
	if err := set.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Params.Update(r.Context(), set); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordAdminAudit(r, "algorithm_parameters", set.ID, audit.ActionUpdate,
		fmt.Sprintf("Parameter set updated: %s", set.ParameterSet))
	writeJSON(w, http.StatusOK, toParametersPayload(set))
}

func (s *Server) handleDeleteParams(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == noos.DefaultParameterSet {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parameter set %q cannot be deleted", name))
		return
	}
	existing, err := s.deps.Params.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parameter set %s not found", name))
		return
	}

	if err := s.deps.Params.Delete(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordAdminAudit(r, "algorithm_parameters", existing.ID, audit.ActionDelete,
		fmt.Sprintf("Parameter set deleted: %s", name))
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("parameter set %s deleted", name)})
}

func (s *Server) handleActivateParams(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	existing, err := s.deps.Params.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parameter set %s not found", name))
		return
	}

	if err := s.deps.Params.ActivateExclusive(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordAdminAudit(r, "algorithm_parameters", existing.ID, audit.ActionActivate,
		fmt.Sprintf("Parameter set activated: %s", name))
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("parameter set %s is now active", name)})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Purger.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordAdminAudit(r, "system", 0, audit.ActionClearAll, "All data cleared")
	writeJSON(w, http.StatusOK, messageBody{Message: "all data cleared"})
}

// recordAdminAudit appends one audit row for an admin mutation. The
// mutation is already committed, so failures only log.
func (s *Server) recordAdminAudit(r *http.Request, entityType string, entityID int64, action, details string) {
	entry := &audit.Entry{
		Timestamp:  s.deps.Clock.Now(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Details:    details,
		ModifiedBy: "api",
	}
	if err := s.deps.Audits.Record(r.Context(), entry); err != nil {
		slog.Warn("failed to record audit entry", "action", action, "error", err)
	}
}
