package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/task"
)

// handleRunNoos schedules a classification run. An empty body runs with
// the active parameter set (or built-in defaults); a JSON body overrides
// per field.
func (s *Server) handleRunNoos(w http.ResponseWriter, r *http.Request) {
	params, err := s.resolveRunParameters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params.Normalize()
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	work := func(ctx context.Context, rep *scheduler.Reporter) error {
		_, err := s.deps.Engine.Run(ctx, rep, params)
		return err
	}
	t, err := s.deps.Scheduler.Schedule(r.Context(), task.KindAlgorithmRun, "", params.Encode(), work)
	s.respondScheduled(w, t, err)
}

func (s *Server) resolveRunParameters(r *http.Request) (*noos.Parameters, error) {
	var payload parametersPayload
	err := json.NewDecoder(r.Body).Decode(&payload)
	if errors.Is(err, io.EOF) {
		active, err := s.deps.Params.FindActive(r.Context())
		if err != nil {
			return nil, err
		}
		if active == nil {
			return noos.DefaultParameters(), nil
		}
		return active, nil
	}
	if err != nil {
		return nil, err
	}
	return payload.toDomain()
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var results []*noos.Result
	if runID > 0 {
		results, err = s.deps.Results.FindByRun(r.Context(), runID)
	} else {
		results, err = s.deps.Results.FindAll(r.Context(), parseLimit(r, 1000, 10000))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResultViews(results))
}

func (s *Server) handleResultsByType(w http.ResponseWriter, r *http.Request) {
	t := noos.Type(mux.Vars(r)["type"])
	results, err := s.deps.Results.FindByType(r.Context(), t, parseLimit(r, 1000, 10000))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toResultViews(results))
}

func (s *Server) handleResultSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Results.Summarize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSummaryView(summary))
}
