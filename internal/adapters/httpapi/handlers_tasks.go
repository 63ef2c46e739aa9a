package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/assortlab/noos-go/internal/domain/task"
)

func parseLimit(r *http.Request, def, cap int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > cap {
		return cap
	}
	return n
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)
	tasks, err := s.deps.Tasks.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTaskViews(tasks))
}

func (s *Server) handleTasksByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := task.ParseStatus(mux.Vars(r)["status"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := parseLimit(r, 50, 100)
	tasks, err := s.deps.Tasks.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTaskViews(tasks))
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Tasks.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskStatsView{
		Total:     counts.Total,
		Running:   counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Cancelled: counts.Cancelled,
	})
}

func (s *Server) handleTaskStatsByKind(w http.ResponseWriter, r *http.Request) {
	kind, err := task.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid days %q", raw))
			return
		}
		days = n
	}

	stats, err := s.deps.Tasks.StatsByKindSince(r.Context(), kind, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, kindStatsView{
		Kind:      string(kind),
		Days:      days,
		Total:     stats.Total,
		Completed: stats.Completed,
		Failed:    stats.Failed,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	t, err := s.deps.Tasks.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(t))
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	t, err := s.deps.Tasks.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	if t.IsTerminal() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("task %d is already %s", id, t.Status()))
		return
	}

	ok, err := s.deps.Tasks.RequestCancellation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		// Terminal state raced in between the read and the toggle.
		writeError(w, http.StatusBadRequest, fmt.Sprintf("task %d is already terminal", id))
		return
	}
	writeJSON(w, http.StatusAccepted, messageBody{Message: fmt.Sprintf("cancellation requested for task %d", id)})
}

func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	t, err := s.deps.Tasks.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
		return
	}
	if t.Status() != task.StatusCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("task %d is %s; result available only for COMPLETED tasks", id, t.Status()))
		return
	}
	if t.ResultPath() == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d produced no result file", id))
		return
	}
	s.streamFile(w, t.ResultPath())
}
