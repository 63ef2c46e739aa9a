package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/task"
)

var uploadKinds = map[string]task.Kind{
	"styles": task.KindStylesUpload,
	"stores": task.KindStoresUpload,
	"skus":   task.KindSkusUpload,
	"sales":  task.KindSalesUpload,
}

var downloadKinds = map[string]task.Kind{
	"styles": task.KindStylesDownload,
	"stores": task.KindStoresDownload,
	"skus":   task.KindSkusDownload,
	"sales":  task.KindSalesDownload,
	"noos":   task.KindNoosDownload,
}

// readUpload extracts the multipart "file" part, bounded by the
// configured size limit.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return "", nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing multipart field 'file': %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return "", nil, fmt.Errorf("upload exceeds the %d byte limit", s.maxUpload)
	}
	return header.Filename, data, nil
}

// pipelineWork binds an upload body to its pipeline and captures the
// result for synchronous callers.
func (s *Server) pipelineWork(entity string, data []byte, out **ingestion.UploadResult) scheduler.Work {
	return func(ctx context.Context, rep *scheduler.Reporter) error {
		var res *ingestion.UploadResult
		var err error
		switch entity {
		case "styles":
			res, err = s.deps.Pipelines.Styles.Run(ctx, rep, data)
		case "stores":
			res, err = s.deps.Pipelines.Stores.Run(ctx, rep, data)
		case "skus":
			res, err = s.deps.Pipelines.Skus.Run(ctx, rep, data)
		case "sales":
			res, err = s.deps.Pipelines.Sales.Run(ctx, rep, data)
		default:
			return fmt.Errorf("unknown upload entity %q", entity)
		}
		if out != nil {
			*out = res
		}
		return err
	}
}

func (s *Server) handleUploadSync(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["entity"]
	kind := uploadKinds[entity]

	fileName, data, err := s.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *ingestion.UploadResult
	t, err := s.deps.Scheduler.RunInline(r.Context(), kind, fileName, "", s.pipelineWork(entity, data, &result))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result == nil {
		switch t.Status() {
		case task.StatusCancelled:
			writeError(w, http.StatusConflict, t.Message())
		default:
			writeError(w, http.StatusInternalServerError, t.ErrorMessage())
		}
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUploadAsync(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["entity"]
	kind := uploadKinds[entity]

	fileName, data, err := s.readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Spool the body to disk so a queued upload costs a file handle,
	// not hundreds of megabytes of heap.
	staged, err := s.deps.Pipelines.Stage(entity, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t, err := s.deps.Scheduler.Schedule(r.Context(), kind, fileName, "", s.stagedWork(entity, staged))
	if err != nil {
		// Rejected work never runs, so nothing else cleans this up.
		os.Remove(staged)
	}
	s.respondScheduled(w, t, err)
}

// stagedWork replays a spooled payload through its pipeline and removes
// the file afterwards, success or not.
func (s *Server) stagedWork(entity, path string) scheduler.Work {
	return func(ctx context.Context, rep *scheduler.Reporter) error {
		defer os.Remove(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read staged upload: %w", err)
		}
		return s.pipelineWork(entity, data, nil)(ctx, rep)
	}
}

func (s *Server) handleDownloadAsync(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["entity"]
	kind := downloadKinds[entity]

	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.deps.Scheduler.Schedule(r.Context(), kind, "", downloadParams(entity, runID), s.deps.Builder.Work(kind, runID))
	s.respondScheduled(w, t, err)
}

func (s *Server) handleDownloadSync(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["entity"]
	kind := downloadKinds[entity]

	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if entity == "noos" {
		// Resolve up front so an empty store is a clean 404 instead of
		// a FAILED task.
		latest, err := s.deps.Results.LatestRunID(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if latest == 0 {
			writeError(w, http.StatusNotFound, "no classification results available")
			return
		}
	}

	t, err := s.deps.Scheduler.RunInline(r.Context(), kind, "", downloadParams(entity, runID), s.deps.Builder.Work(kind, runID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t.Status() != task.StatusCompleted || t.ResultPath() == "" {
		writeError(w, http.StatusInternalServerError, t.ErrorMessage())
		return
	}
	s.streamFile(w, t.ResultPath())
}

// respondScheduled maps a Schedule outcome: accepted tasks return 202,
// a full queue returns the FAILED task with 429.
func (s *Server) respondScheduled(w http.ResponseWriter, t *task.Task, err error) {
	if err != nil {
		if errors.Is(err, task.ErrQueueFull) && t != nil {
			writeJSON(w, http.StatusTooManyRequests, toTaskView(t))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, toTaskView(t))
}

func (s *Server) streamFile(w http.ResponseWriter, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("result file not found: %s", filepath.Base(path)))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("failed to stream result file", "path", path, "error", err)
	}
}

func parseRunID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("runId")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid runId %q", raw)
	}
	return id, nil
}

func downloadParams(entity string, runID int64) string {
	if entity == "noos" && runID > 0 {
		return fmt.Sprintf("runId=%d", runID)
	}
	return ""
}
