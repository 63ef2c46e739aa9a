package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// APIClient provides a typed interface to the server's HTTP API
type APIClient struct {
	baseURL string
	http    *http.Client
}

// Response types (mirrors of the server's JSON views)

type TaskInfo struct {
	ID                    int64   `json:"id"`
	Kind                  string  `json:"kind"`
	Status                string  `json:"status"`
	Progress              float64 `json:"progress"`
	Phase                 string  `json:"phase"`
	Message               string  `json:"message"`
	FileName              string  `json:"fileName"`
	Parameters            string  `json:"parameters"`
	TotalRecords          int     `json:"totalRecords"`
	ProcessedRecords      int     `json:"processedRecords"`
	ErrorCount            int     `json:"errorCount"`
	ErrorMessage          string  `json:"errorMessage"`
	CancellationRequested bool    `json:"cancellationRequested"`
	CreatedAt             string  `json:"createdAt"`
	StartedAt             string  `json:"startedAt"`
	EndedAt               string  `json:"endedAt"`
}

// IsTerminal reports whether the task has reached a final state
func (t *TaskInfo) IsTerminal() bool {
	switch t.Status {
	case "COMPLETED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

type TaskStats struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

type UploadOutcome struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Messages     []string          `json:"messages"`
	Errors       []string          `json:"errors"`
	Warnings     []string          `json:"warnings"`
	RecordCount  int               `json:"recordCount"`
	ErrorCount   int               `json:"errorCount"`
	SkippedCount int               `json:"skippedCount"`
	ErrorFiles   map[string]string `json:"errorFiles"`
}

type ParameterSetInfo struct {
	ParameterSet           string  `json:"parameterSet"`
	LiquidationThreshold   float64 `json:"liquidationThreshold"`
	BestsellerMultiplier   float64 `json:"bestsellerMultiplier"`
	MinVolumeThreshold     float64 `json:"minVolumeThreshold"`
	ConsistencyThreshold   float64 `json:"consistencyThreshold"`
	AnalysisStartDate      string  `json:"analysisStartDate"`
	AnalysisEndDate        string  `json:"analysisEndDate"`
	CoreDurationMonths     int     `json:"coreDurationMonths"`
	BestsellerDurationDays int     `json:"bestsellerDurationDays"`
	AvailabilityPolicy     string  `json:"availabilityPolicy"`
	IsActive               bool    `json:"isActive"`
}

type HealthInfo struct {
	Status string `json:"status"`
}

// NewAPIClient creates a client for the server at baseURL
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Timeouts come from the per-call context; uploads and
		// downloads can legitimately run for minutes.
		http: &http.Client{},
	}
}

// Health checks server liveness
func (c *APIClient) Health(ctx context.Context) (*HealthInfo, error) {
	var out HealthInfo
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns the most recent tasks
func (c *APIClient) ListTasks(ctx context.Context, limit int) ([]TaskInfo, error) {
	var out []TaskInfo
	if err := c.get(ctx, fmt.Sprintf("/api/tasks?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTasksByStatus returns recent tasks in the given state
func (c *APIClient) ListTasksByStatus(ctx context.Context, status string, limit int) ([]TaskInfo, error) {
	var out []TaskInfo
	path := fmt.Sprintf("/api/tasks/status/%s?limit=%d", strings.ToUpper(status), limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTask returns one task by ID
func (c *APIClient) GetTask(ctx context.Context, id int64) (*TaskInfo, error) {
	var out TaskInfo
	if err := c.get(ctx, fmt.Sprintf("/api/tasks/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelTask requests cooperative cancellation of a task
func (c *APIClient) CancelTask(ctx context.Context, id int64) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.post(ctx, fmt.Sprintf("/api/tasks/%d/cancel", id), nil, "", &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// TaskStats returns lifetime task counts by status
func (c *APIClient) TaskStats(ctx context.Context) (*TaskStats, error) {
	var out TaskStats
	if err := c.get(ctx, "/api/tasks/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile runs a synchronous upload and returns the ingestion
// outcome, which the server reports for failed validation too.
func (c *APIClient) UploadFile(ctx context.Context, entity, path string) (*UploadOutcome, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/file/upload/"+entity, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	// 400 carries the same outcome body with the row errors inline
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest {
		var out UploadOutcome
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
		return &out, nil
	}
	return nil, decodeError(resp)
}

// UploadFileAsync schedules an upload and returns the accepted task.
// A full queue returns the rejected task alongside the error.
func (c *APIClient) UploadFileAsync(ctx context.Context, entity, path string) (*TaskInfo, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/file/upload/"+entity+"/async", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusTooManyRequests:
		var out TaskInfo
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode task response: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &out, fmt.Errorf("server rejected the upload: %s", out.Message)
		}
		return &out, nil
	default:
		return nil, decodeError(resp)
	}
}

// DownloadFile streams a synchronous export into outPath (derived from
// the server's suggestion when empty) and returns the path and size.
func (c *APIClient) DownloadFile(ctx context.Context, entity string, runID int64, outPath string) (string, int64, error) {
	path := "/api/file/download/" + entity
	if runID > 0 {
		path += fmt.Sprintf("?runId=%d", runID)
	}
	return c.downloadTo(ctx, path, outPath, entity+".tsv")
}

// DownloadTaskResult fetches the result file of a completed task
func (c *APIClient) DownloadTaskResult(ctx context.Context, id int64, outPath string) (string, int64, error) {
	path := fmt.Sprintf("/api/tasks/%d/result", id)
	return c.downloadTo(ctx, path, outPath, fmt.Sprintf("task_%d_result.tsv", id))
}

func (c *APIClient) downloadTo(ctx context.Context, path, outPath, fallback string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, decodeError(resp)
	}

	name := outPath
	if name == "" {
		name = suggestedFileName(resp.Header.Get("Content-Disposition"), fallback)
	}
	f, err := os.Create(name)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, n, nil
}

// RunNoos schedules a classification run. paramsJSON overrides the
// active parameter set when non-nil.
func (c *APIClient) RunNoos(ctx context.Context, paramsJSON []byte) (*TaskInfo, error) {
	var body io.Reader
	contentType := ""
	if len(paramsJSON) > 0 {
		body = bytes.NewReader(paramsJSON)
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/run/noos/async", body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusTooManyRequests:
		var out TaskInfo
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode task response: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &out, fmt.Errorf("server rejected the run: %s", out.Message)
		}
		return &out, nil
	default:
		return nil, decodeError(resp)
	}
}

// ListParams returns every stored parameter set
func (c *APIClient) ListParams(ctx context.Context) ([]ParameterSetInfo, error) {
	var out []ParameterSetInfo
	if err := c.get(ctx, "/api/algo/params", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetParams returns one parameter set by name
func (c *APIClient) GetParams(ctx context.Context, name string) (*ParameterSetInfo, error) {
	var out ParameterSetInfo
	if err := c.get(ctx, "/api/algo/params/"+name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivateParams makes the named parameter set the active one and
// returns the server's confirmation message.
func (c *APIClient) ActivateParams(ctx context.Context, name string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/api/algo/params/"+name+"/activate", nil, "", &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *APIClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *APIClient) post(ctx context.Context, path string, body io.Reader, contentType string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, contentType, out)
}

func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError extracts the server's error envelope, falling back to the
// bare status line.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// multipartBody builds the multipart form carrying one file part
func multipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// suggestedFileName pulls the filename out of a Content-Disposition
// header, with a fallback for servers that omit it.
func suggestedFileName(disposition, fallback string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if fn := params["filename"]; fn != "" {
				return filepath.Base(fn)
			}
		}
	}
	return fallback
}
