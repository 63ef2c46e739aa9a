package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/assortlab/noos-go/internal/application/download"
	"github.com/assortlab/noos-go/internal/application/ingestion"
	"github.com/assortlab/noos-go/internal/application/noosengine"
	"github.com/assortlab/noos-go/internal/application/scheduler"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/internal/domain/noos"
	"github.com/assortlab/noos-go/internal/domain/shared"
	"github.com/assortlab/noos-go/internal/domain/task"
	"github.com/assortlab/noos-go/internal/infrastructure/config"
)

// DataPurger wipes every data table. Satisfied by persistence.Maintenance.
type DataPurger interface {
	ClearAll(ctx context.Context) error
}

// Deps collects everything the HTTP handlers call into
type Deps struct {
	Tasks     task.Repository
	Scheduler *scheduler.Scheduler
	Pipelines *ingestion.Pipelines
	Engine    *noosengine.Engine
	Builder   *download.Builder
	Results   noos.ResultRepository
	Params    noos.ParameterRepository
	Audits    audit.Repository
	Purger    DataPurger
	Clock     shared.Clock
}

// Server is the HTTP API front of the service
type Server struct {
	deps      Deps
	maxUpload int64
	http      *http.Server
}

func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{deps: deps, maxUpload: cfg.MaxUploadBytes}
	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	files := api.PathPrefix("/file").Subrouter()
	files.HandleFunc("/upload/{entity:styles|stores|skus|sales}", s.handleUploadSync).Methods("POST")
	files.HandleFunc("/upload/{entity:styles|stores|skus|sales}/async", s.handleUploadAsync).Methods("POST")
	files.HandleFunc("/download/{entity:styles|stores|skus|sales|noos}/async", s.handleDownloadAsync).Methods("POST")
	files.HandleFunc("/download/{entity:styles|stores|skus|sales|noos}", s.handleDownloadSync).Methods("GET")

	tasks := api.PathPrefix("/tasks").Subrouter()
	tasks.HandleFunc("", s.handleListTasks).Methods("GET")
	tasks.HandleFunc("/stats", s.handleTaskStats).Methods("GET")
	tasks.HandleFunc("/stats/{kind}", s.handleTaskStatsByKind).Methods("GET")
	tasks.HandleFunc("/status/{status}", s.handleTasksByStatus).Methods("GET")
	tasks.HandleFunc("/{id:[0-9]+}", s.handleGetTask).Methods("GET")
	tasks.HandleFunc("/{id:[0-9]+}/cancel", s.handleCancelTask).Methods("POST")
	tasks.HandleFunc("/{id:[0-9]+}/result", s.handleTaskResult).Methods("GET")

	api.HandleFunc("/run/noos/async", s.handleRunNoos).Methods("POST")

	results := api.PathPrefix("/results/noos").Subrouter()
	results.HandleFunc("", s.handleListResults).Methods("GET")
	results.HandleFunc("/summary", s.handleResultSummary).Methods("GET")
	results.HandleFunc("/{type:core|bestseller|fashion}", s.handleResultsByType).Methods("GET")

	params := api.PathPrefix("/algo/params").Subrouter()
	params.HandleFunc("", s.handleListParams).Methods("GET")
	params.HandleFunc("", s.handleCreateParams).Methods("POST")
	params.HandleFunc("/{name}", s.handleGetParams).Methods("GET")
	params.HandleFunc("/{name}", s.handleUpdateParams).Methods("PUT")
	params.HandleFunc("/{name}", s.handleDeleteParams).Methods("DELETE")
	params.HandleFunc("/{name}/activate", s.handleActivateParams).Methods("POST")

	api.HandleFunc("/data/clear-all", s.handleClearAll).Methods("DELETE")

	return r
}

// Handler returns the configured route tree so the server can be
// mounted inside another mux or an httptest server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving requests until Shutdown or a listener error
func (s *Server) Start() error {
	slog.Info("http server listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
