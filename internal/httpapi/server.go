package httpapi

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mashup/internal/logging"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/workflow"
)

const refreshSeconds = 5

//go:embed templates/*.html
var templateFS embed.FS

// Submitter accepts new jobs.
type Submitter interface {
	Submit(ctx context.Context, req workflow.Request) (queue.Status, error)
}

// JobReader reads job records.
type JobReader interface {
	Get(ctx context.Context, id string) (*queue.Job, error)
	Status(ctx context.Context, id string) (queue.Status, error)
}

// Server routes the HTML and JSON endpoints.
type Server struct {
	submitter Submitter
	jobs      JobReader
	logger    *slog.Logger
	pages     *template.Template
	router    *mux.Router
}

// New builds a Server and its routes.
func New(submitter Submitter, jobs JobReader, logger *slog.Logger) (*Server, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		submitter: submitter,
		jobs:      jobs,
		logger:    logging.NewComponentLogger(logger, "http"),
		pages:     pages,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withRequestID)

	r.HandleFunc("/", s.handleForm).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleFormSubmit).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}", s.handleStatusPage).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/artifact", s.handleArtifact).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleAPISubmit).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", s.handleAPIStatus).Methods(http.MethodGet)
	return r
}

// withRequestID stamps each request with a correlation id and logs it.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// publicMessage maps err to the text a client may see.
func publicMessage(err error) (int, string) {
	details := services.Details(err)
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, details.Message
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, details.Message
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
