package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"mashup/internal/encoding"
	"mashup/internal/logging"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/workflow"
)

type submitRequest struct {
	Query       string `json:"query"`
	Count       int    `json:"count"`
	ClipSeconds int    `json:"clip_seconds"`
	Email       string `json:"email"`
	OutputKind  string `json:"output_kind"`
}

type submitResponse struct {
	JobID     string      `json:"job_id"`
	Status    queue.Phase `json:"status"`
	StatusURL string      `json:"status_url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := encoding.ParseKind(body.OutputKind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, services.Details(err).Message)
		return
	}

	status, err := s.submitter.Submit(r.Context(), workflow.Request{
		Query:       body.Query,
		Count:       body.Count,
		ClipSeconds: body.ClipSeconds,
		Destination: body.Email,
		OutputKind:  kind,
	})
	if err != nil {
		code, message := publicMessage(err)
		if code == http.StatusInternalServerError {
			logging.WithContext(r.Context(), s.logger).Error("job submission failed", logging.Error(err))
		}
		s.writeError(w, code, message)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+status.JobID)
	s.writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:     status.JobID,
		Status:    status.Phase,
		StatusURL: "/jobs/" + status.JobID,
	})
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.jobs.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("status lookup failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	code := http.StatusOK
	if status.Phase == queue.PhaseNotFound {
		code = http.StatusNotFound
	}
	s.writeJSON(w, code, status)
}

// handleArtifact streams the finished artifact. Only done jobs with a stored
// artifact are served.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("artifact lookup failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if job == nil || job.Phase != queue.PhaseDone || job.ArtifactPath == "" {
		http.NotFound(w, r)
		return
	}

	file, err := os.Open(job.ArtifactPath)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "artifact missing on disk", "artifact_missing",
			logging.String("job_id", job.ID),
			logging.String("path", job.ArtifactPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "download unavailable"),
			logging.String(logging.FieldErrorHint, "check results_dir retention"),
		)
		http.NotFound(w, r)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	name := filepath.Base(job.ArtifactPath)
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

