package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"mashup/internal/encoding"
	"mashup/internal/logging"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/workflow"
)

type formValues struct {
	Singer   string
	Count    string
	Duration string
	Email    string
	Output   string
}

type formPage struct {
	Title   string
	Refresh int
	Error   string
	Form    formValues
}

type statusPage struct {
	Title       string
	Refresh     int
	Status      queue.Status
	PhaseLabel  string
	DownloadURL string
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "form", formPage{
		Title: "Mashup",
		Form:  formValues{Count: "11", Duration: "21", Output: "audio"},
	})
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "form", formPage{Title: "Mashup", Error: "Could not read the form."})
		return
	}
	values := formValues{
		Singer:   r.PostForm.Get("singer"),
		Count:    r.PostForm.Get("count"),
		Duration: r.PostForm.Get("duration"),
		Email:    r.PostForm.Get("email"),
		Output:   r.PostForm.Get("output"),
	}

	req, err := requestFromForm(values)
	if err == nil {
		var status queue.Status
		status, err = s.submitter.Submit(r.Context(), req)
		if err == nil {
			http.Redirect(w, r, "/jobs/"+status.JobID, http.StatusSeeOther)
			return
		}
	}

	code, message := publicMessage(err)
	if code == http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("job submission failed", logging.Error(err))
	}
	s.render(w, code, "form", formPage{Title: "Mashup", Error: message, Form: values})
}

func requestFromForm(values formValues) (workflow.Request, error) {
	count, err := strconv.Atoi(strings.TrimSpace(values.Count))
	if err != nil {
		return workflow.Request{}, services.Wrap(services.ErrValidation, "intake", "parse form", "Number of videos must be a whole number.", err)
	}
	duration, err := strconv.Atoi(strings.TrimSpace(values.Duration))
	if err != nil {
		return workflow.Request{}, services.Wrap(services.ErrValidation, "intake", "parse form", "Clip duration must be a whole number of seconds.", err)
	}
	kind, err := encoding.ParseKind(values.Output)
	if err != nil {
		return workflow.Request{}, err
	}
	return workflow.Request{
		Query:       values.Singer,
		Count:       count,
		ClipSeconds: duration,
		Destination: values.Email,
		OutputKind:  kind,
	}, nil
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("status lookup failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := statusPage{
		Title:      "Mashup status",
		Status:     status,
		PhaseLabel: phaseLabel(status.Phase),
	}
	if !status.Terminal {
		page.Refresh = refreshSeconds
	}
	if status.Phase == queue.PhaseDone {
		page.DownloadURL = fmt.Sprintf("/jobs/%s/artifact", status.JobID)
	}
	code := http.StatusOK
	if status.Phase == queue.PhaseNotFound {
		code = http.StatusNotFound
	}
	s.render(w, code, "status", page)
}

func phaseLabel(phase queue.Phase) string {
	switch phase {
	case queue.PhaseNotFound:
		return "Not found"
	case queue.PhaseDone:
		return "Ready"
	default:
		return strings.ReplaceAll(string(phase), "_", " ")
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template render failed", logging.String("template", name), logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
