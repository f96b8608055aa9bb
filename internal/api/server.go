package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jesses-code-adventures/progress/internal/config"
	"github.com/jesses-code-adventures/progress/internal/erp"
	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/service"
)

// History is the read side of the submission journal.
type History interface {
	ListSubmissions(ctx context.Context, projectCode string, limit int) ([]*models.SubmissionSummary, error)
}

// Server exposes the controller over HTTP.
type Server struct {
	router     *http.ServeMux
	controller *service.Controller
	history    History
	config     *config.Config
	log        zerolog.Logger
}

// ErrorResponse is the JSON body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type projectResponse struct {
	Project *models.Project   `json:"project"`
	Stats   service.JoinStats `json:"stats"`
}

type progressRequest struct {
	Value json.RawMessage `json:"value"`
}

type submissionPreview struct {
	Plan  service.SubmissionPlan  `json:"plan"`
	State service.SubmissionState `json:"state"`
}

type submitRequest struct {
	ConfirmCount int `json:"confirm_count"`
}

// NewServer builds the router. history may be nil when no journal is configured.
func NewServer(controller *service.Controller, history History, cfg *config.Config) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		controller: controller,
		history:    history,
		config:     cfg,
		log:        logger.WithComponent("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealthz)

	secured := http.NewServeMux()
	secured.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	secured.HandleFunc("GET /api/v1/projects/{code}", s.handleSelectProject)
	secured.HandleFunc("PUT /api/v1/projects/{code}/phases/{phase}/progress", s.handleEditProgress)
	secured.HandleFunc("DELETE /api/v1/projects/{code}/phases/{phase}/progress", s.handleClearProgress)
	secured.HandleFunc("GET /api/v1/projects/{code}/submission", s.handlePreviewSubmission)
	secured.HandleFunc("POST /api/v1/projects/{code}/submission", s.handleSubmit)
	secured.HandleFunc("GET /api/v1/submissions", s.handleHistory)

	s.router.Handle("/api/", s.authMiddleware(secured))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logMiddleware(s.router).ServeHTTP(w, r)
}

// ListenAndServe serves on the configured port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.HTTPPort,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.controller.ListProjectsForSidebar(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		projects = service.FilterSidebar(projects, q)
	}
	if projects == nil {
		projects = []models.SidebarProject{}
	}

	if grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped")); grouped {
		writeJSON(w, http.StatusOK, service.GroupSidebarByLeader(projects))
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleSelectProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.controller.SelectProject(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: project, Stats: s.controller.LastJoinStats()})
}

func (s *Server) handleEditProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	phase, err := s.controller.EditPhaseProgress(r.PathValue("code"), r.PathValue("phase"), rawValue(req.Value))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

// rawValue accepts both "40" and 40 as the edited value.
func rawValue(v json.RawMessage) string {
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		return str
	}
	return strings.TrimSpace(string(v))
}

func (s *Server) handleClearProgress(w http.ResponseWriter, r *http.Request) {
	phase, err := s.controller.ClearPhaseProgress(r.PathValue("code"), r.PathValue("phase"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, phase)
}

func (s *Server) handlePreviewSubmission(w http.ResponseWriter, r *http.Request) {
	plan, err := s.controller.PreviewSubmission(r.PathValue("code"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if plan.Lines == nil {
		plan.Lines = []service.PlannedLine{}
	}
	writeJSON(w, http.StatusOK, submissionPreview{Plan: plan, State: s.controller.SubmissionState()})
}

// handleSubmit runs a submission. The caller confirms by echoing the number
// of lines it expects to send; any other count declines.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	confirm := service.ConfirmFunc(func(_ context.Context, cr service.ConfirmRequest) (bool, error) {
		return cr.LineCount == req.ConfirmCount, nil
	})

	summary, err := s.controller.SubmitProgress(r.Context(), r.PathValue("code"), confirm)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if summary.Outcome == models.OutcomeDeclined {
		status = http.StatusConflict
	}
	writeJSON(w, status, summary)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, "Submission journal is not configured", http.StatusNotImplemented)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := s.history.ListSubmissions(r.Context(), r.URL.Query().Get("project"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.SubmissionSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var feedErr *erp.FeedFetchError
	switch {
	case service.IsNotFound(err):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrProjectNotSelected), errors.Is(err, service.ErrSubmissionInProgress):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &feedErr), erp.IsAPIError(err):
		writeJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, service.ErrProjectCodeRequired):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Msg("Request failed")
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Code: statusCode})
}
