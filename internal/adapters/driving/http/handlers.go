package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
	"github.com/custodia-labs/coursebridge/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ExportCourseRequest is the body of an export trigger
// @Description Course export trigger
type ExportCourseRequest struct {
	Targets []string `json:"targets,omitempty" example:"canvas"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the database and the export lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unavailable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{"database", s.db},
		{"lock", s.lock},
	}
	for _, c := range checks {
		if c.pinger == nil {
			continue
		}
		if err := c.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "dependency", c.name, "error", err)
			writeError(w, http.StatusServiceUnavailable, c.name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Export endpoints

// handleExportCourse godoc
// @Summary      Export a course
// @Description  Pushes a local course to the requested LMS backends (all when none are given).
// @Description  Per-LMS failures are reported in the outcomes, not as an error status.
// @Description  With async=true the export is queued and the job is returned instead.
// @Tags         Export
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true   "Course ID"
// @Param        async    query     bool                 false  "Queue the export for a worker"
// @Param        request  body      ExportCourseRequest  false  "Target LMS list"
// @Success      200      {object}  domain.ExportReport
// @Success      202      {object}  domain.ExportJob
// @Failure      400      {object}  ErrorResponse  "Invalid request or unsupported LMS"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      404      {object}  ErrorResponse  "Course not found"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Failure      501      {object}  ErrorResponse  "Async exports not enabled"
// @Router       /courses/{id}/export [post]
func (s *Server) handleExportCourse(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ExportCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var targets []domain.LMSType
	if len(req.Targets) > 0 {
		parsed, err := domain.ParseLMSTypes(req.Targets)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		targets = parsed
	}

	exportReq := driving.ExportRequest{
		UserID:   authCtx.UserID,
		CourseID: r.PathValue("id"),
		Targets:  targets,
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if s.exportJobs == nil {
			writeError(w, http.StatusNotImplemented, "async exports not enabled")
			return
		}
		job, err := s.exportJobs.Submit(r.Context(), exportReq)
		if err != nil {
			s.writeServiceError(w, err, "failed to queue export")
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	report, err := s.exportService.Export(r.Context(), exportReq)
	if err != nil {
		s.writeServiceError(w, err, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleGetExportJob godoc
// @Summary      Get export job
// @Description  Returns a queued export, with its report once completed
// @Tags         Export
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  domain.ExportJob
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Job not found"
// @Failure      501  {object}  ErrorResponse  "Async exports not enabled"
// @Router       /exports/{id} [get]
func (s *Server) handleGetExportJob(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.exportJobs == nil {
		writeError(w, http.StatusNotImplemented, "async exports not enabled")
		return
	}

	job, err := s.exportJobs.Get(r.Context(), authCtx.UserID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get export job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// LMS connection endpoints

// handleGetConnection godoc
// @Summary      Get LMS connection
// @Description  Returns the caller's stored connection for an LMS, without secrets
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "LMS type"  Enums(canvas, moodle)
// @Success      200   {object}  domain.ConnectionSummary
// @Failure      400   {object}  ErrorResponse  "Unsupported LMS"
// @Failure      404   {object}  ErrorResponse  "Not connected"
// @Router       /lms/{type}/connection [get]
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	authCtx, lms, ok := s.lmsRequest(w, r)
	if !ok {
		return
	}

	summary, err := s.connectionService.Get(r.Context(), authCtx.UserID, lms)
	if err != nil {
		s.writeServiceError(w, err, "failed to get connection")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleSaveConnection godoc
// @Summary      Save LMS connection
// @Description  Stores the caller's base URL and tokens for an LMS, replacing any existing connection
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        type     path      string                         true  "LMS type"  Enums(canvas, moodle)
// @Param        request  body      driving.SaveConnectionRequest  true  "Connection credentials"
// @Success      200      {object}  domain.ConnectionSummary
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Router       /lms/{type}/connection [put]
func (s *Server) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	authCtx, lms, ok := s.lmsRequest(w, r)
	if !ok {
		return
	}

	var req driving.SaveConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID
	req.LMS = lms

	summary, err := s.connectionService.Save(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to save connection")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleDeleteConnection godoc
// @Summary      Delete LMS connection
// @Tags         Connections
// @Security     BearerAuth
// @Param        type  path  string  true  "LMS type"  Enums(canvas, moodle)
// @Success      204
// @Failure      404  {object}  ErrorResponse  "Not connected"
// @Router       /lms/{type}/connection [delete]
func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	authCtx, lms, ok := s.lmsRequest(w, r)
	if !ok {
		return
	}

	if err := s.connectionService.Delete(r.Context(), authCtx.UserID, lms); err != nil {
		s.writeServiceError(w, err, "failed to delete connection")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestConnection godoc
// @Summary      Test LMS connection
// @Description  Calls the LMS with the caller's credentials and reports the authenticated account
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "LMS type"  Enums(canvas, moodle)
// @Success      200   {object}  domain.ConnectionInfo
// @Failure      409   {object}  ErrorResponse  "Not connected"
// @Failure      502   {object}  ErrorResponse  "LMS rejected the credentials or is unreachable"
// @Router       /lms/{type}/connection/test [post]
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	authCtx, lms, ok := s.lmsRequest(w, r)
	if !ok {
		return
	}

	info, err := s.exportService.TestConnection(r.Context(), authCtx.UserID, lms)
	if err != nil {
		s.writeLMSError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleListRemoteCourses godoc
// @Summary      List remote courses
// @Description  Lists the courses the caller teaches in an LMS
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "LMS type"  Enums(canvas, moodle)
// @Success      200   {array}   domain.RemoteCourse
// @Failure      409   {object}  ErrorResponse  "Not connected"
// @Failure      502   {object}  ErrorResponse  "LMS error"
// @Router       /lms/{type}/courses [get]
func (s *Server) handleListRemoteCourses(w http.ResponseWriter, r *http.Request) {
	authCtx, lms, ok := s.lmsRequest(w, r)
	if !ok {
		return
	}

	courses, err := s.exportService.ListRemoteCourses(r.Context(), authCtx.UserID, lms)
	if err != nil {
		s.writeLMSError(w, err)
		return
	}
	if courses == nil {
		courses = []*domain.RemoteCourse{}
	}

	writeJSON(w, http.StatusOK, courses)
}

// Helper functions

// lmsRequest extracts the caller and the {type} path value, writing an error response on failure
func (s *Server) lmsRequest(w http.ResponseWriter, r *http.Request) (*domain.AuthContext, domain.LMSType, bool) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, "", false
	}
	lms, err := domain.ParseLMSType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	return authCtx, lms, true
}

// writeServiceError maps domain errors to status codes; anything else is a 500
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedLMS):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// writeLMSError is writeServiceError for calls that reach an LMS: remote failures are a 502
func (s *Server) writeLMSError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedLMS),
		errors.Is(err, domain.ErrNotConnected):
		s.writeServiceError(w, err, "")
	default:
		s.logger.Warn("lms call failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
