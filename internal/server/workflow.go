package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/warranty-tracker/internal/identity"
	"github.com/zombor/warranty-tracker/internal/scanning"
	"github.com/zombor/warranty-tracker/internal/workflow"
)

// maxUploadSize handles high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// controller returns the workflow of the request's session
func (s *Server) controller(r *http.Request) *workflow.Controller {
	id, _ := identity.FromContext(r.Context())
	return s.workflows.Get(id.SessionID)
}

// workflowStatus maps a transition error to a status. Outcomes the user acts on
// from the page (rejected document, failed extraction or capture) are not faults.
func workflowStatus(err error) int {
	switch {
	case err == nil,
		errors.Is(err, workflow.ErrInvalidDocument),
		errors.Is(err, scanning.ErrExtractionFailed),
		errors.Is(err, workflow.ErrCaptureFailed):
		return http.StatusOK
	case errors.Is(err, workflow.ErrBusy),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrStale):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNoImage),
		errors.Is(err, workflow.ErrUnknownField):
		return http.StatusBadRequest
	}
	return statusFor(err)
}

// writeView renders the workflow. The view always carries a message for errors.
func writeView(w http.ResponseWriter, view workflow.View, err error) {
	status := workflowStatus(err)
	if err != nil && view.Message == "" {
		view.Message = workflow.UserMessage(err)
	}
	if status >= http.StatusInternalServerError {
		slog.Error("Workflow error", "state", view.State, "error", err)
	}
	writeJSON(w, status, view)
}

// handleWorkflowView returns the current workflow
func (s *Server) handleWorkflowView(w http.ResponseWriter, r *http.Request) {
	writeView(w, s.controller(r).View(), nil)
}

// handleWorkflowOpen starts adding a device
func (s *Server) handleWorkflowOpen(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Open()
	writeView(w, view, err)
}

// handleWorkflowImage accepts a bill from the file picker
func (s *Server) handleWorkflowImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	view, err := s.controller(r).Upload(header.Filename, data, uploadContentType(header.Header.Get("Content-Type"), header.Filename))
	writeView(w, view, err)
}

// uploadContentType falls back to the extension when the browser sends nothing useful
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleWorkflowCamera attaches the configured network camera
func (s *Server) handleWorkflowCamera(w http.ResponseWriter, r *http.Request) {
	if s.newCamera == nil {
		writeError(w, http.StatusNotFound, "No camera is configured. Please upload a file instead.")
		return
	}
	view, err := s.controller(r).Attach(s.newCamera())
	writeView(w, view, err)
}

// handleWorkflowCapture takes one still from the attached camera
func (s *Server) handleWorkflowCapture(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Capture(r.Context())
	writeView(w, view, err)
}

// handleWorkflowExtract runs extraction on the captured image
func (s *Server) handleWorkflowExtract(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Extract(r.Context())
	writeView(w, view, err)
}

// handleWorkflowManual opens an empty form
func (s *Server) handleWorkflowManual(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).EnterManually()
	writeView(w, view, err)
}

// handleWorkflowDiscard drops the image
func (s *Server) handleWorkflowDiscard(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Discard()
	writeView(w, view, err)
}

// handleWorkflowForm edits one field or replaces the service dates
func (s *Server) handleWorkflowForm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field            string    `json:"field"`
		Value            string    `json:"value"`
		FreeServiceDates *[]string `json:"free_service_dates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctrl := s.controller(r)
	if req.FreeServiceDates != nil {
		view, err := ctrl.SetServiceDates(*req.FreeServiceDates)
		writeView(w, view, err)
		return
	}
	view, err := ctrl.Edit(req.Field, req.Value)
	writeView(w, view, err)
}

// handleWorkflowRescan goes back to the captured image
func (s *Server) handleWorkflowRescan(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Rescan()
	writeView(w, view, err)
}

// handleWorkflowSave persists the form
func (s *Server) handleWorkflowSave(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller(r).Save(r.Context())
	writeView(w, view, err)
}

// handleWorkflowCancel abandons the workflow
func (s *Server) handleWorkflowCancel(w http.ResponseWriter, r *http.Request) {
	writeView(w, s.controller(r).Cancel(), nil)
}
