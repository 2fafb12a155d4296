package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/aria/internal/archive"
	"github.com/onnwee/aria/internal/ingest"
	"github.com/onnwee/aria/internal/jobs"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/session"
	"github.com/onnwee/aria/internal/validate"
)

// multipartOverhead is allowed on top of the file limit for form fields
// and part headers.
const multipartOverhead = 64 << 10

// CreateRequirementsRequest is the body for POST /requirements.
type CreateRequirementsRequest struct {
	Requirements []requirement.Requirement `json:"requirements"`
	SessionName  string                    `json:"sessionName,omitempty"`
}

// CreateRequirementsResponse is returned by the upload and create endpoints.
type CreateRequirementsResponse struct {
	SessionID         string                    `json:"sessionId"`
	SessionName       string                    `json:"sessionName"`
	RequirementsCount int                       `json:"requirementsCount"`
	Message           string                    `json:"message"`
	Requirements      []requirement.Requirement `json:"requirements,omitempty"`
}

// RequirementsResponse is returned by GET /requirements.
type RequirementsResponse struct {
	SessionID    string                    `json:"sessionId"`
	SessionName  string                    `json:"sessionName"`
	Requirements []requirement.Requirement `json:"requirements"`
}

// RequirementHandlers serves requirement ingestion and retrieval.
type RequirementHandlers struct {
	store          session.Store
	archive        archiveWriter
	maxUploadBytes int64
}

// NewRequirementHandlers creates requirement handlers. maxUploadBytes of
// zero or less uses validate.MaxUploadBytes; a nil archiver disables
// archiving of uploaded files.
func NewRequirementHandlers(store session.Store, archiver archive.Archiver, jobMetrics *jobs.Metrics, maxUploadBytes int64) *RequirementHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = validate.MaxUploadBytes
	}
	return &RequirementHandlers{
		store:          store,
		archive:        archiveWriter{archiver: archiver, metrics: jobMetrics},
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload handles POST /requirements/upload: a multipart form with a .csv or
// .xlsx "file" part and an optional "sessionName" field.
func (h *RequirementHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, h.tooLargeMessage())
			return
		}
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		slog.ErrorContext(ctx, "failed to read upload", "error", err)
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Failed to read uploaded file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if _, err := validate.SpreadsheetFile(header.Filename, contentType, int64(len(data)), h.maxUploadBytes); err != nil {
		switch {
		case errors.Is(err, validate.ErrFileTooLarge):
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, h.tooLargeMessage())
		case errors.Is(err, validate.ErrFileTooSmall):
			respondError(w, r, http.StatusBadRequest, ErrCodeNoRequirements, "Uploaded file is empty")
		default:
			respondError(w, r, http.StatusBadRequest, ErrCodeUnsupportedFormat, "Unsupported file format. Please upload a .csv or .xlsx file")
		}
		return
	}

	name, err := validate.SessionName(r.FormValue("sessionName"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "sessionName: "+err.Error())
		return
	}

	reqs, err := ingest.ParseFile(header.Filename, data)
	if err != nil {
		writeIngestError(w, r, err)
		return
	}

	sess, err := h.store.Create(ctx, userID, name, reqs)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to store requirements")
		return
	}

	h.archive.put(ctx, jobs.JobTypeUploadArchive, archive.UploadKey(userID, sess.ID, header.Filename), contentType, data)

	slog.InfoContext(ctx, "requirements uploaded",
		"session_id", sess.ID,
		"file", header.Filename,
		"requirements", len(reqs))

	writeJSON(w, r, http.StatusCreated, CreateRequirementsResponse{
		SessionID:         sess.ID,
		SessionName:       sess.Name,
		RequirementsCount: len(reqs),
		Message:           fmt.Sprintf("Successfully uploaded %d requirements", len(reqs)),
		Requirements:      reqs,
	})
}

// Create handles POST /requirements with a JSON batch.
func (h *RequirementHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequirementsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	switch {
	case len(req.Requirements) == 0:
		respondError(w, r, http.StatusBadRequest, ErrCodeNoRequirements, "At least one requirement is required")
		return
	case len(req.Requirements) > ingest.MaxRequirements:
		respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeTooManyRequirements,
			fmt.Sprintf("Too many requirements, maximum is %d", ingest.MaxRequirements))
		return
	}
	if err := requirement.ValidateBatch(req.Requirements, ingest.MaxRequirements); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	name, err := validate.SessionName(req.SessionName)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "sessionName: "+err.Error())
		return
	}

	sess, err := h.store.Create(ctx, middleware.GetUserID(ctx), name, req.Requirements)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to store requirements")
		return
	}

	writeJSON(w, r, http.StatusCreated, CreateRequirementsResponse{
		SessionID:         sess.ID,
		SessionName:       sess.Name,
		RequirementsCount: len(req.Requirements),
		Message:           fmt.Sprintf("Successfully created session with %d requirements", len(req.Requirements)),
	})
}

// List handles GET /requirements. The sessionId query parameter selects a
// session; without it the latest session is used.
func (h *RequirementHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	sess, err := resolveSession(ctx, h.store, userID, r.URL.Query().Get("sessionId"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	reqs, err := h.store.Requirements(ctx, userID, sess.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []requirement.Requirement{}
	}

	writeJSON(w, r, http.StatusOK, RequirementsResponse{
		SessionID:    sess.ID,
		SessionName:  sess.Name,
		Requirements: reqs,
	})
}

func (h *RequirementHandlers) tooLargeMessage() string {
	return fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUploadBytes>>20)
}

// writeIngestError maps parser failures to error responses.
func writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing  *ingest.MissingColumnsError
		parseErr *ingest.ParseError
	)
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		respondError(w, r, http.StatusBadRequest, ErrCodeUnsupportedFormat, "Unsupported file format. Please upload a .csv or .xlsx file")
	case errors.Is(err, ingest.ErrTooManyRequirements):
		respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeTooManyRequirements,
			fmt.Sprintf("Too many requirements, maximum is %d", ingest.MaxRequirements))
	case errors.Is(err, ingest.ErrEmptyFile):
		respondError(w, r, http.StatusBadRequest, ErrCodeNoRequirements, "File contains no requirements")
	case errors.As(err, &missing):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Missing required columns: "+strings.Join(missing.Columns, ", "))
	case errors.As(err, &parseErr):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, strings.Join(parseErr.Messages(), "; "))
	default:
		slog.WarnContext(r.Context(), "failed to parse upload", "error", err)
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Failed to parse file")
	}
}
