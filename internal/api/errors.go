// Package api implements the ARIA HTTP handlers and their shared JSON
// response helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/aria/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeMethodNotAllowed indicates the route exists for other methods.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodeSessionNotFound indicates the session is missing or owned by another user.
	ErrCodeSessionNotFound = "session_not_found"

	// ErrCodeNoResults indicates the session has not been prioritized yet.
	ErrCodeNoResults = "no_results"

	// ErrCodeNoRequirements indicates the session holds no requirements to analyze.
	ErrCodeNoRequirements = "no_requirements"

	// ErrCodeTooManyRequirements indicates an upload or batch above the limit.
	ErrCodeTooManyRequirements = "too_many_requirements"

	// ErrCodeUnsupportedFormat indicates an upload that is not .csv or .xlsx.
	ErrCodeUnsupportedFormat = "unsupported_format"

	// ErrCodeFileTooLarge indicates an upload above the size limit.
	ErrCodeFileTooLarge = "file_too_large"

	// ErrCodeInvalidWeights indicates weights out of range or not summing to 1.
	ErrCodeInvalidWeights = "invalid_weights"

	// ErrCodeLLMConfigNotSet indicates no LLM provider key is configured.
	ErrCodeLLMConfigNotSet = "llm_config_not_set"

	// ErrCodeConfigNotFound indicates no stored LLM configuration exists.
	ErrCodeConfigNotFound = "config_not_found"

	// ErrCodeAnalysisFailed indicates the LLM provider call failed.
	ErrCodeAnalysisFailed = "analysis_failed"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the error envelope
// {"error": {"code": "...", "message": "..."}} with the given status.
// The context is copied into the logging middleware's writer so the
// request log carries the error code and user.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// respondError records code on the request context for the logging
// middleware and writes the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, status, code, message)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// maxJSONBodyBytes bounds JSON request bodies.
const maxJSONBodyBytes = 1 << 20

// decodeJSON decodes the request body into dst and writes a 400 on failure.
// With optional set, an empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
		return false
	}
	respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
	return false
}

// MessageResponse is returned by endpoints with no other payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeNoRequirements,
		ErrCodeUnsupportedFormat, ErrCodeInvalidWeights, ErrCodeLLMConfigNotSet:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeSessionNotFound, ErrCodeNoResults, ErrCodeConfigNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooManyRequirements, ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeAnalysisFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
