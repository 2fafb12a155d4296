package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/aria/internal/analysis"
	"github.com/onnwee/aria/internal/jobs"
	"github.com/onnwee/aria/internal/llmconfig"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/prioritization"
	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/session"
	"github.com/onnwee/aria/internal/validate"
)

// AnalyzeRequest is the body for POST /prioritization/analyze. Both fields
// are optional.
type AnalyzeRequest struct {
	SessionID string               `json:"sessionId,omitempty"`
	Weights   *ranking.WeightInput `json:"weights,omitempty"`
}

// SummaryRequest is the body for POST /prioritization/chatgpt.
type SummaryRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

// SummaryResponse is returned by POST /prioritization/chatgpt.
type SummaryResponse struct {
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary"`
	HTML      string `json:"html,omitempty"`
	Model     string `json:"model,omitempty"`
}

// PrioritizationHandlers serves ranking and LLM summary endpoints.
type PrioritizationHandlers struct {
	svc      *prioritization.Service
	store    session.Store
	analyzer *analysis.Analyzer
	jobs     *jobs.Metrics
}

// NewPrioritizationHandlers creates prioritization handlers. jobMetrics may
// be nil.
func NewPrioritizationHandlers(svc *prioritization.Service, store session.Store, analyzer *analysis.Analyzer, jobMetrics *jobs.Metrics) *PrioritizationHandlers {
	return &PrioritizationHandlers{svc: svc, store: store, analyzer: analyzer, jobs: jobMetrics}
}

// Analyze handles POST /prioritization/analyze.
func (h *PrioritizationHandlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	resp, err := h.svc.Analyze(r.Context(), middleware.GetUserID(r.Context()), req.SessionID, req.Weights)
	if err != nil {
		var verr *requirement.ValidationError
		switch {
		case errors.As(err, &verr):
			respondError(w, r, http.StatusBadRequest, ErrCodeInvalidWeights, verr.Error())
		case errors.Is(err, prioritization.ErrNoRequirements):
			respondError(w, r, http.StatusBadRequest, ErrCodeNoRequirements, "No requirements found for session")
		default:
			writeSessionError(w, r, err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /prioritization/{sessionId}, returning the stored run.
func (h *PrioritizationHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	sess, err := h.store.Get(ctx, userID, r.PathValue("sessionId"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	resp, err := h.svc.Stored(ctx, userID, sess.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Summary handles POST /prioritization/chatgpt: an LLM narrative over the
// session's requirements.
func (h *PrioritizationHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SummaryRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	prompt, err := validate.Prompt(req.Prompt)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "prompt: "+err.Error())
		return
	}

	sess, err := resolveSession(ctx, h.store, userID, req.SessionID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	reqs, err := h.store.Requirements(ctx, userID, sess.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	start := time.Now()
	res, err := h.analyzer.Analyze(ctx, reqs, prompt)
	if err != nil {
		switch {
		case errors.Is(err, llmconfig.ErrNotConfigured):
			respondError(w, r, http.StatusBadRequest, ErrCodeLLMConfigNotSet, "LLM configuration not set. Ask an administrator to configure it")
		case errors.Is(err, analysis.ErrAnalysisFailed):
			h.jobs.Record(jobs.JobTypeLLMAnalysis, time.Since(start).Seconds(), err, "provider_error")
			respondError(w, r, http.StatusBadGateway, ErrCodeAnalysisFailed, "Failed to generate analysis")
		default:
			slog.ErrorContext(ctx, "failed to analyze session", "session_id", sess.ID, "error", err)
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to generate analysis")
		}
		return
	}
	if len(reqs) > 0 {
		h.jobs.Record(jobs.JobTypeLLMAnalysis, time.Since(start).Seconds(), nil, "")
	}

	writeJSON(w, r, http.StatusOK, SummaryResponse{
		SessionID: sess.ID,
		Summary:   res.Summary,
		HTML:      res.HTML,
		Model:     res.Model,
	})
}
