package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/aria/internal/audit"
	"github.com/onnwee/aria/internal/llmconfig"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/validate"
)

const (
	maxModelNameLength = 100

	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// LLMConfigRequest is the body for PUT /admin/llm-config. Empty baseUrl and
// model fall back to the provider defaults.
type LLMConfigRequest struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
	Model   string `json:"model,omitempty"`
}

// LLMConfigResponse never includes the API key itself.
type LLMConfigResponse struct {
	BaseURL   string    `json:"baseUrl"`
	Model     string    `json:"model"`
	HasAPIKey bool      `json:"hasApiKey"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newLLMConfigResponse(cfg *llmconfig.Config) LLMConfigResponse {
	out := cfg.WithDefaults()
	return LLMConfigResponse{
		BaseURL:   out.BaseURL,
		Model:     out.Model,
		HasAPIKey: out.HasAPIKey(),
		UpdatedAt: out.UpdatedAt,
	}
}

// AuditLogsResponse is the JSON body for GET /admin/audit-logs.
type AuditLogsResponse struct {
	Logs []*audit.Log `json:"logs"`
}

// AuditVerifyResponse reports the result of a full hash chain check.
type AuditVerifyResponse struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// AdminHandlers serves the admin-only LLM configuration and audit endpoints.
type AdminHandlers struct {
	configs      llmconfig.Repository
	auditLog     audit.Repository
	allowPrivate bool
}

// NewAdminHandlers creates admin handlers. allowPrivateURLs permits base
// URLs on loopback and private networks, e.g. a local model server.
// auditLog may be nil, which disables recording and the audit endpoints.
func NewAdminHandlers(configs llmconfig.Repository, auditLog audit.Repository, allowPrivateURLs bool) *AdminHandlers {
	return &AdminHandlers{configs: configs, auditLog: auditLog, allowPrivate: allowPrivateURLs}
}

// GetLLMConfig handles GET /admin/llm-config.
func (h *AdminHandlers) GetLLMConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context())
	if err != nil {
		h.writeConfigError(w, r, err, "Failed to load LLM configuration")
		return
	}
	writeJSON(w, r, http.StatusOK, newLLMConfigResponse(cfg))
}

// PutLLMConfig handles PUT /admin/llm-config.
func (h *AdminHandlers) PutLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req LLMConfigRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	in := llmconfig.Config{APIKey: strings.TrimSpace(req.APIKey)}
	if in.APIKey == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "apiKey is required")
		return
	}
	if strings.TrimSpace(req.BaseURL) != "" {
		baseURL, err := validate.LLMBaseURL(req.BaseURL, h.allowPrivate)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "baseUrl: "+err.Error())
			return
		}
		in.BaseURL = baseURL
	}
	model, err := validate.String(req.Model, validate.StringConstraints{
		MaxLength:  maxModelNameLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "model: "+err.Error())
		return
	}
	in.Model = model

	cfg, err := h.configs.Upsert(r.Context(), in.WithDefaults())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to store LLM configuration", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to update LLM configuration")
		return
	}

	recordAudit(r, h.auditLog, audit.Entry{
		Action:     audit.ActionLLMConfigUpdate,
		EntityType: audit.EntityLLMConfig,
		EntityID:   "1",
	})
	slog.InfoContext(r.Context(), "llm configuration updated",
		"admin", middleware.GetUsername(r.Context()),
		"base_url", cfg.BaseURL,
		"model", cfg.Model)
	writeJSON(w, r, http.StatusOK, newLLMConfigResponse(cfg))
}

// DeleteLLMConfig handles DELETE /admin/llm-config.
func (h *AdminHandlers) DeleteLLMConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.configs.Delete(r.Context()); err != nil {
		h.writeConfigError(w, r, err, "Failed to delete LLM configuration")
		return
	}
	recordAudit(r, h.auditLog, audit.Entry{
		Action:     audit.ActionLLMConfigDelete,
		EntityType: audit.EntityLLMConfig,
		EntityID:   "1",
	})
	slog.InfoContext(r.Context(), "llm configuration deleted", "admin", middleware.GetUsername(r.Context()))
	writeJSON(w, r, http.StatusOK, MessageResponse{Message: "LLM configuration deleted successfully"})
}

func (h *AdminHandlers) writeConfigError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, llmconfig.ErrNotConfigured) {
		respondError(w, r, http.StatusNotFound, ErrCodeConfigNotFound, "LLM configuration not found")
		return
	}
	slog.ErrorContext(r.Context(), "llm config store failure", "error", err)
	respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, message)
}

// ListAuditLogs handles GET /admin/audit-logs. Query parameters userId,
// entityType, entityId, from and to (RFC 3339) filter the result; limit caps
// it. format=csv returns a CSV attachment instead of JSON.
func (h *AdminHandlers) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Audit logging is disabled")
		return
	}

	q := r.URL.Query()
	f := audit.Filter{
		UserID:     q.Get("userId"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		Limit:      defaultAuditLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAuditLimit {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and "+strconv.Itoa(maxAuditLimit))
			return
		}
		f.Limit = n
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := q.Get(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondError(w, r, http.StatusBadRequest, ErrCodeValidation, p.name+" must be an RFC 3339 timestamp")
				return
			}
			*p.dst = t
		}
	}

	format := q.Get("format")
	if format != "" && format != "json" && format != "csv" {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "format must be json or csv")
		return
	}

	logs, err := h.auditLog.Query(r.Context(), f)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to query audit logs", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load audit logs")
		return
	}
	if logs == nil {
		logs = []*audit.Log{}
	}

	if format != "csv" {
		writeJSON(w, r, http.StatusOK, AuditLogsResponse{Logs: logs})
		return
	}

	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, logs); err != nil {
		slog.ErrorContext(r.Context(), "failed to export audit logs", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to export audit logs")
		return
	}
	recordAudit(r, h.auditLog, audit.Entry{
		Action:     audit.ActionAuditExport,
		EntityType: audit.EntityAuditLog,
		EntityID:   "csv",
	})
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="aria_audit_log.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// VerifyAuditLog handles GET /admin/audit-logs/verify by checking the
// whole hash chain.
func (h *AdminHandlers) VerifyAuditLog(w http.ResponseWriter, r *http.Request) {
	if h.auditLog == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Audit logging is disabled")
		return
	}

	logs, err := h.auditLog.Query(r.Context(), audit.Filter{})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to query audit logs", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load audit logs")
		return
	}
	slices.Reverse(logs)

	resp := AuditVerifyResponse{Valid: true, Entries: len(logs)}
	if err := audit.VerifyChain(logs); err != nil {
		slog.WarnContext(r.Context(), "audit chain verification failed", "error", err)
		resp.Valid = false
		resp.Error = err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}
