package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/aria/internal/idempotency"
	"github.com/onnwee/aria/internal/middleware"
)

// ServiceName identifies the API in traces and the root endpoint.
const ServiceName = "aria-api"

// Version is reported by the root endpoint.
var Version = "dev"

// RouterConfig holds everything NewRouter mounts. Optional fields may be
// nil or zero.
type RouterConfig struct {
	Auth           *AuthHandlers
	Requirements   *RequirementHandlers
	Prioritization *PrioritizationHandlers
	Export         *ExportHandlers
	Sessions       *SessionHandlers
	Admin          *AdminHandlers
	Health         *HealthHandlers

	Authenticator middleware.TokenAuthenticator
	Logger        *slog.Logger

	// Metrics enables HTTP, auth and rate limit metrics. MetricsHandler
	// serves GET /metrics.
	Metrics        *middleware.Metrics
	MetricsHandler http.Handler

	// RateLimitStore enables rate limiting with the three limits below.
	RateLimitStore middleware.RateLimitStore
	GlobalLimit    middleware.RateLimitConfig
	AuthLimit      middleware.RateLimitConfig
	AnalysisLimit  middleware.RateLimitConfig

	// Idempotency enables Idempotency-Key replay on requirement creation.
	Idempotency idempotency.Repository

	CORSOrigins    []string
	TracingEnabled bool
}

// idempotentRoutes are the POST routes that honor Idempotency-Key.
var idempotentRoutes = map[string]bool{
	"/requirements":        true,
	"/requirements/upload": true,
}

// NewRouter builds the API handler: routes plus the middleware chain
// Tracing -> RequestID -> Logging -> HTTPMetrics -> CORS -> RateLimiter.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := func(c middleware.RateLimitConfig, key middleware.KeyFunc) func(http.Handler) http.Handler {
		if cfg.RateLimitStore == nil || c.Validate() != nil {
			return passthrough
		}
		return middleware.RateLimiter(cfg.RateLimitStore, c, key, cfg.Metrics)
	}
	authLimit := limit(cfg.AuthLimit, middleware.IPKeyFunc())
	analysisLimit := limit(cfg.AnalysisLimit, middleware.UserKeyFunc())

	requireAuth := middleware.RequireAuth(cfg.Authenticator, cfg.Metrics)
	idem := passthrough
	if cfg.Idempotency != nil {
		idem = middleware.Idempotency(cfg.Idempotency, idempotentRoutes)
	}

	protected := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		var handler http.Handler = h
		for i := len(extra) - 1; i >= 0; i-- {
			handler = extra[i](handler)
		}
		return requireAuth(handler)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", serviceInfo)
	mux.HandleFunc("/", notFound)

	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
		mux.HandleFunc("GET /ready", cfg.Health.Ready)
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	if h := cfg.Auth; h != nil {
		mux.Handle("POST /auth/register", authLimit(http.HandlerFunc(h.Register)))
		mux.Handle("POST /auth/login", authLimit(http.HandlerFunc(h.Login)))
		mux.Handle("POST /auth/refresh", authLimit(http.HandlerFunc(h.Refresh)))
		mux.Handle("GET /auth/me", protected(h.Me))
	}

	if h := cfg.Requirements; h != nil {
		mux.Handle("POST /requirements/upload", protected(h.Upload, idem))
		mux.Handle("POST /requirements", protected(h.Create, idem))
		mux.Handle("GET /requirements", protected(h.List))
	}

	if h := cfg.Prioritization; h != nil {
		mux.Handle("POST /prioritization/analyze", protected(h.Analyze, analysisLimit))
		mux.Handle("POST /prioritization/chatgpt", protected(h.Summary, analysisLimit))
		mux.Handle("GET /prioritization/{sessionId}", protected(h.Get))
	}

	if h := cfg.Export; h != nil {
		mux.Handle("GET /export/csv/{sessionId}", protected(h.CSV))
		mux.Handle("GET /export/html/{sessionId}", protected(h.HTML))
	}

	if h := cfg.Sessions; h != nil {
		mux.Handle("GET /sessions", protected(h.List))
		mux.Handle("GET /sessions/latest", protected(h.Latest))
		mux.Handle("GET /sessions/{sessionId}", protected(h.Get))
	}

	if h := cfg.Admin; h != nil {
		mux.Handle("GET /admin/llm-config", protected(h.GetLLMConfig, middleware.RequireAdmin))
		mux.Handle("PUT /admin/llm-config", protected(h.PutLLMConfig, middleware.RequireAdmin))
		mux.Handle("DELETE /admin/llm-config", protected(h.DeleteLLMConfig, middleware.RequireAdmin))
		mux.Handle("GET /admin/audit-logs", protected(h.ListAuditLogs, middleware.RequireAdmin))
		mux.Handle("GET /admin/audit-logs/verify", protected(h.VerifyAuditLog, middleware.RequireAdmin))
	}

	var handler http.Handler = mux
	handler = limit(cfg.GlobalLimit, middleware.IPKeyFunc())(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins))(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(ServiceName)(handler)
	}
	return handler
}

func passthrough(next http.Handler) http.Handler { return next }

func serviceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"service": ServiceName,
		"version": Version,
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
}
