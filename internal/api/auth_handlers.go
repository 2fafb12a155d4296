package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/aria/internal/audit"
	"github.com/onnwee/aria/internal/auth"
	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/user"
)

// LoginRequest is the JSON body for POST /auth/login. Form-encoded
// username and password fields are accepted as well.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthHandlers serves the /auth endpoints.
type AuthHandlers struct {
	svc      *auth.Service
	auditLog audit.Repository
}

// NewAuthHandlers creates a new AuthHandlers instance. Failed logins are
// recorded in auditLog when it is non-nil.
func NewAuthHandlers(svc *auth.Service, auditLog audit.Repository) *AuthHandlers {
	return &AuthHandlers{svc: svc, auditLog: auditLog}
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in, false) {
		return
	}

	u, err := h.svc.Register(r.Context(), in)
	if err != nil {
		var fieldErr *auth.FieldError
		switch {
		case errors.As(err, &fieldErr):
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, fieldErr.Error())
		case errors.Is(err, user.ErrUserExists):
			respondError(w, r, http.StatusConflict, ErrCodeConflict, "Username or email already registered")
		default:
			slog.ErrorContext(r.Context(), "failed to register user", "error", err)
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to register user")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, u)
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if !decodeJSON(w, r, &req, false) {
		return
	}

	u, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			recordAudit(r, h.auditLog, audit.Entry{
				Action:     audit.ActionLoginFailed,
				EntityType: audit.EntityUser,
				EntityID:   loginEntityID(req.Username),
				Outcome:    audit.OutcomeFailure,
			})
			w.Header().Set("WWW-Authenticate", "Bearer")
			respondError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Incorrect username or password")
		case errors.Is(err, auth.ErrInactiveUser):
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Inactive user")
		default:
			slog.ErrorContext(r.Context(), "failed to authenticate user", "error", err)
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to authenticate")
		}
		return
	}

	pair, err := h.svc.IssueTokens(u)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue tokens", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue tokens")
		return
	}
	writeJSON(w, r, http.StatusOK, pair)
}

// loginEntityID bounds attacker-controlled usernames stored in the audit log.
func loginEntityID(username string) string {
	const maxLen = 64
	username = strings.TrimSpace(username)
	if username == "" {
		return "(empty)"
	}
	if len(username) > maxLen {
		return username[:maxLen]
	}
	return username
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.RefreshToken == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "refresh_token is required")
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			respondError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Refresh token has expired")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInactiveUser):
			respondError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Could not validate credentials")
		default:
			slog.ErrorContext(r.Context(), "failed to refresh token", "error", err)
			respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to refresh token")
		}
		return
	}
	writeJSON(w, r, http.StatusOK, pair)
}

// Me handles GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Lookup(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInactiveUser) {
			respondError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, "Could not validate credentials")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load current user", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load user")
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}
