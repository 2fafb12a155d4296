package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/aria/internal/auth"
	"github.com/onnwee/aria/internal/user"
)

// TokenAuthenticator resolves a bearer token to its user.
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*user.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAuth rejects requests without a valid access token with 401 and
// stores the user ID, username and admin flag in the request context.
// metrics may be nil.
func RequireAuth(authn TokenAuthenticator, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				rejectAuth(w, r, metrics, "missing", "Not authenticated")
				return
			}

			u, err := authn.AuthenticateToken(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					rejectAuth(w, r, metrics, "expired", "Token has expired")
				case errors.Is(err, auth.ErrInactiveUser):
					rejectAuth(w, r, metrics, "inactive", "Inactive user")
				case errors.Is(err, auth.ErrInvalidToken):
					rejectAuth(w, r, metrics, "invalid", "Could not validate credentials")
				default:
					ctx := SetErrorCode(r.Context(), "internal_error")
					UpdateResponseContext(w, ctx)
					writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to authenticate request")
				}
				return
			}

			ctx := SetUserID(r.Context(), u.ID)
			ctx = SetUsername(ctx, u.Username)
			ctx = SetAdmin(ctx, u.IsAdmin)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectAuth(w http.ResponseWriter, r *http.Request, metrics *Metrics, reason, message string) {
	if metrics != nil {
		metrics.IncAuthFailures(reason)
	}
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "auth_failed", message)
}

// RequireAdmin rejects non-admin users with 403. It must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			ctx := SetErrorCode(r.Context(), "forbidden")
			UpdateResponseContext(w, ctx)
			writeJSONError(w, http.StatusForbidden, "forbidden", "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
