package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/aria/internal/middleware"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/session"
)

// SessionListResponse is returned by GET /sessions.
type SessionListResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

// SessionDetailsResponse is returned by GET /sessions/{sessionId}.
type SessionDetailsResponse struct {
	SessionID               string                               `json:"sessionId"`
	Name                    string                               `json:"name"`
	CreatedAt               time.Time                            `json:"createdAt"`
	PrioritizedAt           *time.Time                           `json:"prioritizedAt,omitempty"`
	Requirements            []requirement.Requirement            `json:"requirements"`
	PrioritizedRequirements []requirement.PrioritizedRequirement `json:"prioritizedRequirements"`
}

// SessionHandlers serves the /sessions endpoints.
type SessionHandlers struct {
	store session.Store
}

// NewSessionHandlers creates a new SessionHandlers instance.
func NewSessionHandlers(store session.Store) *SessionHandlers {
	return &SessionHandlers{store: store}
}

// List handles GET /sessions, newest first.
func (h *SessionHandlers) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []session.Summary{}
	}
	writeJSON(w, r, http.StatusOK, SessionListResponse{Sessions: sessions})
}

// Latest handles GET /sessions/latest.
func (h *SessionHandlers) Latest(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Latest(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "No sessions found")
			return
		}
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sess)
}

// Get handles GET /sessions/{sessionId} with requirements and any stored
// prioritization results.
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	sess, err := h.store.Get(ctx, userID, r.PathValue("sessionId"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	reqs, err := h.store.Requirements(ctx, userID, sess.ID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	results := []requirement.PrioritizedRequirement{}
	run, err := h.store.Prioritized(ctx, userID, sess.ID)
	switch {
	case err == nil:
		results = run.Results
	case !errors.Is(err, session.ErrNoResults):
		writeSessionError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []requirement.Requirement{}
	}

	writeJSON(w, r, http.StatusOK, SessionDetailsResponse{
		SessionID:               sess.ID,
		Name:                    sess.Name,
		CreatedAt:               sess.CreatedAt,
		PrioritizedAt:           sess.PrioritizedAt,
		Requirements:            reqs,
		PrioritizedRequirements: results,
	})
}

// resolveSession returns the named session, or the latest one when
// sessionID is empty.
func resolveSession(ctx context.Context, store session.Store, userID, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return store.Latest(ctx, userID)
	}
	return store.Get(ctx, userID, sessionID)
}

// writeSessionError maps session store failures to error responses.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeSessionNotFound, "Session not found")
	case errors.Is(err, session.ErrNoResults):
		respondError(w, r, http.StatusNotFound, ErrCodeNoResults, "No prioritization results found for session")
	default:
		slog.ErrorContext(r.Context(), "session store failure", "error", err)
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to load session")
	}
}
