// Package session stores requirement sessions and their prioritization
// results, scoped to the owning user.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
)

var (
	// ErrSessionNotFound is returned when a session does not exist or is
	// owned by another user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoResults is returned when a session has not been prioritized yet.
	ErrNoResults = errors.New("no prioritization results for session")
)

// Session is a named batch of requirements owned by one user.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"createdAt"`
	PrioritizedAt *time.Time `json:"prioritizedAt,omitempty"`
}

// Summary is a session with its item counts.
type Summary struct {
	Session
	RequirementCount int `json:"requirementCount"`
	PrioritizedCount int `json:"prioritizedCount"`
}

// Run is one complete prioritization batch for a session.
type Run struct {
	Weights ranking.WeightVector                 `json:"weights"`
	Results []requirement.PrioritizedRequirement `json:"results"`
}

// Store persists sessions. Every lookup is scoped to userID; sessions of
// other users behave as missing.
type Store interface {
	// Create stores a new session with its requirements in input order.
	// An empty name is replaced with DefaultName.
	Create(ctx context.Context, userID, name string, reqs []requirement.Requirement) (*Session, error)
	// Get returns a session owned by userID.
	Get(ctx context.Context, userID, sessionID string) (*Session, error)
	// Latest returns the most recently created session of userID.
	Latest(ctx context.Context, userID string) (*Session, error)
	// List returns all sessions of userID, newest first.
	List(ctx context.Context, userID string) ([]Summary, error)
	// Requirements returns the session's requirements in input order.
	Requirements(ctx context.Context, userID, sessionID string) ([]requirement.Requirement, error)
	// ReplacePrioritized overwrites any prior results for the session.
	ReplacePrioritized(ctx context.Context, userID, sessionID string, run Run) error
	// Prioritized returns the stored results in rank order, or ErrNoResults.
	Prioritized(ctx context.Context, userID, sessionID string) (*Run, error)
}

// DefaultName returns the name given to sessions created without one.
func DefaultName(t time.Time) string {
	return fmt.Sprintf("Session %s", t.UTC().Format("2006-01-02 15:04"))
}
