package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/aria/internal/requirement"
)

type sessionRecord struct {
	session      Session
	requirements []requirement.Requirement
	run          *Run
	seq          int64
}

// InMemoryStore is a thread-safe in-memory Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
	seq      int64
	now      func() time.Time
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*sessionRecord),
		now:      time.Now,
	}
}

// Create stores a new session.
func (s *InMemoryStore) Create(ctx context.Context, userID, name string, reqs []requirement.Requirement) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if strings.TrimSpace(name) == "" {
		name = DefaultName(now)
	}

	rec := &sessionRecord{
		session: Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      name,
			CreatedAt: now,
		},
		requirements: requirement.CloneAll(reqs),
		seq:          s.seq,
	}
	s.seq++
	s.sessions[rec.session.ID] = rec

	return snapshot(rec.session), nil
}

// snapshot copies sess so callers cannot reach stored pointers.
func snapshot(sess Session) *Session {
	if sess.PrioritizedAt != nil {
		at := *sess.PrioritizedAt
		sess.PrioritizedAt = &at
	}
	return &sess
}

// owned returns the record when it exists and belongs to userID.
// Caller must hold the lock.
func (s *InMemoryStore) owned(userID, sessionID string) (*sessionRecord, error) {
	rec, ok := s.sessions[sessionID]
	if !ok || rec.session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return rec, nil
}

// newer orders records by creation time, then insertion order.
func newer(a, b *sessionRecord) bool {
	if !a.session.CreatedAt.Equal(b.session.CreatedAt) {
		return a.session.CreatedAt.After(b.session.CreatedAt)
	}
	return a.seq > b.seq
}

// Get returns a session owned by userID.
func (s *InMemoryStore) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.owned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return snapshot(rec.session), nil
}

// Latest returns the newest session owned by userID.
func (s *InMemoryStore) Latest(ctx context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *sessionRecord
	for _, rec := range s.sessions {
		if rec.session.UserID != userID {
			continue
		}
		if latest == nil || newer(rec, latest) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrSessionNotFound
	}
	return snapshot(latest.session), nil
}

// List returns all sessions owned by userID, newest first.
func (s *InMemoryStore) List(ctx context.Context, userID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*sessionRecord
	for _, rec := range s.sessions {
		if rec.session.UserID == userID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return newer(records[i], records[j]) })

	summaries := make([]Summary, 0, len(records))
	for _, rec := range records {
		sum := Summary{
			Session:          *snapshot(rec.session),
			RequirementCount: len(rec.requirements),
		}
		if rec.run != nil {
			sum.PrioritizedCount = len(rec.run.Results)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// Requirements returns the session's requirements in input order.
func (s *InMemoryStore) Requirements(ctx context.Context, userID, sessionID string) ([]requirement.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.owned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	out := requirement.CloneAll(rec.requirements)
	if out == nil {
		out = []requirement.Requirement{}
	}
	return out, nil
}

// ReplacePrioritized overwrites any prior results for the session.
func (s *InMemoryStore) ReplacePrioritized(ctx context.Context, userID, sessionID string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.owned(userID, sessionID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	rec.run = &Run{
		Weights: run.Weights,
		Results: requirement.CloneAll(run.Results),
	}
	rec.session.PrioritizedAt = &now
	return nil
}

// Prioritized returns the stored results in rank order.
func (s *InMemoryStore) Prioritized(ctx context.Context, userID, sessionID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.owned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.run == nil || len(rec.run.Results) == 0 {
		return nil, ErrNoResults
	}

	results := requirement.CloneAll(rec.run.Results)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })
	return &Run{Weights: rec.run.Weights, Results: results}, nil
}
