package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Filter selects audit logs. Zero values match everything.
type Filter struct {
	UserID     string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
	Limit      int
}

func (f Filter) matches(l *Log) bool {
	if f.UserID != "" && l.UserID != f.UserID {
		return false
	}
	if f.EntityType != "" && l.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && l.EntityID != f.EntityID {
		return false
	}
	if !f.From.IsZero() && l.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && l.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Repository persists audit logs.
type Repository interface {
	// Append validates e and stores it chained to the most recent entry.
	Append(ctx context.Context, e Entry) (*Log, error)

	// Query returns matching logs, newest first.
	Query(ctx context.Context, f Filter) ([]*Log, error)
}

// InMemoryRepository is a Repository for tests and single-node development.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs []*Log
	now  func() time.Time
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// Append stores e.
func (r *InMemoryRepository) Append(ctx context.Context, e Entry) (*Log, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := ""
	if n := len(r.logs); n > 0 {
		prev = r.logs[n-1].Hash()
	}
	l := newLog(uuid.NewString(), e, prev, r.now())
	r.logs = append(r.logs, l)

	cp := *l
	return &cp, nil
}

// Query returns copies of matching logs, newest first.
func (r *InMemoryRepository) Query(ctx context.Context, f Filter) ([]*Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !f.matches(r.logs[i]) {
			continue
		}
		cp := *r.logs[i]
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
