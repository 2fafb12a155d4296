package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/onnwee/aria/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Create inserts the session and its requirements in a single transaction.
func (s *PostgresStore) Create(ctx context.Context, userID, name string, reqs []requirement.Requirement) (sess *Session, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	now := s.now().UTC()
	if strings.TrimSpace(name) == "" {
		name = DefaultName(now)
	}
	sess = &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, sess.Name, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	for i, r := range reqs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO requirements (
				session_id, position, id, title, description,
				business_value, cost, risk, urgency, stakeholder_value, category
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			sess.ID, i, r.ID, r.Title, r.Description,
			nullFloat(r.BusinessValue), nullFloat(r.Cost), nullFloat(r.Risk),
			nullFloat(r.Urgency), nullFloat(r.StakeholderValue), nullCategory(r.Category),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert requirement %s: %w", r.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session: %w", err)
	}
	return sess, nil
}

const sessionColumns = `id, user_id, name, created_at, prioritized_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		sess          Session
		prioritizedAt sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.CreatedAt, &prioritizedAt); err != nil {
		return nil, err
	}
	if prioritizedAt.Valid {
		t := prioritizedAt.Time
		sess.PrioritizedAt = &t
	}
	return &sess, nil
}

// Get returns a session owned by userID.
func (s *PostgresStore) Get(ctx context.Context, userID, sessionID string) (sess *Session, err error) {
	if _, perr := uuid.Parse(sessionID); perr != nil {
		return nil, ErrSessionNotFound
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	sess, err = scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// Latest returns the newest session owned by userID.
func (s *PostgresStore) Latest(ctx context.Context, userID string) (sess *Session, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	)
	sess, err = scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}
	return sess, nil
}

// List returns all sessions owned by userID with their counts, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string) (summaries []Summary, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sessions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.name, s.created_at, s.prioritized_at,
		       (SELECT COUNT(*) FROM requirements r WHERE r.session_id = s.id),
		       (SELECT COUNT(*) FROM prioritized_requirements p WHERE p.session_id = s.id)
		FROM sessions s
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries = []Summary{}
	for rows.Next() {
		var (
			sum           Summary
			prioritizedAt sql.NullTime
		)
		if err = rows.Scan(&sum.ID, &sum.UserID, &sum.Name, &sum.CreatedAt, &prioritizedAt,
			&sum.RequirementCount, &sum.PrioritizedCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if prioritizedAt.Valid {
			t := prioritizedAt.Time
			sum.PrioritizedAt = &t
		}
		summaries = append(summaries, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

// Requirements returns the session's requirements in input order.
func (s *PostgresStore) Requirements(ctx context.Context, userID, sessionID string) ([]requirement.Requirement, error) {
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "requirements", tracing.DBOperationQuery)
	reqs, err := s.queryRequirements(ctx, sessionID)
	endSpan(err)
	return reqs, err
}

func (s *PostgresStore) queryRequirements(ctx context.Context, sessionID string) ([]requirement.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, business_value, cost, risk, urgency, stakeholder_value, category
		FROM requirements
		WHERE session_id = $1
		ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requirements: %w", err)
	}
	defer rows.Close()

	reqs := []requirement.Requirement{}
	for rows.Next() {
		var r requirement.Requirement
		var bv, cost, risk, urgency, sv sql.NullFloat64
		var category sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &bv, &cost, &risk, &urgency, &sv, &category); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		r.BusinessValue, r.Cost, r.Risk = floatPtr(bv), floatPtr(cost), floatPtr(risk)
		r.Urgency, r.StakeholderValue = floatPtr(urgency), floatPtr(sv)
		r.Category = categoryPtr(category)
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requirements: %w", err)
	}
	return reqs, nil
}

// ReplacePrioritized deletes any previous batch and inserts run in one
// transaction.
func (s *PostgresStore) ReplacePrioritized(ctx context.Context, userID, sessionID string, run Run) (err error) {
	if _, perr := uuid.Parse(sessionID); perr != nil {
		return ErrSessionNotFound
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "prioritized_requirements", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET weights = $1, prioritized_at = $2 WHERE id = $3 AND user_id = $4`,
		weights, s.now().UTC(), sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session update: %w", err)
	}
	if n == 0 {
		err = ErrSessionNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM prioritized_requirements WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear prioritized requirements: %w", err)
	}

	for _, p := range run.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO prioritized_requirements (
				session_id, requirement_id, rank, priority_score, confidence, reasoning
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			sessionID, p.ID, p.Rank, p.PriorityScore, nullFloat(p.Confidence), p.Reasoning,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prioritized requirement %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prioritization: %w", err)
	}
	return nil
}

// Prioritized returns the stored results in rank order.
func (s *PostgresStore) Prioritized(ctx context.Context, userID, sessionID string) (run *Run, err error) {
	if _, perr := uuid.Parse(sessionID); perr != nil {
		return nil, ErrSessionNotFound
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "prioritized_requirements", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var weights []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT weights FROM sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&weights)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session weights: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.description, r.business_value, r.cost, r.risk, r.urgency,
		       r.stakeholder_value, r.category, p.priority_score, p.rank, p.confidence, p.reasoning
		FROM prioritized_requirements p
		JOIN requirements r ON r.session_id = p.session_id AND r.id = p.requirement_id
		WHERE p.session_id = $1
		ORDER BY p.rank`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query prioritized requirements: %w", err)
	}
	defer rows.Close()

	run = &Run{}
	for rows.Next() {
		var p requirement.PrioritizedRequirement
		var bv, cost, risk, urgency, sv, confidence sql.NullFloat64
		var category sql.NullString
		if err = rows.Scan(&p.ID, &p.Title, &p.Description, &bv, &cost, &risk, &urgency, &sv, &category,
			&p.PriorityScore, &p.Rank, &confidence, &p.Reasoning); err != nil {
			return nil, fmt.Errorf("failed to scan prioritized requirement: %w", err)
		}
		p.BusinessValue, p.Cost, p.Risk = floatPtr(bv), floatPtr(cost), floatPtr(risk)
		p.Urgency, p.StakeholderValue = floatPtr(urgency), floatPtr(sv)
		p.Category = categoryPtr(category)
		p.Confidence = floatPtr(confidence)
		run.Results = append(run.Results, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prioritized requirements: %w", err)
	}

	if len(run.Results) == 0 {
		return nil, ErrNoResults
	}

	if len(weights) > 0 {
		var w ranking.WeightVector
		if err = json.Unmarshal(weights, &w); err != nil {
			return nil, fmt.Errorf("failed to decode weights: %w", err)
		}
		run.Weights = w
	}
	return run, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullCategory(c *requirement.Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func categoryPtr(v sql.NullString) *requirement.Category {
	if !v.Valid {
		return nil
	}
	c := requirement.Category(v.String)
	return &c
}
