package session

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/onnwee/aria/internal/ranking"
	"github.com/onnwee/aria/internal/requirement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testSessionID = "5f0c7a64-8a34-4f57-9d4f-2a3f6c1b9e10"

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db)
	store.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC) }
	return store, mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs(sqlmock.AnyArg(), "user-1", "Session 2024-01-02 03:04", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requirements")).
		WithArgs(sqlmock.AnyArg(), 0, "R1", "First", "", 9.0, nil, nil, nil, nil, "BUG_FIX").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requirements")).
		WithArgs(sqlmock.AnyArg(), 1, "R2", "Second", "", nil, 2.0, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reqs := []requirement.Requirement{
		{ID: "R1", Title: "First", BusinessValue: requirement.Float(9), Category: requirement.CategoryPtr(requirement.CategoryBugFix)},
		{ID: "R2", Title: "Second", Cost: requirement.Float(2)},
	}
	sess, err := store.Create(context.Background(), "user-1", "", reqs)
	assert.NoError(t, err)
	assert.Equal(t, "Session 2024-01-02 03:04", sess.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requirements")).
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), "user-1", "Backlog", []requirement.Requirement{{ID: "R1", Title: "First"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, created_at, prioritized_at FROM sessions WHERE id = $1 AND user_id = $2")).
		WithArgs(testSessionID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at", "prioritized_at"}).
			AddRow(testSessionID, "user-1", "Backlog", created, nil))

	sess, err := store.Get(ctx, "user-1", testSessionID)
	require.NoError(t, err)
	assert.Equal(t, "Backlog", sess.Name)
	assert.Nil(t, sess.PrioritizedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id")).
		WithArgs(testSessionID, "user-2").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Get(ctx, "user-2", testSessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Malformed ids never reach the database.
	_, err = store.Get(ctx, "user-1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTraced(t *testing.T) {
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1")).
		WithArgs(testSessionID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at", "prioritized_at"}).
			AddRow(testSessionID, "user-1", "Backlog", time.Now(), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1")).
		WithArgs(testSessionID, "user-2").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(ctx, "user-1", testSessionID)
	require.NoError(t, err)
	_, err = store.Get(ctx, "user-2", testSessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	// Rejected ids are not traced.
	_, _ = store.Get(ctx, "user-1", "not-a-uuid")

	spans := rec.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "query sessions", s.Name())
		attrs := attribute.NewSet(s.Attributes()...)
		table, _ := attrs.Value("db.sql.table")
		assert.Equal(t, "sessions", table.AsString())
	}
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Requirements(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, name, created_at, prioritized_at FROM sessions")).
		WithArgs(testSessionID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "created_at", "prioritized_at"}).
			AddRow(testSessionID, "user-1", "Backlog", time.Now(), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirements")).
		WithArgs(testSessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "business_value", "cost", "risk", "urgency", "stakeholder_value", "category"}).
			AddRow("R1", "First", "desc", 9.0, nil, nil, 8.0, nil, "FEATURE").
			AddRow("R2", "Second", "", nil, nil, nil, nil, nil, nil))

	reqs, err := store.Requirements(context.Background(), "user-1", testSessionID)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, 9.0, *reqs[0].BusinessValue)
	assert.Nil(t, reqs[0].Cost)
	assert.Equal(t, requirement.CategoryFeature, *reqs[0].Category)
	assert.Nil(t, reqs[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplacePrioritized(t *testing.T) {
	store, mock := newMockStore(t)
	confidence := 0.8
	run := Run{
		Weights: ranking.DefaultWeightVector(),
		Results: []requirement.PrioritizedRequirement{
			{Requirement: requirement.Requirement{ID: "R1"}, PriorityScore: 91.5, Rank: 1, Confidence: &confidence, Reasoning: "r1"},
			{Requirement: requirement.Requirement{ID: "R2"}, PriorityScore: 12.0, Rank: 2, Reasoning: "r2"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET weights = $1, prioritized_at = $2 WHERE id = $3 AND user_id = $4")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), testSessionID, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM prioritized_requirements WHERE session_id = $1")).
		WithArgs(testSessionID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prioritized_requirements")).
		WithArgs(testSessionID, "R1", 1, 91.5, 0.8, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO prioritized_requirements")).
		WithArgs(testSessionID, "R2", 2, 12.0, nil, "r2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ReplacePrioritized(context.Background(), "user-1", testSessionID, run)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplacePrioritizedWrongOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.ReplacePrioritized(context.Background(), "user-2", testSessionID, Run{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Prioritized(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	columns := []string{"id", "title", "description", "business_value", "cost", "risk", "urgency",
		"stakeholder_value", "category", "priority_score", "rank", "confidence", "reasoning"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT weights FROM sessions")).
		WithArgs(testSessionID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"weights"}).
			AddRow([]byte(`{"businessValue":0.4,"cost":0.1,"risk":0.15,"urgency":0.2,"stakeholderValue":0.15}`)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM prioritized_requirements p")).
		WithArgs(testSessionID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("R1", "First", "", 9.0, 2.0, nil, nil, nil, "BUG_FIX", 95.2, 1, 0.4, "high").
			AddRow("R2", "Second", "", nil, nil, nil, nil, nil, nil, 40.1, 2, nil, "low"))

	run, err := store.Prioritized(ctx, "user-1", testSessionID)
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "R1", run.Results[0].ID)
	assert.Equal(t, 1, run.Results[0].Rank)
	assert.Equal(t, 0.4, run.Weights.BusinessValue())
	assert.Nil(t, run.Results[1].Confidence)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT weights FROM sessions")).
		WithArgs(testSessionID, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"weights"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM prioritized_requirements p")).
		WithArgs(testSessionID).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err = store.Prioritized(ctx, "user-1", testSessionID)
	assert.ErrorIs(t, err, ErrNoResults)
	assert.NoError(t, mock.ExpectationsWereMet())
}
