package user

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	u := &User{Email: "ada@example.com", Username: "Ada", PasswordHash: "hash", IsActive: true}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected ID to be assigned")
	}

	dup := &User{Email: "other@example.com", Username: "ada"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists for duplicate username, got %v", err)
	}
	dup = &User{Email: "ADA@example.com", Username: "someone"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists for duplicate email, got %v", err)
	}

	got, err := repo.GetByUsername(ctx, "ADA")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("expected id %s, got %s", u.ID, got.ID)
	}

	// Mutating the returned copy must not affect the stored user.
	got.IsAdmin = true
	again, _ := repo.GetByID(ctx, u.ID)
	if again.IsAdmin {
		t.Error("expected stored user to be unaffected by caller mutation")
	}

	if err := repo.SetAdmin(ctx, "ada", true); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	again, _ = repo.GetByID(ctx, u.ID)
	if !again.IsAdmin {
		t.Error("expected user to be admin")
	}

	if err := repo.SetAdmin(ctx, "nobody", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestPostgresRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "ada", "hash", true, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &User{Email: "ada@example.com", Username: "ada", PasswordHash: "hash", IsActive: true}
	assert.NoError(t, repo.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err = repo.Create(context.Background(), &User{Email: "ada@example.com", Username: "ada"})
	assert.ErrorIs(t, err, ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(username) = lower($1)")).
		WithArgs("Ada").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "is_active", "is_admin", "created_at", "updated_at"}).
			AddRow("3b241101-e2bb-4255-8caf-4136c566a962", "ada@example.com", "ada", "hash", true, true, now, now))

	u, err := repo.GetByUsername(context.Background(), "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.True(t, u.IsAdmin)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(username)")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_admin")).
		WithArgs(true, sqlmock.AnyArg(), "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetAdmin(context.Background(), "ada", true))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_admin")).
		WithArgs(true, sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetAdmin(context.Background(), "ghost", true), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
