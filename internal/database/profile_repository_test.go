package database

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, mock
}

var profileRowColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "phone", "role",
	"mfa_enabled", "mfa_secret", "created_at", "updated_at",
}

func TestProfileRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		p := &models.Profile{
			Email:        "jo@example.com",
			PasswordHash: "hash",
			FirstName:    models.NewNullString("Jo"),
		}

		mock.ExpectQuery(`INSERT INTO profiles`).
			WithArgs(sqlmock.AnyArg(), "jo@example.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "client").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		err := repo.Create(p)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, p.ID)
		assert.Equal(t, models.RoleClient, p.Role)
		assert.Equal(t, now, p.CreatedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO profiles`).
			WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))

		err := repo.Create(&models.Profile{Email: "jo@example.com", PasswordHash: "hash"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create profile")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProfileRepository_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE LOWER\(email\)`).
			WithArgs("Jo@Example.com").
			WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow(
				id.String(), "jo@example.com", "hash", "Jo", "Doe", nil, "admin",
				false, nil, now, now,
			))

		p, err := repo.GetByEmail("Jo@Example.com")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, id, p.ID)
		assert.Equal(t, models.RoleAdmin, p.Role)
		assert.True(t, p.IsAdmin())
		assert.Equal(t, "Jo Doe", p.FullName())
		assert.False(t, p.Phone.Valid)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE LOWER\(email\)`).
			WithArgs("nobody@example.com").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.GetByEmail("nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, p)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProfileRepository_GetFirstAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE role = 'admin' ORDER BY created_at ASC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow(
			id.String(), "ops@example.com", "hash", nil, nil, nil, "admin",
			false, nil, now, now,
		))

	p, err := repo.GetFirstAdmin()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "ops@example.com", p.FullName())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_UpdateRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE profiles SET role`).
			WithArgs(id.String(), "driver").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateRole(id, models.RoleDriver))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE profiles SET role`).
			WithArgs(id.String(), "driver").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateRole(id, models.RoleDriver)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProfileRepository_EnableMFA(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE profiles SET mfa_enabled = TRUE`).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.EnableMFA(id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
