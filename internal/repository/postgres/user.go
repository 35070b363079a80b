package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/habit-tracker/internal/domain"
)

// UserRepository implements domain.UserRepository using PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new Postgres-backed UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, display_name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		user.Email, nullString(user.DisplayName), nullString(user.PasswordHash),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpsertExternal(ctx context.Context, email, displayName string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, display_name, password_hash)
		 VALUES ($1, $2, NULL)
		 ON CONFLICT (email) DO UPDATE SET
		   display_name = COALESCE(NULLIF(users.display_name, ''), EXCLUDED.display_name),
		   updated_at = CASE
		     WHEN NULLIF(users.display_name, '') IS NULL AND EXCLUDED.display_name IS NOT NULL
		     THEN now()
		     ELSE users.updated_at
		   END
		 RETURNING id, email, display_name, password_hash, created_at, updated_at`,
		email, nullString(displayName),
	))
	if err != nil {
		return nil, fmt.Errorf("upsert external user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var displayName, passwordHash sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &displayName, &passwordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.DisplayName = displayName.String
	user.PasswordHash = passwordHash.String
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
