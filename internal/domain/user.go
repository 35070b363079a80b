package domain

import (
	"context"
	"time"
)

// User represents an account. PasswordHash is empty for accounts that only
// ever signed in through an external identity provider; DisplayName is empty
// until the user supplies one.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpsertExternal finds the user with the given email or creates one
	// without a password. An existing user's display name is only set when
	// it was previously empty.
	UpsertExternal(ctx context.Context, email, displayName string) (*User, error)
}
