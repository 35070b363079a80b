package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidExternalToken = errors.New("invalid external identity token")
	ErrNotConfigured        = errors.New("not configured")
)
