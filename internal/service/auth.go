package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/metrics"
	"golang.org/x/crypto/bcrypt"
)

// AuthResult is returned by every successful sign-in: the account, a bearer
// token and the current month's snapshot so the client can render at once.
type AuthResult struct {
	User        *domain.User
	AccessToken string
	Snapshot    *domain.Snapshot
}

// AuthService handles registration, password login and external identity
// login. Every successful path ends in token issuance plus bootstrap.
type AuthService struct {
	users      domain.UserRepository
	tokens     *TokenIssuer
	bootstrap  *Bootstrapper
	verifier   IdentityVerifier
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new AuthService. verifier may be nil, in which
// case ExternalLogin reports domain.ErrNotConfigured.
func NewAuthService(users domain.UserRepository, tokens *TokenIssuer, bootstrap *Bootstrapper, verifier IdentityVerifier, bcryptCost int) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bootstrap:  bootstrap,
		verifier:   verifier,
		bcryptCost: bcryptCost,
	}
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			metrics.RecordAuth("register", "duplicate")
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.RecordAuth("register", "ok")
	return s.complete(ctx, user)
}

// Login verifies an email and password. Unknown emails, accounts without a
// password and wrong passwords all return domain.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Spend the same bcrypt work as a real check so response time
			// does not reveal whether the email exists.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			metrics.RecordAuth("password", "rejected")
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		metrics.RecordAuth("password", "rejected")
		return nil, domain.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.RecordAuth("password", "rejected")
		return nil, domain.ErrUnauthorized
	}

	metrics.RecordAuth("password", "ok")
	return s.complete(ctx, user)
}

// ExternalLogin signs in with an identity token from the external provider,
// creating the account on first use.
func (s *AuthService) ExternalLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: external identity provider", domain.ErrNotConfigured)
	}
	if strings.TrimSpace(idToken) == "" {
		metrics.RecordAuth("external", "rejected")
		return nil, domain.ErrInvalidExternalToken
	}

	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		metrics.RecordAuth("external", "rejected")
		if errors.Is(err, domain.ErrInvalidExternalToken) {
			return nil, err
		}
		return nil, fmt.Errorf("verify identity token: %w", err)
	}
	if identity.Email == "" {
		metrics.RecordAuth("external", "rejected")
		return nil, domain.ErrInvalidExternalToken
	}

	user, err := s.users.UpsertExternal(ctx, identity.Email, identity.Name)
	if err != nil {
		return nil, fmt.Errorf("upsert external user: %w", err)
	}

	metrics.RecordAuth("external", "ok")
	return s.complete(ctx, user)
}

// Authenticate validates a bearer token.
func (s *AuthService) Authenticate(token string) (*Identity, error) {
	return s.tokens.Validate(token)
}

func (s *AuthService) complete(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	snapshot, err := s.bootstrap.EnsureCurrent(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap snapshot: %w", err)
	}

	return &AuthResult{User: user, AccessToken: token, Snapshot: snapshot}, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}
