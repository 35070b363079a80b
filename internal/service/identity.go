package service

import "context"

// ExternalIdentity is what a third-party identity provider vouches for.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier checks a signed identity token issued by an external
// provider. Implementations return domain.ErrInvalidExternalToken for any
// token that fails verification or carries no email.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}
