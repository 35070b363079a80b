// Package google connects the external login flow to Google: ID token
// verification for tokens obtained by the client, and the server-side
// authorization code flow for browsers.
package google

import (
	"context"
	"fmt"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/service"
	"google.golang.org/api/idtoken"
)

type tokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// IDTokenVerifier checks Google-signed ID tokens against the configured
// OAuth client ID.
type IDTokenVerifier struct {
	clientID  string
	validator tokenValidator
}

var _ service.IdentityVerifier = (*IDTokenVerifier)(nil)

// NewIDTokenVerifier creates a verifier for tokens issued to clientID.
// Google's signing keys are fetched and cached by the validator.
func NewIDTokenVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: google client id", domain.ErrNotConfigured)
	}
	v, err := idtoken.NewValidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("create id token validator: %w", err)
	}
	return &IDTokenVerifier{clientID: clientID, validator: v}, nil
}

// Verify validates the token signature, audience and expiry and returns the
// identity it asserts. Tokens without an email, or whose email Google marks
// as unverified, are rejected.
func (v *IDTokenVerifier) Verify(ctx context.Context, idToken string) (*service.ExternalIdentity, error) {
	payload, err := v.validator.Validate(ctx, idToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidExternalToken, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token has no email", domain.ErrInvalidExternalToken)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email not verified", domain.ErrInvalidExternalToken)
	}

	name, _ := payload.Claims["name"].(string)
	return &service.ExternalIdentity{
		Subject: payload.Subject,
		Email:   email,
		Name:    name,
	}, nil
}
