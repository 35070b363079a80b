package google

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// ErrNoIDToken is returned when the token endpoint answers without an
// id_token, which happens if the openid scope was not granted.
var ErrNoIDToken = errors.New("token response has no id_token")

// OAuthFlow drives the browser redirect login: build the consent URL, then
// trade the returned code for an ID token.
type OAuthFlow struct {
	config *oauth2.Config
}

// NewOAuthFlow configures the authorization code flow against Google.
func NewOAuthFlow(clientID, clientSecret, redirectURL string) *OAuthFlow {
	return &OAuthFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (f *OAuthFlow) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the ID token Google returns
// alongside the access token.
func (f *OAuthFlow) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := f.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}
