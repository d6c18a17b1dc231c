package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Assertion is what the identity provider vouches for after a successful
// sign-in. Nonce is copied from the verified ID token; checking it against
// the value issued with the redirect is the caller's job.
type Assertion struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Nonce         string
}

// ErrNoIDToken means the token endpoint answered without an id_token.
var ErrNoIDToken = errors.New("auth: token response has no id_token")

// OIDCProvider runs the Authorization Code flow against an OpenID Connect
// issuer and verifies the returned ID token's signature, issuer, audience and
// expiry.
type OIDCProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider discovers the issuer's endpoints and signing keys.
// callbackURL must match the redirect URI registered with the provider.
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, callbackURL string) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering %s: %w", issuer, err)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return newOIDCProvider(cfg, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func newOIDCProvider(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *OIDCProvider {
	return &OIDCProvider{config: cfg, verifier: verifier}
}

// AuthURL is where the member's browser is sent to sign in. state is echoed
// back on the callback; nonce ends up inside the ID token.
func (p *OIDCProvider) AuthURL(state, nonce string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oidc.Nonce(nonce))
}

// Exchange trades the callback code for tokens and returns the verified
// claims of the ID token.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: decoding id_token claims: %w", err)
	}

	return &Assertion{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Nonce:         idToken.Nonce,
	}, nil
}

// RandomToken returns 32 bytes from crypto/rand, base64url encoded. Used for
// OAuth state and OIDC nonce values.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
