// Package auth supplies access tokens for the venue session.
package auth

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// Config carries the resource-owner password grant credentials.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
}

// PasswordGrant authenticates with the venue's identity provider and
// caches the token source, refreshing via the refresh token when the
// access token expires. A failed refresh falls back to a full
// re-authentication with the stored credentials.
type PasswordGrant struct {
	oauth    oauth2.Config
	username string
	password string

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewPasswordGrant creates a token source from credentials.
func NewPasswordGrant(cfg Config) *PasswordGrant {
	return &PasswordGrant{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		},
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Token returns a valid access token, authenticating on first use.
func (p *PasswordGrant) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src != nil {
		tok, err := p.src.Token()
		if err == nil {
			return tok.AccessToken, nil
		}
		p.src = nil
	}

	tok, err := p.oauth.PasswordCredentialsToken(ctx, p.username, p.password)
	if err != nil {
		return "", fmt.Errorf("password grant: %w", err)
	}
	p.src = p.oauth.TokenSource(context.Background(), tok)
	return tok.AccessToken, nil
}

// Static is a fixed token, used in tests and dry runs.
type Static string

func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}
