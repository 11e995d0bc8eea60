package auth

import (
	"context"
	"errors"
)

// ChainedAuthenticator tries multiple authenticators in order.
type ChainedAuthenticator struct {
	authenticators []Authenticator
	allowAnonymous bool
}

// NewChainedAuthenticator creates a new chained authenticator. With
// allowAnonymous, requests presenting no credentials authenticate as
// "anonymous"; rejected credentials are still rejected.
func NewChainedAuthenticator(allowAnonymous bool, authenticators ...Authenticator) *ChainedAuthenticator {
	return &ChainedAuthenticator{
		authenticators: authenticators,
		allowAnonymous: allowAnonymous,
	}
}

// Authenticate tries each authenticator in order.
func (c *ChainedAuthenticator) Authenticate(ctx context.Context) (*User, error) {
	var lastErr error
	for _, a := range c.authenticators {
		u, err := a.Authenticate(ctx)
		if err == nil && u != nil {
			return u, nil
		}
		if err != nil && !errors.Is(err, ErrNoCredentials) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	if c.allowAnonymous {
		return &User{Name: "anonymous", AuthType: "anonymous"}, nil
	}
	return nil, ErrNoCredentials
}

// Verify interface compliance.
var _ Authenticator = (*ChainedAuthenticator)(nil)
