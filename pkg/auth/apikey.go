package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
)

// APIKey represents an API key entry.
type APIKey struct {
	Key   string   `yaml:"key"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// APIKeyAuthenticator authenticates using API keys.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{keys: make(map[string]APIKey, len(keys))}
	for _, k := range keys {
		a.keys[k.Key] = k
	}
	return a
}

// Authenticate validates the presented token as an API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*User, error) {
	token := CredentialsFrom(ctx).Token
	if token == "" {
		return nil, ErrNoCredentials
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var matched *APIKey
	for k, v := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			matched = &v
			break
		}
	}
	if matched == nil {
		return nil, fmt.Errorf("%w: unknown API key", ErrInvalidCredentials)
	}

	return &User{
		Name:     matched.Name,
		Roles:    matched.Roles,
		AuthType: "apikey",
	}, nil
}

// AddKey adds an API key at runtime.
func (a *APIKeyAuthenticator) AddKey(key APIKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key.Key] = key
}

// RemoveKey removes an API key.
func (a *APIKeyAuthenticator) RemoveKey(keyValue string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, keyValue)
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
