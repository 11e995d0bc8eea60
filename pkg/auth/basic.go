package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BasicUser is a username with a bcrypt password hash.
type BasicUser struct {
	Name         string   `yaml:"name"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

// BasicAuthenticator checks HTTP Basic credentials against bcrypt hashes.
type BasicAuthenticator struct {
	users map[string]BasicUser
}

// NewBasicAuthenticator creates a Basic authenticator.
func NewBasicAuthenticator(users []BasicUser) *BasicAuthenticator {
	m := make(map[string]BasicUser, len(users))
	for _, u := range users {
		m[u.Name] = u
	}
	return &BasicAuthenticator{users: m}
}

// HashPassword returns a bcrypt hash suitable for BasicUser.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// Authenticate validates the Basic username and password.
func (a *BasicAuthenticator) Authenticate(ctx context.Context) (*User, error) {
	c := CredentialsFrom(ctx)
	if c.Username == "" {
		return nil, ErrNoCredentials
	}
	u, ok := a.users[c.Username]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidCredentials, c.Username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return nil, fmt.Errorf("%w: bad password for %q", ErrInvalidCredentials, c.Username)
	}
	return &User{Name: u.Name, Roles: u.Roles, AuthType: "basic"}, nil
}

// Verify interface compliance.
var _ Authenticator = (*BasicAuthenticator)(nil)
