// Package auth authenticates gateway clients. HTTP middleware extracts the
// presented credentials into the request context; authenticators validate
// them and produce a User.
package auth

import (
	"context"
	"errors"
	"slices"
)

var (
	// ErrNoCredentials means the request presented nothing this
	// authenticator understands.
	ErrNoCredentials = errors.New("no credentials")

	// ErrInvalidCredentials means credentials were presented but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator validates the credentials stored in ctx.
type Authenticator interface {
	Authenticate(ctx context.Context) (*User, error)
}

// contextKey is a private type for context keys.
type contextKey int

const (
	userContextKey contextKey = iota
	credentialsContextKey
)

// User is an authenticated principal.
type User struct {
	Name     string   `json:"name"`
	Roles    []string `json:"roles,omitempty"`
	AuthType string   `json:"auth_type"` // "apikey", "jwt", "basic", "anonymous"
}

// HasRole checks if the user has a specific role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Credentials are what a request presented.
type Credentials struct {
	// Token is a bearer token or API key.
	Token string

	Username string
	Password string
}

// WithUser adds user to the context.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(ctx context.Context) *User {
	if u, ok := ctx.Value(userContextKey).(*User); ok {
		return u
	}
	return nil
}

// UserName returns the authenticated user's name, or "".
func UserName(ctx context.Context) string {
	if u := UserFrom(ctx); u != nil {
		return u.Name
	}
	return ""
}

// WithCredentials adds credentials to the context.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsContextKey, c)
}

// CredentialsFrom returns the credentials in ctx.
func CredentialsFrom(ctx context.Context) Credentials {
	c, _ := ctx.Value(credentialsContextKey).(Credentials)
	return c
}
