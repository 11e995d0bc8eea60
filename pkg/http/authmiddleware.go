// Package http provides HTTP middleware for the SQL gateway.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/txn2/sqlgate/pkg/auth"
)

// ExtractCredentials reads a Bearer token, an X-API-Key header or HTTP Basic
// credentials from the request and stores them in the request context.
func ExtractCredentials(r *http.Request) *http.Request {
	var c auth.Credentials

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		c.Token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if c.Token == "" {
		c.Token = r.Header.Get("X-API-Key")
	}
	if user, pass, ok := r.BasicAuth(); ok {
		c.Username, c.Password = user, pass
	}

	if c == (auth.Credentials{}) {
		return r
	}
	return r.WithContext(auth.WithCredentials(r.Context(), c))
}

// Authenticate returns middleware that authenticates every request and stores
// the resulting user in the context. Failures get a 401 with a
// WWW-Authenticate challenge.
func Authenticate(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = ExtractCredentials(r)

			user, err := a.Authenticate(r.Context())
			if err != nil || user == nil {
				if err != nil && !errors.Is(err, auth.ErrNoCredentials) {
					slog.Debug("authentication rejected", "path", r.URL.Path, "error", err)
				}
				w.Header().Set("WWW-Authenticate", `Bearer, Basic realm="sqlgate"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// AuthenticatedUser resolves the request's user from the authentication
// context. It returns "" for anonymous requests so protocol headers apply.
func AuthenticatedUser(r *http.Request) string {
	u := auth.UserFrom(r.Context())
	if u == nil || u.AuthType == "anonymous" {
		return ""
	}
	return u.Name
}
