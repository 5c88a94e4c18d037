// Package middleware provides HTTP middleware for the panel server.
//
// The panel itself makes no authorization decisions; the session
// middleware only identifies who is driving the panel so mutations can
// be audited, the way the embedding application's server would.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie the panel reads
const CookieName = "objperms_session"

// contextKey avoids collisions with other packages' context values
type contextKey string

const actorKey contextKey = "actor"

// SessionAuthenticator is middleware that validates signed session tokens
type SessionAuthenticator struct {
	secret []byte
}

// NewSessionAuthenticator creates a new session authenticator middleware
func NewSessionAuthenticator(secret string) *SessionAuthenticator {
	return &SessionAuthenticator{secret: []byte(secret)}
}

// GenerateSecret returns a new Base64-encoded 256 bit signing secret
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.Strict().EncodeToString(buf), nil
}

// Mint creates a signed session token for a username
func (s *SessionAuthenticator) Mint(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

// Middleware returns an HTTP middleware that validates session cookies
func (s *SessionAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Session missing"))
			return
		}

		token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Session invalid"))
			return
		}

		username, err := token.Claims.GetSubject()
		if err != nil || username == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Session has no subject"))
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Actor returns the authenticated username from the request context.
// Returns "-" when the request carried no session (middleware disabled).
func Actor(r *http.Request) string {
	if username, ok := r.Context().Value(actorKey).(string); ok && username != "" {
		return username
	}
	return "-"
}
