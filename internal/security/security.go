// internal/security/security.go
package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loungebackend/internal/config"
	"loungebackend/internal/logger"
)

const minPasswordLength = 4

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("session is invalid or expired")
)

// Credentials is the sign-in / sign-up form. Passwords are only checked for
// shape and are never stored.
type Credentials struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

// Validate checks the form. signUp additionally requires a matching
// confirmation.
func (c Credentials) Validate(signUp bool) error {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email is not valid", ErrInvalidCredentials)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}
	if len(c.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, minPasswordLength)
	}
	if signUp {
		if c.ConfirmPassword == "" {
			return fmt.Errorf("%w: confirm password is required", ErrInvalidCredentials)
		}
		if c.ConfirmPassword != c.Password {
			return fmt.Errorf("%w: passwords do not match", ErrInvalidCredentials)
		}
	}
	return nil
}

// Session is one signed-in operator.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions is the in-memory session table behind the sign-in gate.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, sessions: make(map[string]Session)}
}

// SignIn validates c and opens a session for its email.
func (s *Sessions) SignIn(c Credentials, signUp bool) (Session, error) {
	if err := c.Validate(signUp); err != nil {
		return Session{}, err
	}

	sess := Session{
		Token:     uuid.NewString(),
		Email:     strings.TrimSpace(c.Email),
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	logger.LogInfo("Session opened for %s", sess.Email)
	return sess, nil
}

// Lookup returns the live session for token.
func (s *Sessions) Lookup(token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrInvalidSession
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, ErrInvalidSession
	}
	return sess, nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (s *Sessions) SignOut(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CleanExpiredSessions drops every expired session and reports how many.
func (s *Sessions) CleanExpiredSessions(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// CORS adds CORS headers and handles OPTIONS requests globally.
func AddCORSHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := config.AllowedOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Token")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
