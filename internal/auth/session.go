// ABOUTME: Session state machine owning the bearer token and derived identity
// ABOUTME: Handles login/register/logout and token file persistence

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrValidation marks input rejected before any network call.
var ErrValidation = errors.New("validation failed")

// RegisterParams are the fields sent to the registration endpoint.
type RegisterParams struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// authAPI is the slice of the forum API the session needs. Both calls return
// the access token issued by the server.
type authAPI interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, p RegisterParams) (string, error)
}

// Session owns the bearer token and the identity derived from it. The two
// always change together under the lock: an observer never sees a token
// without its identity or vice versa. An empty token means Anonymous.
type Session struct {
	mu        sync.Mutex
	token     string
	identity  *Identity
	listeners []func(*Identity)

	api       authAPI
	tokenPath string
	logger    *slog.Logger
	now       func() time.Time
}

// NewSession creates an anonymous session. tokenPath is where the token is
// persisted across runs; pass "" to disable persistence (tests).
func NewSession(api authAPI, tokenPath string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:       api,
		tokenPath: tokenPath,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Identity returns the current identity, or nil when anonymous. The returned
// value is a copy; callers cannot mutate session state through it.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Authenticated reports whether the session holds a token.
func (s *Session) Authenticated() bool {
	return s.Identity() != nil
}

// Subscribe registers a callback invoked after every state transition with
// the new identity (nil when logged out).
func (s *Session) Subscribe(fn func(*Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Login authenticates against the forum and transitions to Authenticated on
// success. Failure leaves the session untouched and is never retried.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return s.adopt(token)
}

// Register creates an account and, like the original client, treats a
// successful registration as a login.
func (s *Session) Register(ctx context.Context, p RegisterParams) error {
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if p.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if p.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if ParseRole(string(p.Role)) == RoleUnknown {
		return fmt.Errorf("%w: role must be one of user/moderator/admin", ErrValidation)
	}

	token, err := s.api.Register(ctx, p)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	return s.adopt(token)
}

// SetToken assigns an already-known token (e.g. restored from storage). A
// token that fails to decode, or is already expired, is treated as a logout
// and the decode error is returned.
func (s *Session) SetToken(raw string) error {
	id, err := DecodeIdentity(raw)
	if err != nil {
		s.Logout()
		return err
	}
	if id.Expired(s.now()) {
		s.Logout()
		return fmt.Errorf("%w: token expired", ErrInvalidToken)
	}

	s.mu.Lock()
	s.token = raw
	s.identity = id
	listeners, snapshot := s.notifyLocked()
	s.mu.Unlock()

	s.persist(raw)
	fire(listeners, snapshot)
	return nil
}

// Logout transitions to Anonymous unconditionally. Calling it while already
// anonymous is a no-op.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.token == "" && s.identity == nil {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.identity = nil
	listeners, snapshot := s.notifyLocked()
	s.mu.Unlock()

	s.removeTokenFile()
	fire(listeners, snapshot)
}

// Restore loads a persisted token from the token file, if any. A missing
// file is not an error; an unreadable or undecodable token logs a warning
// and leaves the session anonymous.
func (s *Session) Restore() {
	if s.tokenPath == "" {
		return
	}
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading token file", "path", s.tokenPath, "error", err)
		}
		return
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return
	}
	if err := s.SetToken(raw); err != nil {
		s.logger.Warn("stored token rejected, staying anonymous", "error", err)
	}
}

// adopt installs a freshly-issued token. The server just minted it, so a
// decode failure here means the server and client disagree about the token
// format; surface that rather than half-authenticating.
func (s *Session) adopt(token string) error {
	if err := s.SetToken(token); err != nil {
		return fmt.Errorf("server issued an undecodable token: %w", err)
	}
	s.logger.Info("authenticated", "subject_id", s.Identity().SubjectID, "role", s.Identity().Role)
	return nil
}

// notifyLocked snapshots the listener list and current identity. Callbacks
// run after the lock is released so a listener may call back into Session.
func (s *Session) notifyLocked() ([]func(*Identity), *Identity) {
	listeners := make([]func(*Identity), len(s.listeners))
	copy(listeners, s.listeners)
	var snapshot *Identity
	if s.identity != nil {
		id := *s.identity
		snapshot = &id
	}
	return listeners, snapshot
}

func fire(listeners []func(*Identity), id *Identity) {
	for _, fn := range listeners {
		fn(id)
	}
}

func (s *Session) persist(token string) {
	if s.tokenPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		s.logger.Warn("creating token directory", "error", err)
		return
	}
	if err := os.WriteFile(s.tokenPath, []byte(token+"\n"), 0600); err != nil {
		s.logger.Warn("persisting token", "error", err)
	}
}

func (s *Session) removeTokenFile() {
	if s.tokenPath == "" {
		return
	}
	if err := os.Remove(s.tokenPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing token file", "error", err)
	}
}
