// Package session persists the logged-in administrator between runs.
// The identity is stored in ~/.config/licdesk/session.toml.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	toml "github.com/pelletier/go-toml/v2"
)

const defaultSessionPath = "~/.config/licdesk/session.toml"

// ExpiredMessage is shown when a stored or server-side session has lapsed.
const ExpiredMessage = "Session expired. Please login again."

var (
	ErrNoSession = errors.New("not logged in")
	ErrExpired   = errors.New("session expired")
)

// Identity is the administrator a session belongs to.
type Identity struct {
	AdminID    string    `toml:"admin_id"`
	Username   string    `toml:"username"`
	Token      string    `toml:"token,omitempty"`
	LoggedInAt time.Time `toml:"logged_in_at"`
}

func (i Identity) valid() bool {
	return strings.TrimSpace(i.AdminID) != ""
}

// Store is the current-session provider. It caches the file contents and
// is safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	loaded  bool
	current Identity
}

// NewStore returns a Store backed by path; blank means ~/.config/licdesk/session.toml.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Get returns the current identity. It reports false when nobody is logged
// in or the session token has expired.
func (s *Store) Get() (Identity, bool) {
	id, err := s.Status()
	return id, err == nil
}

// Status is Get with the reason for a missing session.
func (s *Store) Status() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.current = s.readLocked()
		s.loaded = true
	}
	if !s.current.valid() {
		return Identity{}, ErrNoSession
	}
	if exp, ok := TokenExpiry(s.current.Token); ok && !s.now().Before(exp) {
		return Identity{}, ErrExpired
	}
	return s.current, nil
}

// Token returns the bearer token of the current session, or "".
func (s *Store) Token() string {
	id, ok := s.Get()
	if !ok {
		return ""
	}
	return id.Token
}

// Set stores id as the current session and writes it to disk.
func (s *Store) Set(id Identity) error {
	if !id.valid() {
		return fmt.Errorf("admin id required")
	}
	if id.LoggedInAt.IsZero() {
		id.LoggedInAt = s.now().UTC().Truncate(time.Second)
	}
	resolved, err := resolvePath(s.path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	bytes, err := toml.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(resolved, bytes, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	s.mu.Lock()
	s.current = id
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Clear forgets the session and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = Identity{}
	s.loaded = true
	s.mu.Unlock()

	resolved, err := resolvePath(s.path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *Store) readLocked() Identity {
	resolved, err := resolvePath(s.path)
	if err != nil {
		return Identity{}
	}
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Identity{}
	}
	var id Identity
	if err := toml.Unmarshal(bytes, &id); err != nil {
		return Identity{}
	}
	return id
}

// TokenExpiry returns the exp claim of a JWT. Opaque tokens and tokens
// without exp report false. The signature is not checked; the server does
// that.
func TokenExpiry(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultSessionPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
