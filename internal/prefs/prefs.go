// Package prefs persists the console choices an operator makes while
// working: theme, list status filter and page size. They live in
// ~/.config/licdesk/prefs.toml unless the session file points elsewhere.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds per-user console preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// StatusFilter is the list filter restored at startup: All, Active or Inactive.
	StatusFilter string `toml:"status_filter"`
	// PageSize overrides the configured page size when positive.
	PageSize int `toml:"page_size,omitempty"`
}

const (
	defaultPrefsPath    = "~/.config/licdesk/prefs.toml"
	defaultTheme        = "Nightfox"
	defaultStatusFilter = "All"
)

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, StatusFilter: defaultStatusFilter}
}

// Load reads preferences from path. A missing file is not an error. An
// unreadable or corrupt file yields Defaults together with the error, so
// callers can log it and carry on.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults(), err
	}

	data, err := os.ReadFile(resolved)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("read prefs: %w", err)
	}

	var stored Prefs
	if err := toml.Unmarshal(data, &stored); err != nil {
		return Defaults(), fmt.Errorf("parse prefs %s: %w", resolved, err)
	}
	return stored.normalized(), nil
}

// normalized fills blanks with defaults and canonicalises the filter name.
func (p Prefs) normalized() Prefs {
	out := p
	if strings.TrimSpace(out.Theme) == "" {
		out.Theme = defaultTheme
	}
	switch strings.ToLower(strings.TrimSpace(out.StatusFilter)) {
	case "active":
		out.StatusFilter = "Active"
	case "inactive":
		out.StatusFilter = "Inactive"
	default:
		out.StatusFilter = defaultStatusFilter
	}
	out.PageSize = max(out.PageSize, 0)
	return out
}

// Save writes preferences to path through a temp file and rename, so a crash
// mid-write never leaves a truncated file behind.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		p = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(p, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve prefs path: %w", err)
		}
		p = filepath.Join(home, rest)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve prefs path: %w", err)
	}
	return abs, nil
}
