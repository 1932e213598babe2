// Package credentials persists the CLI session between invocations. The
// session is stored as base64-wrapped JSON inside the workspace directory,
// and a missing or corrupt file simply reads as "not logged in".
package credentials

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"nexboard/internal/domain"
)

const sessionFile = "session"

// Session is the persisted login state.
type Session struct {
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the session's token lifetime has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Save writes the session into the workspace with owner-only permissions.
func Save(workspace string, s Session) error {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return os.WriteFile(filepath.Join(workspace, sessionFile), []byte(encoded), 0o600)
}

// Load reads the persisted session. ok is false when no usable session
// exists; a corrupt file is treated the same as a missing one.
func Load(workspace string) (Session, bool) {
	raw, err := os.ReadFile(filepath.Join(workspace, sessionFile))
	if err != nil {
		return Session{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(decoded, &s); err != nil {
		return Session{}, false
	}
	if s.Token == "" {
		return Session{}, false
	}
	return s, true
}

// Clear removes the persisted session. Clearing an absent session is fine.
func Clear(workspace string) error {
	err := os.Remove(filepath.Join(workspace, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
