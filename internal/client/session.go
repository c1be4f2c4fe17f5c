package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// sessionState is what survives across client restarts, the terminal
// equivalent of browser-local storage.
type sessionState struct {
	LoggedIn bool   `json:"loggedIn"`
	Token    string `json:"token,omitempty"`
}

// SessionManager owns the client's authentication state: a logged-in flag
// and at most one bearer token, cleared together on logout. It performs no
// network calls.
type SessionManager struct {
	mu       sync.Mutex
	path     string
	state    sessionState
	onChange func(loggedIn bool)
}

// NewSessionManager loads any persisted session from path. A missing or
// unreadable file starts a logged-out session.
func NewSessionManager(path string) *SessionManager {
	sm := &SessionManager{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return sm
	}
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return sm
	}
	// Both fields stand or fall together.
	if st.LoggedIn && st.Token != "" {
		sm.state = st
	}
	return sm
}

// OnChange registers a callback fired whenever the logged-in state flips,
// so the view can refresh restricted sections.
func (sm *SessionManager) OnChange(fn func(loggedIn bool)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onChange = fn
}

// SetSession stores the token and marks the session logged in.
func (sm *SessionManager) SetSession(token string) error {
	sm.mu.Lock()
	sm.state = sessionState{LoggedIn: true, Token: token}
	err := sm.persistLocked()
	fn := sm.onChange
	sm.mu.Unlock()

	if fn != nil {
		fn(true)
	}
	return err
}

// ClearSession drops the token and flag together.
func (sm *SessionManager) ClearSession() error {
	sm.mu.Lock()
	sm.state = sessionState{}
	err := sm.persistLocked()
	fn := sm.onChange
	sm.mu.Unlock()

	if fn != nil {
		fn(false)
	}
	return err
}

// IsLoggedIn is a pure read of the flag.
func (sm *SessionManager) IsLoggedIn() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.LoggedIn
}

// Token returns the stored bearer token, or "" when logged out.
func (sm *SessionManager) Token() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state.Token
}

// Path returns the file backing this session.
func (sm *SessionManager) Path() string {
	return sm.path
}

func (sm *SessionManager) persistLocked() error {
	if sm.path == "" {
		return nil
	}
	if dir := filepath.Dir(sm.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session directory: %w", err)
		}
	}
	data, err := json.Marshal(sm.state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(sm.path, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
