package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionPersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	sm := NewSessionManager(path)
	require.False(t, sm.IsLoggedIn())
	require.Empty(t, sm.Token())

	require.NoError(t, sm.SetSession("tok-123"))
	require.True(t, sm.IsLoggedIn())
	require.Equal(t, "tok-123", sm.Token())

	// A fresh manager on the same path sees the stored session.
	restarted := NewSessionManager(path)
	require.True(t, restarted.IsLoggedIn())
	require.Equal(t, "tok-123", restarted.Token())
}

func TestClearSessionDropsBothFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	sm := NewSessionManager(path)
	require.NoError(t, sm.SetSession("tok-123"))
	require.NoError(t, sm.ClearSession())

	require.False(t, sm.IsLoggedIn())
	require.Empty(t, sm.Token())

	restarted := NewSessionManager(path)
	require.False(t, restarted.IsLoggedIn())
	require.Empty(t, restarted.Token())
}

func TestCorruptSessionFileStartsLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	sm := NewSessionManager(path)
	require.False(t, sm.IsLoggedIn())
}

func TestTokenWithoutFlagIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"loggedIn":false,"token":"stale"}`), 0600))

	sm := NewSessionManager(path)
	require.False(t, sm.IsLoggedIn())
	require.Empty(t, sm.Token())
}

func TestOnChangeFires(t *testing.T) {
	sm := NewSessionManager(filepath.Join(t.TempDir(), "session.json"))

	var calls []bool
	sm.OnChange(func(loggedIn bool) { calls = append(calls, loggedIn) })

	require.NoError(t, sm.SetSession("tok"))
	require.NoError(t, sm.ClearSession())
	require.Equal(t, []bool{true, false}, calls)
}
