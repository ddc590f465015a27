package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceSetup_CreatesLogDir(t *testing.T) {
	root := t.TempDir()
	logs := filepath.Join(root, "logs", "nested")

	w, err := NewWorkspace(root, logs)
	require.NoError(t, err)

	require.NoError(t, w.Setup())
	t.Cleanup(func() { _ = w.Unlock() })

	assert.DirExists(t, logs)
	assert.FileExists(t, w.LockPath())
	assert.Equal(t, filepath.Join(logs, "diskmirror.lock"), w.LockPath())
}

func TestWorkspaceSetup_MissingLocalDir(t *testing.T) {
	root := t.TempDir()

	w, err := NewWorkspace(filepath.Join(root, "missing"), filepath.Join(root, "logs"))
	require.NoError(t, err)

	assert.Error(t, w.Setup())
	assert.NoDirExists(t, filepath.Join(root, "logs"))
}

func TestWorkspaceLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()
	logs := filepath.Join(root, "logs")

	w1, err := NewWorkspace(root, logs)
	require.NoError(t, err)
	w2, err := NewWorkspace(root, logs)
	require.NoError(t, err)

	require.NoError(t, w1.Lock())

	err = w2.Lock()
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// w2 never held the lock, so its unlock is a no-op
	require.NoError(t, w2.Unlock())
	assert.FileExists(t, w1.LockPath())

	require.NoError(t, w1.Unlock())
	_, statErr := os.Stat(w1.LockPath())
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, w2.Lock())
	t.Cleanup(func() { _ = w2.Unlock() })
}

func TestNewWorkspace_EmptyPath(t *testing.T) {
	_, err := NewWorkspace("", t.TempDir())
	assert.Error(t, err)
}
