package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diskmirror/diskmirror/internal/utils"
	"github.com/gofrs/flock"
)

const lockFile = "diskmirror.lock"

var (
	ErrAlreadyRunning = errors.New("another diskmirror instance is using this log dir")
)

// Workspace is the on-disk footprint of one mirror process: the tree it
// mirrors and the directory holding its logs and lock file.
type Workspace struct {
	LocalDir string
	LogDir   string

	flock *flock.Flock
}

func NewWorkspace(localDir, logDir string) (*Workspace, error) {
	local, err := utils.ResolvePath(localDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", localDir, err)
	}

	logs, err := utils.ResolvePath(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", logDir, err)
	}

	return &Workspace{
		LocalDir: local,
		LogDir:   logs,
		flock:    flock.New(filepath.Join(logs, lockFile)),
	}, nil
}

// Setup creates the log directory and takes the single-instance lock.
func (w *Workspace) Setup() error {
	if !utils.DirExists(w.LocalDir) {
		return fmt.Errorf("local dir %s does not exist", w.LocalDir)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	return nil
}

func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.LogDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.LogDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// a process that never got the lock must not remove someone else's file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

func (w *Workspace) LockPath() string {
	return w.flock.Path()
}
