package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/diskmirror/diskmirror/internal/diskapi"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

// Mutator applies plan actions to the remote tree.
type Mutator struct {
	client       RemoteClient
	fs           afero.Fs
	localRoot    string
	root         RemoteRoot
	clock        clockwork.Clock
	pollInterval time.Duration
	permanently  bool
	logger       *slog.Logger
}

type MutatorConfig struct {
	LocalRoot          string
	Root               RemoteRoot
	DeletePollInterval time.Duration
	DeletePermanently  bool
}

func NewMutator(client RemoteClient, fs afero.Fs, clock clockwork.Clock, cfg MutatorConfig, logger *slog.Logger) *Mutator {
	return &Mutator{
		client:       client,
		fs:           fs,
		localRoot:    cfg.LocalRoot,
		root:         cfg.Root,
		clock:        clock,
		pollInterval: cfg.DeletePollInterval,
		permanently:  cfg.DeletePermanently,
		logger:       logger,
	}
}

// EnsureRoot creates the sync root if it does not exist yet.
func (m *Mutator) EnsureRoot(ctx context.Context) error {
	status, err := m.client.CreateDir(ctx, m.root.Path())
	if err != nil {
		return fmt.Errorf("ensure root %s: %w", m.root.Path(), err)
	}
	if status == diskapi.DirCreated {
		m.logger.Info("mirror", "op", "mkdir", "path", m.root.Path())
	}
	return nil
}

// CreateDirs creates target and each of its ancestors under the sync root,
// outermost first. A failed component is logged and the rest are still
// attempted. It returns the number of components that failed.
func (m *Mutator) CreateDirs(ctx context.Context, target PathKey) int {
	failed := 0
	for _, dir := range target.Chain() {
		status, err := m.client.CreateDir(ctx, m.root.Join(dir))
		if err != nil {
			m.logger.Error("mirror", "op", "mkdir", "path", dir, "error", err)
			failed++
			continue
		}
		if status == diskapi.DirCreated {
			m.logger.Info("mirror", "op", "mkdir", "path", dir)
		}
	}
	return failed
}

// Upload sends the local file at key, or recreates the directory at key.
func (m *Mutator) Upload(ctx context.Context, key PathKey) error {
	if err := m.EnsureRoot(ctx); err != nil {
		return err
	}

	localPath := filepath.Join(m.localRoot, filepath.FromSlash(string(key)))
	info, err := m.fs.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	if info.IsDir() {
		if failed := m.CreateDirs(ctx, key); failed > 0 {
			return fmt.Errorf("%w: %d of %d components", ErrCreateDir, failed, len(key.Chain()))
		}
		return nil
	}

	if parent := key.Parent(); !parent.IsRoot() {
		m.CreateDirs(ctx, parent)
	}

	link, err := m.client.UploadLink(ctx, m.root.Join(key), true)
	if err != nil {
		return err
	}

	file, err := m.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return fmt.Errorf("detect content type %s: %w", localPath, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", localPath, err)
	}

	if err := m.client.PutFile(ctx, link.Href, file, mtype.String()); err != nil {
		return err
	}

	m.logger.Info("mirror", "op", "upload", "path", key, "size", humanize.Bytes(uint64(info.Size())), "type", mtype.String())
	return nil
}

// Delete removes key from the remote. A path that is already gone counts as
// deleted. An asynchronous delete is polled until the server reports a final
// status or ctx is cancelled.
func (m *Mutator) Delete(ctx context.Context, key PathKey) bool {
	res, err := m.client.Delete(ctx, m.root.Join(key), m.permanently)
	if err != nil {
		m.logger.Error("mirror", "op", "delete", "path", key, "error", err)
		return false
	}

	switch res.Status {
	case diskapi.DeleteDone:
		m.logger.Info("mirror", "op", "delete", "path", key)
		return true
	case diskapi.DeleteNotFound:
		m.logger.Debug("mirror", "op", "delete", "path", key, "status", res.Status)
		return true
	case diskapi.DeletePending:
		return m.awaitDelete(ctx, key, res.Operation.Href)
	}

	m.logger.Error("mirror", "op", "delete", "path", key, "status", res.Status)
	return false
}

func (m *Mutator) awaitDelete(ctx context.Context, key PathKey, href string) bool {
	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			m.logger.Warn("mirror", "op", "delete", "path", key, "error", ctx.Err())
			return false
		case <-m.clock.After(m.pollInterval):
		}

		status, err := m.client.OperationStatus(ctx, href)
		if err != nil {
			m.logger.Error("mirror", "op", "delete", "path", key, "error", err)
			return false
		}

		switch status {
		case diskapi.OperationSuccess:
			m.logger.Info("mirror", "op", "delete", "path", key, "polls", polls)
			return true
		case diskapi.OperationFailed:
			m.logger.Error("mirror", "op", "delete", "path", key, "status", status, "polls", polls)
			return false
		default:
			m.logger.Info("mirror", "op", "delete", "path", key, "status", status, "polls", polls)
		}
	}
}

// Reload replaces the remote copy of key. The two steps are not atomic; the
// upload overwrites, so it runs even when the delete failed.
func (m *Mutator) Reload(ctx context.Context, key PathKey) error {
	if !m.Delete(ctx, key) {
		m.logger.Warn("mirror", "op", "reload", "path", key, "error", "delete failed, overwriting")
	}
	return m.Upload(ctx, key)
}
