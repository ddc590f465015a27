package mirror

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// LocalScanner builds a snapshot of the local tree.
type LocalScanner struct {
	fs     afero.Fs
	root   string
	ignore *IgnoreList
	logger *slog.Logger
}

func NewLocalScanner(fs afero.Fs, root string, ignore *IgnoreList, logger *slog.Logger) *LocalScanner {
	return &LocalScanner{fs: fs, root: root, ignore: ignore, logger: logger}
}

// Scan records every regular file with its modification time and every empty
// directory with the EmptyDir marker. Any read failure aborts the scan with
// an error wrapping ErrLocalScan.
func (s *LocalScanner) Scan() (Snapshot, error) {
	info, err := s.fs.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalScan, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLocalScan, s.root)
	}

	snap := make(Snapshot)
	if err := s.walk(s.root, "", snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *LocalScanner) walk(dir string, rel PathKey, snap Snapshot) error {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return fmt.Errorf("%w: read dir %s: %w", ErrLocalScan, dir, err)
	}

	if len(entries) == 0 {
		if !rel.IsRoot() {
			snap.Add(rel, EmptyDir)
		}
		return nil
	}

	for _, entry := range entries {
		key := rel.Join(entry.Name())
		mode := entry.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			s.logger.Debug("mirror skip", "path", key, "reason", "symlink")

		case entry.IsDir():
			if s.ignore.ShouldIgnore(key, true) {
				s.logger.Debug("mirror skip", "path", key, "reason", "ignored")
				continue
			}
			if err := s.walk(filepath.Join(dir, entry.Name()), key, snap); err != nil {
				return err
			}

		case mode.IsRegular():
			if s.ignore.ShouldIgnore(key, false) {
				s.logger.Debug("mirror skip", "path", key, "reason", "ignored")
				continue
			}
			// the remote reports whole seconds
			snap.Add(key, Timestamp(entry.ModTime().Truncate(time.Second)))

		default:
			s.logger.Debug("mirror skip", "path", key, "reason", "not a regular file", "mode", mode.String())
		}
	}

	return nil
}
