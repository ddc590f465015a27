package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/diskmirror/diskmirror/internal/diskapi"
)

// RemoteClient is the subset of the disk API the mirror drives.
type RemoteClient interface {
	List(ctx context.Context, path string, offset, limit int) (*diskapi.Resource, error)
	CreateDir(ctx context.Context, path string) (diskapi.DirStatus, error)
	UploadLink(ctx context.Context, path string, overwrite bool) (*diskapi.Link, error)
	PutFile(ctx context.Context, href string, body io.Reader, contentType string) error
	Delete(ctx context.Context, path string, permanently bool) (*diskapi.DeleteResult, error)
	OperationStatus(ctx context.Context, href string) (diskapi.OperationStatus, error)
}

// RemoteScanner builds a snapshot of the remote tree under the sync root.
type RemoteScanner struct {
	client   RemoteClient
	root     RemoteRoot
	pageSize int
	ignore   *IgnoreList
	logger   *slog.Logger
}

func NewRemoteScanner(client RemoteClient, root RemoteRoot, pageSize int, ignore *IgnoreList, logger *slog.Logger) *RemoteScanner {
	return &RemoteScanner{
		client:   client,
		root:     root,
		pageSize: pageSize,
		ignore:   ignore,
		logger:   logger,
	}
}

// Scan never fails. A missing directory contributes nothing; any other listing
// error is logged and that branch is left out of the snapshot.
func (s *RemoteScanner) Scan(ctx context.Context) Snapshot {
	snap := make(Snapshot)
	queue := []string{s.root.Path()}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return snap
		}

		dir := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		items, err := s.listAll(ctx, dir)
		if errors.Is(err, diskapi.ErrNotFound) {
			s.logger.Debug("mirror list", "path", dir, "status", "not found")
			continue
		} else if err != nil {
			s.logger.Error("mirror", "op", "list", "path", dir, "error", err)
			continue
		}

		if len(items) == 0 {
			if key, ok := s.root.Rel(dir); ok {
				snap.Add(key, EmptyDir)
			}
			continue
		}

		for _, item := range items {
			key, ok := s.root.Rel(item.Path)
			if !ok {
				s.logger.Warn("mirror skip", "path", item.Path, "reason", "outside sync root")
				continue
			}
			if s.ignore.ShouldIgnore(key, item.IsDir()) {
				continue
			}

			if item.IsDir() {
				queue = append(queue, item.Path)
				continue
			}

			modified, err := time.Parse(time.RFC3339, item.Modified)
			if err != nil {
				s.logger.Warn("mirror skip", "path", item.Path, "reason", "bad modified time", "error", err)
				continue
			}
			snap.Add(key, Timestamp(modified))
		}
	}

	return snap
}

// listAll reads every page of a directory listing.
func (s *RemoteScanner) listAll(ctx context.Context, dir string) ([]diskapi.Resource, error) {
	var items []diskapi.Resource
	offset := 0

	for {
		res, err := s.client.List(ctx, dir, offset, s.pageSize)
		if err != nil {
			return nil, err
		}
		if res.Embedded == nil {
			return items, nil
		}

		page := res.Embedded.Items
		items = append(items, page...)
		offset += len(page)

		if len(page) == 0 || offset >= res.Embedded.Total {
			return items, nil
		}
	}
}
