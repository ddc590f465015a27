package mirror

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/diskmirror/diskmirror/internal/diskapi"
	"github.com/diskmirror/diskmirror/internal/diskapi/diskapitest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLocalDir  = "/data"
	testRemoteDir = "backup"
)

var (
	t1        = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2        = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	remoteNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newFakeRemote(t *testing.T) (*diskapitest.Server, *diskapi.Client) {
	t.Helper()

	srv := diskapitest.NewServer()
	srv.Now = func() time.Time { return remoteNow }
	t.Cleanup(srv.Close)

	client, err := diskapi.New(&diskapi.Config{BaseURL: srv.URL, Token: "test-token", RequestTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return srv, client
}

func writeLocal(t *testing.T, fs afero.Fs, rel, content string, mtime time.Time) {
	t.Helper()

	p := filepath.Join(testLocalDir, filepath.FromSlash(rel))
	require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(p, mtime, mtime))
}

func mkdirLocal(t *testing.T, fs afero.Fs, rel string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Join(testLocalDir, filepath.FromSlash(rel)), 0o755))
}

func snapshotOf(entries ...Entry) Snapshot {
	snap := make(Snapshot)
	for _, e := range entries {
		snap.Add(e.Path, e.Stamp)
	}
	return snap
}

func file(p string, t time.Time) Entry {
	return Entry{Path: PathKey(p), Stamp: Timestamp(t)}
}

func emptyDir(p string) Entry {
	return Entry{Path: PathKey(p), Stamp: EmptyDir}
}

// listStub answers List from a fixed table; every other call fails.
type listStub struct {
	pages map[string]*diskapi.Resource
	errs  map[string]error
}

var errStub = errors.New("not implemented by stub")

func (s *listStub) List(_ context.Context, path string, _, _ int) (*diskapi.Resource, error) {
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	if res, ok := s.pages[path]; ok {
		return res, nil
	}
	return nil, diskapi.ErrNotFound
}

func (s *listStub) CreateDir(context.Context, string) (diskapi.DirStatus, error) {
	return diskapi.DirCreated, errStub
}

func (s *listStub) UploadLink(context.Context, string, bool) (*diskapi.Link, error) {
	return nil, errStub
}

func (s *listStub) PutFile(context.Context, string, io.Reader, string) error {
	return errStub
}

func (s *listStub) Delete(context.Context, string, bool) (*diskapi.DeleteResult, error) {
	return nil, errStub
}

func (s *listStub) OperationStatus(context.Context, string) (diskapi.OperationStatus, error) {
	return "", errStub
}

func assertSnapshot(t *testing.T, want, got Snapshot) {
	t.Helper()

	if !assert.Equal(t, want.SortedKeys(), got.SortedKeys()) {
		return
	}
	for key, w := range want {
		g := got[key]
		assert.Equal(t, w.Path, g.Path, "path of %s", key)
		assert.Equal(t, w.Stamp.IsEmptyDir(), g.Stamp.IsEmptyDir(), "marker of %s", key)

		wt, _ := w.Stamp.Time()
		gt, _ := g.Stamp.Time()
		assert.True(t, wt.Equal(gt), "time of %s: want %s got %s", key, wt, gt)
	}
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	return ctx, cancel
}
