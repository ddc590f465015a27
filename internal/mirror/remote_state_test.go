package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/diskmirror/diskmirror/internal/diskapi"
	"github.com/stretchr/testify/assert"
)

func TestRemoteScan(t *testing.T) {
	srv, client := newFakeRemote(t)
	srv.PutFile("/backup/a.txt", []byte("a"), t1)
	srv.PutFile("/backup/docs/b.md", []byte("b"), t2)
	srv.PutFile("/backup/docs/deep/c.bin", []byte("c"), t1)
	srv.MkdirAll("/backup/empty")
	srv.MkdirAll("/backup/nested/deeper")
	srv.PutFile("/elsewhere/x.txt", []byte("x"), t1)

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(t.Context())

	want := snapshotOf(
		file("a.txt", t1),
		file("docs/b.md", t2),
		file("docs/deep/c.bin", t1),
		emptyDir("empty"),
		emptyDir("nested/deeper"),
	)
	assertSnapshot(t, want, snap)
}

func TestRemoteScanPagination(t *testing.T) {
	srv, client := newFakeRemote(t)
	want := snapshotOf()
	for i := range 7 {
		name := fmt.Sprintf("f%02d.txt", i)
		srv.PutFile("/backup/"+name, []byte(name), t1)
		want.Add(PathKey(name), Timestamp(t1))
	}

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 3, nil, slog.Default()).Scan(t.Context())

	assertSnapshot(t, want, snap)
	assert.Equal(t, 3, srv.Calls("list"))
}

func TestRemoteScanEmptyRoot(t *testing.T) {
	srv, client := newFakeRemote(t)
	srv.MkdirAll("/backup")

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(t.Context())
	assert.Empty(t, snap)
}

func TestRemoteScanRootNotFound(t *testing.T) {
	_, client := newFakeRemote(t)

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(t.Context())
	assert.Empty(t, snap)
}

func TestRemoteScanSkipsFailedBranch(t *testing.T) {
	srv, client := newFakeRemote(t)
	srv.PutFile("/backup/a.txt", []byte("a"), t1)
	srv.PutFile("/backup/bad/x.txt", []byte("x"), t1)
	srv.PutFile("/backup/good/y.txt", []byte("y"), t1)
	srv.FailStatus["GET /backup/bad"] = http.StatusInternalServerError

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(t.Context())

	assert.Equal(t, []PathKey{"a.txt", "good/y.txt"}, snap.SortedKeys())
}

func TestRemoteScanIgnore(t *testing.T) {
	srv, client := newFakeRemote(t)
	srv.PutFile("/backup/a.txt", []byte("a"), t1)
	srv.PutFile("/backup/a.tmp", []byte("a"), t1)
	srv.PutFile("/backup/cache/x.bin", []byte("x"), t1)

	ignore := NewIgnoreList("*.tmp", "cache/")
	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, ignore, slog.Default()).Scan(t.Context())

	assert.Equal(t, []PathKey{"a.txt"}, snap.SortedKeys())
	for _, req := range srv.Requests() {
		assert.NotEqual(t, "list /backup/cache", req)
	}
}

func TestRemoteScanSkipsMalformedItems(t *testing.T) {
	stub := &listStub{
		pages: map[string]*diskapi.Resource{
			"disk:/backup": {
				Path: "disk:/backup",
				Type: diskapi.TypeDir,
				Embedded: &diskapi.ResourceList{
					Items: []diskapi.Resource{
						{Path: "disk:/backup/ok.txt", Type: diskapi.TypeFile, Modified: "2024-01-01T10:00:00+00:00"},
						{Path: "disk:/backup/zoned.txt", Type: diskapi.TypeFile, Modified: "2024-01-02T13:00:00+03:00"},
						{Path: "disk:/backup/bad-time.txt", Type: diskapi.TypeFile, Modified: "yesterday"},
						{Path: "disk:/other/outside.txt", Type: diskapi.TypeFile, Modified: "2024-01-01T10:00:00Z"},
						{Path: "disk:/backup/broken", Type: diskapi.TypeDir},
					},
					Total: 5,
				},
			},
		},
		errs: map[string]error{
			"disk:/backup/broken": errors.New("connection reset"),
		},
	}

	snap := NewRemoteScanner(stub, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(t.Context())

	assertSnapshot(t, snapshotOf(file("ok.txt", t1), file("zoned.txt", t2)), snap)
}

func TestRemoteScanStopsOnCancel(t *testing.T) {
	srv, client := newFakeRemote(t)
	srv.PutFile("/backup/a.txt", []byte("a"), t1)

	ctx, cancel := contextWithCancel(t)
	cancel()

	snap := NewRemoteScanner(client, NewRemoteRoot(testRemoteDir), 100, nil, slog.Default()).Scan(ctx)
	assert.Empty(t, snap)
	assert.Zero(t, srv.Calls("list"))
}
