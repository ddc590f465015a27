package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormPath(t *testing.T) {
	tests := []struct {
		input string
		want  PathKey
	}{
		{"a.txt", "a.txt"},
		{"./a.txt", "a.txt"},
		{"/a/b/", "a/b"},
		{"a\\b\\c.txt", "a/b/c.txt"},
		{"a/./b/../c", "a/c"},
		{"", ""},
		{"/", ""},
		{"../escape", "escape"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormPath(tt.input))
		})
	}
}

func TestPathKeyHelpers(t *testing.T) {
	key := PathKey("a/b/c.txt")

	assert.Equal(t, PathKey("a/b"), key.Parent())
	assert.Equal(t, PathKey(""), PathKey("top.txt").Parent())
	assert.Equal(t, []PathKey{"a", "a/b", "a/b/c.txt"}, key.Chain())
	assert.Nil(t, PathKey("").Chain())
	assert.Equal(t, PathKey("x"), PathKey("").Join("x"))
	assert.Equal(t, PathKey("a/b/x"), PathKey("a/b").Join("x"))
}

func TestStamp(t *testing.T) {
	early := Timestamp(t1)
	late := Timestamp(t2)
	zero := Timestamp(time.Time{})

	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.False(t, early.Before(early))

	assert.False(t, EmptyDir.Before(late))
	assert.False(t, late.Before(EmptyDir))
	assert.False(t, EmptyDir.Before(EmptyDir))

	// a zero time is a real timestamp, not the marker
	assert.False(t, zero.IsEmptyDir())
	assert.True(t, zero.Before(early))
	_, ok := zero.Time()
	assert.True(t, ok)

	_, ok = EmptyDir.Time()
	assert.False(t, ok)

	local := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	got, _ := Timestamp(local).Time()
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}

func TestSnapshotKeys(t *testing.T) {
	snap := snapshotOf(file("b", t1), file("a", t1), emptyDir("c"))

	assert.Equal(t, []PathKey{"a", "b", "c"}, snap.SortedKeys())
	assert.True(t, snap.Keys().Contains("a", "b", "c"))
	assert.Equal(t, 3, snap.Keys().Cardinality())
}

func TestRemoteRoot(t *testing.T) {
	root := NewRemoteRoot("backup")

	assert.Equal(t, "disk:/backup", root.Path())
	assert.Equal(t, "disk:/backup/a/b.txt", root.Join("a/b.txt"))
	assert.Equal(t, "disk:/backup", root.Join(""))
	assert.Equal(t, root, NewRemoteRoot("/backup/"))

	tests := []struct {
		remote string
		want   PathKey
		ok     bool
	}{
		{"disk:/backup/a/b.txt", "a/b.txt", true},
		{"/backup/a", "a", true},
		{"disk:/backup", "", false},
		{"disk:/backup2/a", "", false},
		{"disk:/other/a", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			got, ok := root.Rel(tt.remote)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan(t *testing.T) {
	plan := &Plan{}
	assert.False(t, plan.HasChanges())

	plan.Uploads = []Action{{Op: OpUpload, Path: "a"}}
	plan.Deletes = []Action{{Op: OpDelete, Path: "b"}}
	assert.True(t, plan.HasChanges())
	assert.Equal(t, 2, plan.Len())
	assert.Equal(t, "delete b", plan.Deletes[0].String())
}
