// Package mirror keeps a remote directory tree identical to a local one.
//
// Each cycle scans both sides into snapshots keyed by relative path,
// reconciles them into a plan of deletes, reloads and uploads, and drives the
// remote API until the remote matches. Nothing is persisted between cycles.
package mirror

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	// ErrLocalScan wraps any failure to read the local tree. It is fatal for the sync loop.
	ErrLocalScan = errors.New("local scan failed")
	// ErrCreateDir is returned by an upload whose directory chain could not be created.
	ErrCreateDir = errors.New("failed to create remote directory")
)

// PathKey is a path relative to the sync root using "/" separators.
// The root itself is the empty key and is never stored in a snapshot.
type PathKey string

// NormPath converts any separator to "/" and strips leading "./" and "/",
// trailing "/" and "." or ".." segments.
func NormPath(p string) PathKey {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return PathKey(strings.TrimPrefix(p, "/"))
}

func (k PathKey) String() string {
	return string(k)
}

func (k PathKey) IsRoot() bool {
	return k == ""
}

func (k PathKey) Join(name string) PathKey {
	if k.IsRoot() {
		return NormPath(name)
	}
	return NormPath(string(k) + "/" + name)
}

// Parent returns the containing directory key, the root for top-level keys.
func (k PathKey) Parent() PathKey {
	dir := path.Dir(string(k))
	if dir == "." || dir == "/" {
		return ""
	}
	return PathKey(dir)
}

// Chain returns every prefix of k from the top-level component down to k
// itself: "a/b/c" gives "a", "a/b", "a/b/c".
func (k PathKey) Chain() []PathKey {
	if k.IsRoot() {
		return nil
	}
	parts := strings.Split(string(k), "/")
	chain := make([]PathKey, 0, len(parts))
	for i := range parts {
		chain = append(chain, PathKey(strings.Join(parts[:i+1], "/")))
	}
	return chain
}

// ===================================================================================================

// Stamp is either a modification time or the empty directory marker.
// The marker carries no time and never compares as older or newer.
type Stamp struct {
	t     time.Time
	empty bool
}

var EmptyDir = Stamp{empty: true}

func Timestamp(t time.Time) Stamp {
	return Stamp{t: t.UTC()}
}

func (s Stamp) IsEmptyDir() bool {
	return s.empty
}

func (s Stamp) Time() (time.Time, bool) {
	if s.empty {
		return time.Time{}, false
	}
	return s.t, true
}

// Before reports whether both stamps are timestamps and s is strictly earlier.
func (s Stamp) Before(other Stamp) bool {
	if s.empty || other.empty {
		return false
	}
	return s.t.Before(other.t)
}

func (s Stamp) String() string {
	if s.empty {
		return "<empty dir>"
	}
	return s.t.Format(time.RFC3339)
}

// ===================================================================================================

type Entry struct {
	Path  PathKey
	Stamp Stamp
}

// Snapshot is the state of one side of the mirror at scan time.
type Snapshot map[PathKey]Entry

func (s Snapshot) Add(key PathKey, stamp Stamp) {
	s[key] = Entry{Path: key, Stamp: stamp}
}

func (s Snapshot) Keys() mapset.Set[PathKey] {
	keys := mapset.NewThreadUnsafeSet[PathKey]()
	for key := range s {
		keys.Add(key)
	}
	return keys
}

func (s Snapshot) SortedKeys() []PathKey {
	keys := make([]PathKey, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// ===================================================================================================

type Op int

const (
	OpUpload Op = iota
	OpReload
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpUpload:
		return "upload"
	case OpReload:
		return "reload"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

type Action struct {
	Op   Op
	Path PathKey
}

func (a Action) String() string {
	return a.Op.String() + " " + a.Path.String()
}

// Plan is the outcome of one reconciliation. Every list is sorted by path,
// so a directory always precedes its descendants.
type Plan struct {
	Reloads []Action
	Uploads []Action
	Deletes []Action
}

func (p *Plan) HasChanges() bool {
	return p.Len() > 0
}

func (p *Plan) Len() int {
	return len(p.Reloads) + len(p.Uploads) + len(p.Deletes)
}
