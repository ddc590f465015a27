package mirror

import (
	"strings"
)

const remoteScheme = "disk:"

// RemoteRoot maps path keys to remote paths under the sync root and back.
type RemoteRoot struct {
	dir string
}

// NewRemoteRoot builds the root for a directory name such as "backup".
// Leading and trailing separators are ignored.
func NewRemoteRoot(dir string) RemoteRoot {
	return RemoteRoot{dir: string(NormPath(strings.TrimPrefix(dir, remoteScheme)))}
}

// Path is the remote path of the sync root, e.g. "disk:/backup".
func (r RemoteRoot) Path() string {
	return remoteScheme + "/" + r.dir
}

// Join returns the remote path of key. The root key maps to Path.
func (r RemoteRoot) Join(key PathKey) string {
	if key.IsRoot() {
		return r.Path()
	}
	return r.Path() + "/" + string(key)
}

// Rel converts a remote path into a key. It reports false for the root itself
// and for paths outside the root.
func (r RemoteRoot) Rel(remotePath string) (PathKey, bool) {
	p := string(NormPath(strings.TrimPrefix(remotePath, remoteScheme)))

	rel, ok := strings.CutPrefix(p, r.dir+"/")
	if !ok || rel == "" {
		return "", false
	}
	return PathKey(rel), true
}
