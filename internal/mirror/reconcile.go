package mirror

import (
	"slices"
	"strings"
)

// Reconcile compares two snapshots. A path on both sides is reloaded when both
// carry timestamps and the remote one is strictly older, or when the local
// side is an empty directory and the remote side a file. Equal times, or an
// empty directory marker on the remote side, mean the path is in sync. Paths
// only present locally are uploaded and paths only present remotely deleted.
func Reconcile(local, remote Snapshot) *Plan {
	localKeys := local.Keys()
	remoteKeys := remote.Keys()
	common := localKeys.Intersect(remoteKeys)

	plan := &Plan{}

	for _, key := range common.ToSlice() {
		if stale(local[key].Stamp, remote[key].Stamp) {
			plan.Reloads = append(plan.Reloads, Action{Op: OpReload, Path: key})
		}
	}

	for _, key := range localKeys.Difference(common).ToSlice() {
		plan.Uploads = append(plan.Uploads, Action{Op: OpUpload, Path: key})
	}

	for _, key := range remoteKeys.Difference(common).ToSlice() {
		plan.Deletes = append(plan.Deletes, Action{Op: OpDelete, Path: key})
	}

	sortActions(plan.Reloads)
	sortActions(plan.Uploads)
	sortActions(plan.Deletes)

	return plan
}

func stale(local, remote Stamp) bool {
	if local.IsEmptyDir() {
		return !remote.IsEmptyDir()
	}
	return remote.Before(local)
}

func sortActions(actions []Action) {
	slices.SortFunc(actions, func(a, b Action) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})
}
