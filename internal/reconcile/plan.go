package reconcile

import (
	"strings"

	"github.com/neocities-go/neocities/internal/services/neocities"
)

// Options controls how Diff settles differences.
type Options struct {
	Direction Direction
	Policy    ConflictPolicy
}

// Diff compares a local snapshot against a remote listing. It performs no I/O.
// Remote directory entries are ignored; only files take part.
func Diff(local []LocalFile, remote []neocities.RemoteFile, opts Options) *Plan {
	if opts.Direction == "" {
		opts.Direction = DirectionBoth
	}
	if opts.Policy == "" {
		opts.Policy = PolicyNewer
	}

	plan := NewPlan()

	remoteByPath := make(map[string]neocities.RemoteFile, len(remote))
	for _, rf := range remote {
		if rf.IsDirectory {
			continue
		}
		remoteByPath[rf.Path] = rf
	}

	seen := make(map[string]bool, len(local))
	for _, lf := range local {
		seen[lf.Path] = true

		rf, ok := remoteByPath[lf.Path]
		if !ok {
			if opts.Direction == DirectionPull {
				plan.DeleteLocal.Add(lf.Path)
			} else {
				plan.Upload.Add(lf.Path)
			}
			continue
		}

		if sameContent(lf, rf) {
			plan.Unchanged.Add(lf.Path)
			continue
		}

		action := resolve(lf, rf, opts)
		if action == ActionUpload {
			plan.Upload.Add(lf.Path)
		} else {
			plan.Download.Add(lf.Path)
		}
		plan.Conflicts = append(plan.Conflicts, Conflict{
			Path:          lf.Path,
			LocalModTime:  lf.ModTime,
			RemoteUpdated: rf.UpdatedAt.Time,
			Resolution:    action,
		})
	}

	for p := range remoteByPath {
		if seen[p] {
			continue
		}
		if opts.Direction == DirectionPush {
			plan.DeleteRemote.Add(p)
		} else {
			plan.Download.Add(p)
		}
	}

	return plan
}

// sameContent compares hashes, falling back to sizes when the listing has no
// hash. With neither, the file is treated as changed.
func sameContent(lf LocalFile, rf neocities.RemoteFile) bool {
	if rf.SHA1Hash != "" {
		return strings.EqualFold(lf.Hash, rf.SHA1Hash)
	}
	if rf.Size != nil {
		return lf.Size == *rf.Size
	}
	return false
}

func resolve(lf LocalFile, rf neocities.RemoteFile, opts Options) Action {
	switch opts.Direction {
	case DirectionPush:
		return ActionUpload
	case DirectionPull:
		return ActionDownload
	}

	switch opts.Policy {
	case PolicyLocal:
		return ActionUpload
	case PolicyRemote:
		return ActionDownload
	default:
		if lf.ModTime.After(rf.UpdatedAt.Time) {
			return ActionUpload
		}
		return ActionDownload
	}
}
