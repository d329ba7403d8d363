package reconcile

import (
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Direction limits which side a sync may change.
type Direction string

const (
	// DirectionBoth uploads local-only files and downloads remote-only files.
	DirectionBoth Direction = "both"
	// DirectionPush makes the site mirror the local directory.
	DirectionPush Direction = "push"
	// DirectionPull makes the local directory mirror the site.
	DirectionPull Direction = "pull"
)

// ConflictPolicy decides which side wins when a file differs on both sides.
type ConflictPolicy string

const (
	// PolicyNewer keeps the most recently modified copy. Ties go to the remote.
	PolicyNewer  ConflictPolicy = "newer"
	PolicyLocal  ConflictPolicy = "local"
	PolicyRemote ConflictPolicy = "remote"
)

// ParseDirection converts a config or flag value into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionBoth, DirectionPush, DirectionPull:
		return d, nil
	case "":
		return DirectionBoth, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want both, push or pull)", s)
	}
}

// ParseConflictPolicy converts a config or flag value into a ConflictPolicy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case PolicyNewer, PolicyLocal, PolicyRemote:
		return p, nil
	case "":
		return PolicyNewer, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want newer, local or remote)", s)
	}
}

// Action is what sync does to one file.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionDeleteRemote Action = "delete-remote"
	ActionDownload     Action = "download"
	ActionDeleteLocal  Action = "delete-local"
)

// LocalFile is one file found by a Scanner. Path is root-relative with forward slashes.
type LocalFile struct {
	Path    string
	Size    int64
	Hash    string
	ModTime time.Time
}

// Conflict records a file that differed on both sides and how it was settled.
type Conflict struct {
	Path          string
	LocalModTime  time.Time
	RemoteUpdated time.Time
	Resolution    Action
}

// Plan is the set of operations that converges both sides.
type Plan struct {
	Upload       mapset.Set[string]
	DeleteRemote mapset.Set[string]
	Download     mapset.Set[string]
	DeleteLocal  mapset.Set[string]
	Unchanged    mapset.Set[string]
	Conflicts    []Conflict
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{
		Upload:       mapset.NewSet[string](),
		DeleteRemote: mapset.NewSet[string](),
		Download:     mapset.NewSet[string](),
		DeleteLocal:  mapset.NewSet[string](),
		Unchanged:    mapset.NewSet[string](),
	}
}

// Len returns the number of file operations in the plan.
func (p *Plan) Len() int {
	return p.Upload.Cardinality() + p.DeleteRemote.Cardinality() +
		p.Download.Cardinality() + p.DeleteLocal.Cardinality()
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

func sorted(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}

// Outcome is the result of one file operation.
type Outcome struct {
	Path   string
	Action Action
	Err    error
}

// Result reports what a sync did, file by file.
type Result struct {
	Plan     *Plan
	DryRun   bool
	Outcomes []Outcome
}

// Failed returns the outcomes that did not succeed.
func (r *Result) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Succeeded returns the number of operations that went through.
func (r *Result) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Err summarizes failed operations, wrapping the first failure.
func (r *Result) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	first := failed[0]
	return fmt.Errorf("%d of %d operation(s) failed, first %s %s: %w",
		len(failed), len(r.Outcomes), first.Action, first.Path, first.Err)
}
