package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Reconciler converges a local project directory and its site.
type Reconciler struct {
	client  neocities.ClientAPI
	fs      afero.Fs
	scanner *Scanner
	opts    Options
	logger  *logrus.Logger
}

// New creates a Reconciler. The client must be rooted at the scanner's root.
func New(client neocities.ClientAPI, fs afero.Fs, scanner *Scanner, opts Options, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		client:  client,
		fs:      fs,
		scanner: scanner,
		opts:    opts,
		logger:  logger,
	}
}

// Options returns the direction and conflict policy in use.
func (r *Reconciler) Options() Options {
	return r.opts
}

// Plan snapshots both sides and computes what a sync would do.
func (r *Reconciler) Plan(ctx context.Context) (*Plan, error) {
	listing, err := r.client.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list remote files: %w", err)
	}
	if err := listing.Err(); err != nil {
		return nil, fmt.Errorf("failed to list remote files: %w", err)
	}

	local, err := r.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.scanner.Root(), err)
	}

	plan := Diff(local, r.remoteFiles(listing.Files), r.opts)
	r.logger.WithFields(logrus.Fields{
		"upload":        plan.Upload.Cardinality(),
		"delete_remote": plan.DeleteRemote.Cardinality(),
		"download":      plan.Download.Cardinality(),
		"delete_local":  plan.DeleteLocal.Cardinality(),
		"unchanged":     plan.Unchanged.Cardinality(),
		"conflicts":     len(plan.Conflicts),
	}).Info("sync plan")

	for _, c := range plan.Conflicts {
		r.logger.Debugf("conflict on %s (local %s, remote %s): %s",
			c.Path, c.LocalModTime.Format(time.RFC3339), c.RemoteUpdated.Format(time.RFC3339), c.Resolution)
	}

	return plan, nil
}

// remoteFiles drops remote entries the scanner would never report locally,
// so they are neither downloaded over project files nor deleted on push.
func (r *Reconciler) remoteFiles(files []neocities.RemoteFile) []neocities.RemoteFile {
	kept := make([]neocities.RemoteFile, 0, len(files))
	for _, rf := range files {
		if r.scanner.ShouldIgnore(rf.Path, rf.IsDirectory) {
			r.logger.Debugf("ignoring remote %s", rf.Path)
			continue
		}
		kept = append(kept, rf)
	}
	return kept
}

// Sync plans and applies. With dryRun set nothing is changed on either side.
// The returned error covers the snapshot only; per-file failures are in the Result.
func (r *Reconciler) Sync(ctx context.Context, dryRun bool) (*Result, error) {
	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return &Result{Plan: plan, DryRun: true}, nil
	}
	return r.Apply(ctx, plan), nil
}

// Apply carries out plan. Uploads and remote deletes are batched into one
// call each; downloads and local deletes go file by file. A failure in one
// category does not stop the others.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) *Result {
	result := &Result{Plan: plan}

	if paths := sorted(plan.Upload); len(paths) > 0 {
		resp, err := r.client.Upload(ctx, r.localPaths(paths))
		result.addBatch(ActionUpload, paths, batchErr(resp, err))
	}

	if paths := sorted(plan.DeleteRemote); len(paths) > 0 {
		resp, err := r.client.Delete(ctx, r.localPaths(paths))
		result.addBatch(ActionDeleteRemote, paths, batchErr(resp, err))
	}

	for _, p := range sorted(plan.Download) {
		result.add(ActionDownload, p, r.download(ctx, p))
	}

	for _, p := range sorted(plan.DeleteLocal) {
		result.add(ActionDeleteLocal, p, r.deleteLocal(p))
	}

	if failed := result.Failed(); len(failed) > 0 {
		for _, o := range failed {
			r.logger.Warnf("%s %s failed: %v", o.Action, o.Path, o.Err)
		}
	}
	r.logger.Infof("sync finished: %d succeeded, %d failed", result.Succeeded(), len(result.Failed()))

	return result
}

func (r *Reconciler) localPaths(rels []string) []string {
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = filepath.Join(r.scanner.Root(), filepath.FromSlash(rel))
	}
	return out
}

// target resolves a remote path inside the project root. Paths that climb
// out of it are rejected before anything touches the filesystem.
func (r *Reconciler) target(rel string) (string, error) {
	clean, err := neocities.RelPath("", rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.scanner.Root(), filepath.FromSlash(clean)), nil
}

// download fetches rel into a temporary file next to its target and renames
// it into place once complete.
func (r *Reconciler) download(ctx context.Context, rel string) error {
	target, err := r.target(rel)
	if err != nil {
		return err
	}
	tmp := target + TempSuffix

	if err := r.fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := r.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := r.client.Download(ctx, rel, f); err != nil {
		f.Close()
		r.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		r.fs.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := r.fs.Rename(tmp, target); err != nil {
		r.fs.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	r.logger.Debugf("downloaded %s", rel)
	return nil
}

func (r *Reconciler) deleteLocal(rel string) error {
	target, err := r.target(rel)
	if err != nil {
		return err
	}
	if err := r.fs.Remove(target); err != nil {
		return fmt.Errorf("failed to delete %s: %w", target, err)
	}
	r.logger.Debugf("deleted local %s", rel)
	return nil
}

func batchErr(resp *neocities.Response, err error) error {
	if err != nil {
		return err
	}
	return resp.Err()
}

func (res *Result) add(action Action, path string, err error) {
	res.Outcomes = append(res.Outcomes, Outcome{Path: path, Action: action, Err: err})
}

func (res *Result) addBatch(action Action, paths []string, err error) {
	for _, p := range paths {
		res.add(action, p, err)
	}
}
