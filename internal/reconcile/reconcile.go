package reconcile

import (
	"context"
	"fmt"
	"time"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/schedule"
)

// Directory is the broadcast-hosting platform as the engine sees it: the
// current remote state plus create/delete. Retry and transport concerns
// live behind this interface, never in the engine.
type Directory interface {
	// ListUpcoming returns the remote broadcasts that have not started
	// yet, in the directory's own order.
	ListUpcoming(ctx context.Context) ([]model.Occurrence, error)
	Create(ctx context.Context, occ model.Occurrence) (model.RemoteID, error)
	Delete(ctx context.Context, id model.RemoteID) error
}

// Clock supplies "now"; injectable so tests pin the planning instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DirectoryError wraps a failed directory call. It is recorded on the
// occurrence that triggered it and never aborts the rest of the batch.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string { return fmt.Sprintf("directory %s: %v", e.Op, e.Err) }
func (e *DirectoryError) Unwrap() error { return e.Err }

// Engine compares the desired occurrence set against the directory's
// remote state and issues the minimal create/remove actions, strictly
// sequentially, in planning order.
type Engine struct {
	dir    Directory
	clock  Clock
	campus string
	loc    *time.Location
	opts   schedule.BroadcastOptions
}

func NewEngine(dir Directory, clock Clock, campus string, loc *time.Location, opts schedule.BroadcastOptions) *Engine {
	return &Engine{dir: dir, clock: clock, campus: campus, loc: loc, opts: opts}
}

// Title derives the broadcast title for an occurrence starting at start,
// rendered in loc: "{campus} // {MM-DD-YYYY} // {hh:mm AM/PM}".
func Title(campus string, start time.Time, loc *time.Location) string {
	local := start.In(loc)
	return fmt.Sprintf("%s // %s // %s", campus, local.Format("01-02-2006"), local.Format("03:04 PM"))
}

// RunDefault reconciles the window's desired occurrence set against the
// directory. Occurrences whose key already exists remotely are MATCHED and
// left alone, so running the engine twice over unchanged remote state never
// creates a duplicate. The rest are created one by one; a failed create is
// recorded and the batch continues. Under dryRun no mutation call is
// issued and pending creates terminate as REPORTED.
//
// Only structural errors (broken catalog/window, an unlistable directory)
// abort the run; per-occurrence failures end up in the report.
func (e *Engine) RunDefault(ctx context.Context, cat *schedule.Catalog, w schedule.Window, dryRun bool) (*model.Report, error) {
	remote, err := e.dir.ListUpcoming(ctx)
	if err != nil {
		return nil, &DirectoryError{Op: "list", Err: err}
	}

	existing := make(map[model.Key]model.Occurrence, len(remote))
	for _, occ := range remote {
		existing[occ.Key()] = occ
	}

	now := e.clock.Now()
	desired, err := schedule.Plan(cat, w, now, e.opts)
	if err != nil {
		return nil, err
	}

	appLog.Info("reconciling", "window", w.String(), "desired", len(desired),
		"remote", len(remote), "dry_run", dryRun)

	report := &model.Report{}
	for _, occ := range desired {
		if found, ok := existing[occ.Key()]; ok {
			appLog.Debug("broadcast already scheduled",
				"service", occ.ServiceID, "start", occ.Start, "remote_id", string(found.RemoteID))
			report.Add(occ, model.OutcomeMatched, nil)
			continue
		}

		out := occ
		out.Title = Title(e.campus, occ.Start, e.loc)

		if dryRun {
			appLog.Info("[dry run] would create broadcast",
				"service", out.ServiceID, "title", out.Title, "start", out.Start,
				"stream", out.StreamRef.Title)
			report.Add(out, model.OutcomeReported, nil)
			continue
		}

		id, err := e.dir.Create(ctx, out)
		if err != nil {
			derr := &DirectoryError{Op: "create", Err: err}
			appLog.Error("failed to create broadcast", derr,
				"service", out.ServiceID, "start", out.Start)
			report.Add(out, model.OutcomeFailed, derr)
			continue
		}
		out.RemoteID = id
		appLog.Info("created broadcast", "service", out.ServiceID,
			"title", out.Title, "remote_id", string(id))
		report.Add(out, model.OutcomeCreated, nil)
	}

	return report, nil
}

// RunRemove deletes every upcoming remote broadcast, ignoring the desired
// set entirely. A broadcast starting exactly at the current instant still
// counts as upcoming (the boundary is inclusive, at minute granularity).
// Deletions are independent; one failure does not stop the rest. Under
// dryRun nothing is deleted and each candidate terminates as REPORTED.
func (e *Engine) RunRemove(ctx context.Context, dryRun bool) (*model.Report, error) {
	remote, err := e.dir.ListUpcoming(ctx)
	if err != nil {
		return nil, &DirectoryError{Op: "list", Err: err}
	}

	now := e.clock.Now().Truncate(time.Minute)
	report := &model.Report{}

	for _, occ := range remote {
		if occ.Start.Truncate(time.Minute).Before(now) {
			continue
		}

		if dryRun {
			appLog.Info("[dry run] would delete broadcast",
				"title", occ.Title, "start", occ.Start, "remote_id", string(occ.RemoteID))
			report.Add(occ, model.OutcomeReported, nil)
			continue
		}

		if err := e.dir.Delete(ctx, occ.RemoteID); err != nil {
			derr := &DirectoryError{Op: "delete", Err: err}
			appLog.Error("failed to delete broadcast", derr,
				"title", occ.Title, "remote_id", string(occ.RemoteID))
			report.Add(occ, model.OutcomeFailed, derr)
			continue
		}
		appLog.Info("deleted broadcast", "title", occ.Title, "remote_id", string(occ.RemoteID))
		report.Add(occ, model.OutcomeRemoved, nil)
	}

	return report, nil
}
