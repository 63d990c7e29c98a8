package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"streamsched/internal/model"
	"streamsched/internal/schedule"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeRegistry struct{}

func (fakeRegistry) Resolve(serviceID, campus string) (model.StreamRef, error) {
	return model.StreamRef{ID: "stream-" + serviceID, Title: campus + " Stream " + serviceID}, nil
}

// fakeDirectory is an in-memory broadcast directory recording every
// mutation it is asked for.
type fakeDirectory struct {
	remote []model.Occurrence

	failCreate map[model.Key]error
	failDelete map[model.RemoteID]error

	created []model.Occurrence
	deleted []model.RemoteID
	nextID  int
}

func (d *fakeDirectory) ListUpcoming(ctx context.Context) ([]model.Occurrence, error) {
	out := make([]model.Occurrence, len(d.remote))
	copy(out, d.remote)
	return out, nil
}

func (d *fakeDirectory) Create(ctx context.Context, occ model.Occurrence) (model.RemoteID, error) {
	if err := d.failCreate[occ.Key()]; err != nil {
		return "", err
	}
	d.nextID++
	id := model.RemoteID(fmt.Sprintf("bcast-%d", d.nextID))
	occ.RemoteID = id
	d.created = append(d.created, occ)
	return id, nil
}

func (d *fakeDirectory) Delete(ctx context.Context, id model.RemoteID) error {
	if err := d.failDelete[id]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Indianapolis")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	return loc
}

var testOpts = schedule.BroadcastOptions{Privacy: "unlisted", AutoStart: true, AutoStop: true, DVREnabled: true}

func testCatalog(t *testing.T, loc *time.Location, defs ...schedule.Definition) *schedule.Catalog {
	t.Helper()
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	cat, err := schedule.BuildCatalog(defs, ids, fakeRegistry{}, "Fishers", loc)
	if err != nil {
		t.Fatalf("BuildCatalog error: %v", err)
	}
	return cat
}

func saturdayService() schedule.Definition {
	return schedule.Definition{ID: "A", Name: "Saturday Service", Day: "saturday", Time: "16:00", Description: "Join us live"}
}

func TestTitleFormat(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)

	tests := []struct {
		start time.Time
		want  string
	}{
		{time.Date(2025, 1, 4, 16, 0, 0, 0, loc), "Fishers // 01-04-2025 // 04:00 PM"},
		{time.Date(2025, 2, 9, 9, 30, 0, 0, loc), "Fishers // 02-09-2025 // 09:30 AM"},
		{time.Date(2025, 12, 25, 0, 0, 0, 0, loc), "Fishers // 12-25-2025 // 12:00 AM"},
	}
	for _, tt := range tests {
		if got := Title("Fishers", tt.start, loc); got != tt.want {
			t.Fatalf("Title(%v) = %q, want %q", tt.start, got, tt.want)
		}
	}
}

func TestRunDefaultCreatesMissingBroadcasts(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	cat := testCatalog(t, loc, saturdayService())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	dir := &fakeDirectory{}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

	w, _ := schedule.WeeksAhead(2)
	report, err := eng.RunDefault(context.Background(), cat, w, false)
	if err != nil {
		t.Fatalf("RunDefault error: %v", err)
	}

	if report.Created != 2 || report.Matched != 0 || report.Failed != 0 {
		t.Fatalf("counts = created %d, matched %d, failed %d; want 2/0/0",
			report.Created, report.Matched, report.Failed)
	}
	if len(dir.created) != 2 {
		t.Fatalf("directory received %d creates, want 2", len(dir.created))
	}
	first := dir.created[0]
	if first.Title != "Fishers // 01-04-2025 // 04:00 PM" {
		t.Fatalf("created title = %q", first.Title)
	}
	if first.Description != "Join us live" || first.StreamRef.ID != "stream-A" {
		t.Fatalf("create payload = %+v", first)
	}
	if report.Entries[0].Occurrence.RemoteID == "" {
		t.Fatal("created entry is missing its remote id")
	}
}

func TestRunDefaultIsIdempotent(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	cat := testCatalog(t, loc, saturdayService())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	dir := &fakeDirectory{}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)
	w, _ := schedule.WeeksAhead(2)

	first, err := eng.RunDefault(context.Background(), cat, w, false)
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.Created != 2 {
		t.Fatalf("first run created %d, want 2", first.Created)
	}

	// Second run sees the first run's broadcasts as remote state.
	dir.remote = append(dir.remote, dir.created...)
	second, err := eng.RunDefault(context.Background(), cat, w, false)
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.Matched != 2 || second.Created != 0 {
		t.Fatalf("second run matched %d, created %d; want all matched", second.Matched, second.Created)
	}
	if len(dir.created) != 2 {
		t.Fatalf("second run issued creates: %d total, want 2", len(dir.created))
	}
}

func TestRunDefaultMatchesRemoteInDifferentZone(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	cat := testCatalog(t, loc, saturdayService())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	// The directory reports the same instant in UTC; the minute-truncated
	// key must still match.
	dir := &fakeDirectory{remote: []model.Occurrence{{
		ServiceID: "A",
		Start:     time.Date(2025, 1, 4, 21, 0, 0, 0, time.UTC),
		RemoteID:  "bcast-remote",
	}}}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

	report, err := eng.RunDefault(context.Background(), cat, schedule.NextWindow(), false)
	if err != nil {
		t.Fatalf("RunDefault error: %v", err)
	}
	if report.Matched != 1 || report.Created != 0 {
		t.Fatalf("matched %d, created %d; want 1 matched, 0 created", report.Matched, report.Created)
	}
	if len(dir.created) != 0 {
		t.Fatalf("directory received %d creates, want 0", len(dir.created))
	}
}

func TestRunDefaultPartialFailure(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	cat := testCatalog(t, loc, saturdayService())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	// Fail the middle occurrence of three.
	boom := errors.New("quota exceeded")
	middle := model.Occurrence{ServiceID: "A", Start: time.Date(2025, 1, 11, 16, 0, 0, 0, loc)}
	dir := &fakeDirectory{failCreate: map[model.Key]error{middle.Key(): boom}}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

	w, _ := schedule.WeeksAhead(3)
	report, err := eng.RunDefault(context.Background(), cat, w, false)
	if err != nil {
		t.Fatalf("RunDefault error: %v", err)
	}

	if report.Created != 2 || report.Failed != 1 {
		t.Fatalf("created %d, failed %d; want 2 created, 1 failed", report.Created, report.Failed)
	}
	if len(dir.created) != 2 {
		t.Fatalf("directory received %d creates, want 2", len(dir.created))
	}
	// Entries stay in planning order; the failure sits in the middle.
	if report.Entries[1].Outcome != model.OutcomeFailed {
		t.Fatalf("entry[1] outcome = %s, want FAILED", report.Entries[1].Outcome)
	}
	var derr *DirectoryError
	if !errors.As(report.Entries[1].Err, &derr) || !errors.Is(report.Entries[1].Err, boom) {
		t.Fatalf("entry[1] err = %v, want DirectoryError wrapping the cause", report.Entries[1].Err)
	}
	if report.Entries[0].Outcome != model.OutcomeCreated || report.Entries[2].Outcome != model.OutcomeCreated {
		t.Fatalf("surrounding entries = %s, %s; want CREATED, CREATED",
			report.Entries[0].Outcome, report.Entries[2].Outcome)
	}
}

func TestRunDefaultDryRunIssuesNoMutations(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	cat := testCatalog(t, loc, saturdayService())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	// One occurrence already remote, one pending.
	existing := model.Occurrence{
		ServiceID: "A",
		Start:     time.Date(2025, 1, 4, 16, 0, 0, 0, loc),
		RemoteID:  "bcast-existing",
	}
	dir := &fakeDirectory{remote: []model.Occurrence{existing}}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

	w, _ := schedule.WeeksAhead(2)
	report, err := eng.RunDefault(context.Background(), cat, w, true)
	if err != nil {
		t.Fatalf("RunDefault error: %v", err)
	}

	if len(dir.created) != 0 || len(dir.deleted) != 0 {
		t.Fatalf("dry run mutated the directory: %d creates, %d deletes", len(dir.created), len(dir.deleted))
	}
	if report.Matched != 1 || report.Reported != 1 || report.Created != 0 {
		t.Fatalf("counts = matched %d, reported %d, created %d; want 1/1/0",
			report.Matched, report.Reported, report.Created)
	}
	// The report has the same shape as a live run: same entry count, same
	// ordering, titles derived.
	if len(report.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(report.Entries))
	}
	if report.Entries[1].Occurrence.Title == "" {
		t.Fatal("dry-run pending entry is missing its derived title")
	}
}

func TestRunRemoveBoundaryIsInclusive(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	now := time.Date(2025, 1, 4, 16, 0, 0, 0, loc)

	dir := &fakeDirectory{remote: []model.Occurrence{
		{Title: "past", Start: now.Add(-time.Hour), RemoteID: "bcast-past"},
		{Title: "at now", Start: now, RemoteID: "bcast-now"},
		{Title: "future", Start: now.Add(48 * time.Hour), RemoteID: "bcast-future"},
	}}
	eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

	report, err := eng.RunRemove(context.Background(), false)
	if err != nil {
		t.Fatalf("RunRemove error: %v", err)
	}

	if report.Removed != 2 {
		t.Fatalf("removed %d, want 2 (boundary instant included, past excluded)", report.Removed)
	}
	if len(dir.deleted) != 2 || dir.deleted[0] != "bcast-now" || dir.deleted[1] != "bcast-future" {
		t.Fatalf("deleted = %v, want [bcast-now bcast-future]", dir.deleted)
	}
}

func TestRunRemoveDryRunAndPartialFailure(t *testing.T) {
	t.Parallel()
	loc := testLocation(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)

	remote := []model.Occurrence{
		{Title: "one", Start: now.Add(24 * time.Hour), RemoteID: "bcast-1"},
		{Title: "two", Start: now.Add(48 * time.Hour), RemoteID: "bcast-2"},
		{Title: "three", Start: now.Add(72 * time.Hour), RemoteID: "bcast-3"},
	}

	t.Run("dry run deletes nothing", func(t *testing.T) {
		t.Parallel()
		dir := &fakeDirectory{remote: remote}
		eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

		report, err := eng.RunRemove(context.Background(), true)
		if err != nil {
			t.Fatalf("RunRemove error: %v", err)
		}
		if len(dir.deleted) != 0 {
			t.Fatalf("dry run deleted %d broadcasts", len(dir.deleted))
		}
		if report.Reported != 3 || report.Removed != 0 {
			t.Fatalf("counts = reported %d, removed %d; want 3/0", report.Reported, report.Removed)
		}
	})

	t.Run("one failed delete does not stop the rest", func(t *testing.T) {
		t.Parallel()
		dir := &fakeDirectory{
			remote:     remote,
			failDelete: map[model.RemoteID]error{"bcast-2": errors.New("api error")},
		}
		eng := NewEngine(dir, fixedClock{now}, "Fishers", loc, testOpts)

		report, err := eng.RunRemove(context.Background(), false)
		if err != nil {
			t.Fatalf("RunRemove error: %v", err)
		}
		if report.Removed != 2 || report.Failed != 1 {
			t.Fatalf("removed %d, failed %d; want 2 removed, 1 failed", report.Removed, report.Failed)
		}
		if len(dir.deleted) != 2 {
			t.Fatalf("deleted = %v, want the two healthy broadcasts", dir.deleted)
		}
	})
}

var _ Directory = (*fakeDirectory)(nil)
