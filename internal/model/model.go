package model

import "time"

// Recurrence is a weekly pattern: a weekday plus a local time-of-day with
// minute resolution. The timezone it is interpreted in belongs to the
// catalog, not to the recurrence itself.
type Recurrence struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// StreamRef is an opaque handle to a remote stream endpoint, resolved
// through the stream registry. ID is whatever the registry's backend uses
// to address the stream; Title is kept for logging only.
type StreamRef struct {
	ID    string
	Title string
}

// RemoteID identifies a broadcast on the hosting platform.
type RemoteID string

// Service is one configured broadcast slot. A Service without a Recurrence
// ("special" service) has no standing schedule and is never planned by the
// recurrence-based planning modes.
type Service struct {
	ID          string
	DisplayName string
	Description string

	// Recurrence is nil for schedule-less services.
	Recurrence *Recurrence

	StreamRef StreamRef
}

// Occurrence is one concrete (service, instant) scheduling unit, either
// desired (built by the planner) or observed (read back from the broadcast
// directory). Occurrences are never mutated in place; reconciliation builds
// replacement values instead.
type Occurrence struct {
	ServiceID string
	Start     time.Time

	Title       string
	Description string

	Privacy     string
	MadeForKids bool
	AutoStart   bool
	AutoStop    bool
	DVREnabled  bool
	Is360       bool

	StreamRef StreamRef

	// RemoteID is set on observed occurrences and on desired occurrences
	// after a successful create.
	RemoteID RemoteID
}

// Key is the deduplication identity of an occurrence: service id plus the
// start instant truncated to the minute. Two occurrences with equal keys
// are the same broadcast.
type Key struct {
	ServiceID string
	StartUnix int64
}

// Key returns the occurrence's identity key. Minute truncation happens on
// the absolute instant, so occurrences expressed in different timezones
// still compare equal.
func (o Occurrence) Key() Key {
	return Key{
		ServiceID: o.ServiceID,
		StartUnix: o.Start.Truncate(time.Minute).Unix(),
	}
}

// Outcome is the terminal state of one occurrence within a reconciliation
// run.
type Outcome string

const (
	// OutcomeMatched: the desired occurrence already exists remotely.
	OutcomeMatched Outcome = "MATCHED"
	// OutcomeCreated: the broadcast was created during this run.
	OutcomeCreated Outcome = "CREATED"
	// OutcomeRemoved: the broadcast was deleted during this run.
	OutcomeRemoved Outcome = "REMOVED"
	// OutcomeFailed: the directory call for this occurrence failed.
	OutcomeFailed Outcome = "FAILED"
	// OutcomeReported: dry-run terminal state; the action was computed but
	// not executed.
	OutcomeReported Outcome = "REPORTED"
)

// ReportEntry pairs an occurrence with its outcome. Err is non-nil only
// for OutcomeFailed.
type ReportEntry struct {
	Occurrence Occurrence
	Outcome    Outcome
	Err        error
}

// Report is the result of a reconciliation run: per-occurrence entries in
// planning order plus summary counts. The caller decides how to render it
// and which process exit status to use.
type Report struct {
	Entries []ReportEntry

	Matched  int
	Created  int
	Removed  int
	Failed   int
	Reported int
}

// Add appends an entry and bumps the matching counter.
func (r *Report) Add(occ Occurrence, out Outcome, err error) {
	r.Entries = append(r.Entries, ReportEntry{Occurrence: occ, Outcome: out, Err: err})
	switch out {
	case OutcomeMatched:
		r.Matched++
	case OutcomeCreated:
		r.Created++
	case OutcomeRemoved:
		r.Removed++
	case OutcomeFailed:
		r.Failed++
	case OutcomeReported:
		r.Reported++
	}
}

// HasFailures reports whether any occurrence ended in OutcomeFailed.
func (r *Report) HasFailures() bool { return r.Failed > 0 }
