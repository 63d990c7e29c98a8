package schedule

import (
	"sort"
	"time"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// BroadcastOptions carries the pass-through broadcast settings stamped onto
// every planned occurrence. None of them influence planning itself.
type BroadcastOptions struct {
	Privacy     string
	MadeForKids bool
	AutoStart   bool
	AutoStop    bool
	DVREnabled  bool
	Is360       bool
}

// Plan expands the catalog's enabled services through the window into the
// desired occurrence set: deduplicated by (service, minute-truncated
// instant) and sorted ascending by start, ties broken by service id.
//
// Plan is a pure function of its arguments; the same catalog, window and
// now always produce the same sequence. Services without a recurrence are
// skipped with a diagnostic in every mode, including date-range.
func Plan(c *Catalog, w Window, now time.Time, opts BroadcastOptions) ([]model.Occurrence, error) {
	loc := c.Location()
	start, end := w.bounds(now, loc)

	seen := make(map[model.Key]struct{})
	var out []model.Occurrence

	for _, svc := range c.Enabled() {
		if svc.Recurrence == nil {
			appLog.Info("skipping service without a standing schedule",
				"service", svc.ID, "name", svc.DisplayName, "window", w.String())
			continue
		}
		rec := *svc.Recurrence

		var instants []time.Time
		switch w.Mode {
		case ModeNext:
			next, err := NextOccurrence(rec, loc, now)
			if err != nil {
				return nil, err
			}
			instants = []time.Time{next}
		default:
			var err error
			instants, err = OccurrencesInWindow(rec, loc, start, end)
			if err != nil {
				return nil, err
			}
		}

		for _, t := range instants {
			occ := model.Occurrence{
				ServiceID:   svc.ID,
				Start:       t,
				Description: svc.Description,
				StreamRef:   svc.StreamRef,
				Privacy:     opts.Privacy,
				MadeForKids: opts.MadeForKids,
				AutoStart:   opts.AutoStart,
				AutoStop:    opts.AutoStop,
				DVREnabled:  opts.DVREnabled,
				Is360:       opts.Is360,
			}
			// The per-service expansion cannot normally repeat a key, but
			// guard it: the key is the sole dedup invariant.
			if _, dup := seen[occ.Key()]; dup {
				continue
			}
			seen[occ.Key()] = struct{}{}
			out = append(out, occ)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ServiceID < out[j].ServiceID
	})

	return out, nil
}
