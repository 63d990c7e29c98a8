package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"streamsched/internal/model"
)

// weeklyRule builds a weekly rrule for rec anchored in loc. The anchor date
// is placed a week before ref so that ref itself is always inside the
// rule's range regardless of its weekday.
func weeklyRule(rec model.Recurrence, loc *time.Location, ref time.Time) (*rrule.RRule, error) {
	wd, err := rruleWeekday(rec.Weekday)
	if err != nil {
		return nil, err
	}

	local := ref.In(loc)
	dtstart := time.Date(local.Year(), local.Month(), local.Day()-7, rec.Hour, rec.Minute, 0, 0, loc)

	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{wd},
		Dtstart:   dtstart,
	})
}

// NextOccurrence returns the earliest instant at or after `after` whose
// local weekday and time-of-day in loc match rec. The boundary is
// inclusive: when `after` itself matches the recurrence exactly, it is
// returned unchanged.
//
// A nominal local time erased by a spring-forward transition resolves to
// the first valid instant after the gap (02:30 in a 02:00->03:00 jump
// becomes 03:30); an ambiguous fall-back time resolves to the earlier
// offset. Both are consequences of materializing wall-clock fields through
// time.Date in loc, and both are pinned by tests.
func NextOccurrence(rec model.Recurrence, loc *time.Location, after time.Time) (time.Time, error) {
	if err := validateRecurrence(rec, loc); err != nil {
		return time.Time{}, err
	}

	r, err := weeklyRule(rec, loc, after)
	if err != nil {
		return time.Time{}, err
	}

	next := r.After(after, true)
	if next.IsZero() {
		// Unbounded weekly rules always have a next instant.
		return time.Time{}, fmt.Errorf("no occurrence after %s", after)
	}
	return next, nil
}

// OccurrencesInWindow returns every instant matching rec with
// start <= t < end, ascending. The resolver is pure; repeated calls with
// the same arguments return the same sequence.
func OccurrencesInWindow(rec model.Recurrence, loc *time.Location, start, end time.Time) ([]time.Time, error) {
	if err := validateRecurrence(rec, loc); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, configErrorf(fmt.Sprintf("window end %s precedes start %s", end, start))
	}

	r, err := weeklyRule(rec, loc, start)
	if err != nil {
		return nil, err
	}

	candidates := r.Between(start, end, true)
	out := make([]time.Time, 0, len(candidates))
	for _, t := range candidates {
		// Between is inclusive at both edges; the window is half-open.
		if t.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func validateRecurrence(rec model.Recurrence, loc *time.Location) error {
	var violations []string
	if rec.Weekday < time.Sunday || rec.Weekday > time.Saturday {
		violations = append(violations, fmt.Sprintf("unknown weekday %d", int(rec.Weekday)))
	}
	if rec.Hour < 0 || rec.Hour > 23 || rec.Minute < 0 || rec.Minute > 59 {
		violations = append(violations, fmt.Sprintf("time-of-day %02d:%02d out of range", rec.Hour, rec.Minute))
	}
	if loc == nil {
		violations = append(violations, "timezone is not set")
	}
	if len(violations) > 0 {
		return &ConfigurationError{Violations: violations}
	}
	return nil
}

func rruleWeekday(wd time.Weekday) (rrule.Weekday, error) {
	switch wd {
	case time.Monday:
		return rrule.MO, nil
	case time.Tuesday:
		return rrule.TU, nil
	case time.Wednesday:
		return rrule.WE, nil
	case time.Thursday:
		return rrule.TH, nil
	case time.Friday:
		return rrule.FR, nil
	case time.Saturday:
		return rrule.SA, nil
	case time.Sunday:
		return rrule.SU, nil
	default:
		return rrule.MO, configErrorf(fmt.Sprintf("unknown weekday %d", int(wd)))
	}
}
