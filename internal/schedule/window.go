package schedule

import (
	"fmt"
	"time"
)

// WindowMode tags the planning window variant.
type WindowMode int

const (
	// ModeNext plans the single earliest future instant per service.
	ModeNext WindowMode = iota
	// ModeWeeksAhead plans every instant in [now, now + 7n days).
	ModeWeeksAhead
	// ModeDateRange plans every instant between two inclusive calendar
	// dates.
	ModeDateRange
)

// Window is the planning window: which mode the planner runs in plus the
// mode's bounds. Construct via NextWindow, WeeksAhead or DateRange.
type Window struct {
	Mode  WindowMode
	Weeks int

	// From/To are midnight-anchored calendar dates, date-range mode only.
	From time.Time
	To   time.Time
}

// NextWindow plans one occurrence per recurring service: the earliest
// instant at or after now.
func NextWindow() Window { return Window{Mode: ModeNext} }

// WeeksAhead plans all weekly instants within the next n weeks.
func WeeksAhead(n int) (Window, error) {
	if n < 1 {
		return Window{}, configErrorf(fmt.Sprintf("weeks must be at least 1, got %d", n))
	}
	return Window{Mode: ModeWeeksAhead, Weeks: n}, nil
}

// DateRange plans all instants between two inclusive calendar dates. from
// and to are expected at midnight in the catalog timezone.
func DateRange(from, to time.Time) (Window, error) {
	if to.Before(from) {
		return Window{}, configErrorf(fmt.Sprintf(
			"date range end %s precedes start %s",
			to.Format("2006-01-02"), from.Format("2006-01-02")))
	}
	return Window{Mode: ModeDateRange, From: from, To: to}, nil
}

// bounds expands the window into concrete half-open instant bounds
// [start, end) for the resolver. Date-range mode covers the start date's
// first instant through the end date's final instant, so the exclusive
// bound is the midnight after To.
func (w Window) bounds(now time.Time, loc *time.Location) (start, end time.Time) {
	switch w.Mode {
	case ModeWeeksAhead:
		return now, now.AddDate(0, 0, 7*w.Weeks)
	case ModeDateRange:
		from := w.From.In(loc)
		to := w.To.In(loc)
		start = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
		end = time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc)
		return start, end
	default:
		return now, now
	}
}

func (w Window) String() string {
	switch w.Mode {
	case ModeWeeksAhead:
		return fmt.Sprintf("weeks-ahead(%d)", w.Weeks)
	case ModeDateRange:
		return fmt.Sprintf("date-range(%s..%s)", w.From.Format("2006-01-02"), w.To.Format("2006-01-02"))
	default:
		return "next-occurrence"
	}
}
