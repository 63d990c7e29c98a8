package export

import (
	"fmt"
	"io"
	"os"
	"time"

	ics "github.com/arran4/golang-ical"

	"streamsched/internal/model"
	"streamsched/internal/reconcile"
)

// defaultSlotLength is the VEVENT duration used for exported occurrences;
// the platform does not track an end time, a fixed slot keeps calendars
// readable.
const defaultSlotLength = time.Hour

// WriteICS serializes a planned occurrence set as a VCALENDAR so a dry-run
// plan can be reviewed in any calendar application before a live run.
func WriteICS(w io.Writer, occs []model.Occurrence, campus string, loc *time.Location) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//streamsched//EN")

	now := time.Now()
	for _, occ := range occs {
		uid := fmt.Sprintf("%s-%d@streamsched", occ.ServiceID, occ.Start.Truncate(time.Minute).Unix())
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now)
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.Start.Add(defaultSlotLength))
		ev.SetSummary(reconcile.Title(campus, occ.Start, loc))
		if occ.Description != "" {
			ev.SetDescription(occ.Description)
		}
	}

	return cal.SerializeTo(w)
}

// WriteICSFile writes the occurrence set to path, 0644.
func WriteICSFile(path string, occs []model.Occurrence, campus string, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteICS(f, occs, campus, loc); err != nil {
		return err
	}
	return f.Sync()
}
