package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "streamsched/internal/log"
	"streamsched/internal/model"
)

// Definition is one raw, unvalidated service description as it comes out
// of configuration: everything is still a string.
type Definition struct {
	ID          string
	Name        string
	Day         string
	Time        string
	Description string
}

// Registry resolves a service id to a remote stream endpoint. The expected
// naming convention on the remote side is "{campus} Stream {serviceID}".
type Registry interface {
	Resolve(serviceID, campus string) (model.StreamRef, error)
}

// Catalog is the validated, immutable set of configured services. It is
// built once per run and passed by reference; nothing mutates it afterward.
type Catalog struct {
	services map[string]model.Service
	enabled  []string
	loc      *time.Location

	// Warnings records enabled services dropped because their stream
	// reference could not be resolved.
	Warnings []string
}

var dayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// BuildCatalog validates defs against enabledIDs and eagerly resolves a
// stream reference for every enabled service.
//
// Structural problems (missing definitions, partial or unparseable
// recurrences, duplicate ids) are collected into a single
// ConfigurationError listing every violation. An unresolved stream
// reference is softer: the service is dropped from planning with a warning
// and the rest of the catalog stands, so one bad stream key cannot block
// unrelated services.
func BuildCatalog(defs []Definition, enabledIDs []string, reg Registry, campus string, loc *time.Location) (*Catalog, error) {
	var violations []string
	if loc == nil {
		violations = append(violations, "timezone is not set")
	}
	if len(enabledIDs) == 0 {
		violations = append(violations, "no services enabled")
	}

	services := make(map[string]model.Service, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.ID] {
			violations = append(violations, fmt.Sprintf("service %s: duplicate definition", def.ID))
			continue
		}
		seen[def.ID] = true
		svc, errs := parseDefinition(def)
		if len(errs) > 0 {
			violations = append(violations, errs...)
			continue
		}
		services[def.ID] = svc
	}

	cat := &Catalog{services: services, loc: loc}
	for _, id := range enabledIDs {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		svc, ok := services[id]
		if !ok {
			violations = append(violations, fmt.Sprintf("service %s is enabled but not defined", id))
			continue
		}
		if len(violations) > 0 {
			// Definitions are already broken; skip resolution, the build
			// fails below anyway.
			continue
		}

		ref, err := reg.Resolve(id, campus)
		if err != nil {
			warning := fmt.Sprintf("service %s (%s): no stream matching %q", id, svc.DisplayName, campus+" Stream "+id)
			cat.Warnings = append(cat.Warnings, warning)
			appLog.Warn("dropping service from planning", "service", id, "reason", err.Error())
			continue
		}
		svc.StreamRef = ref
		cat.services[id] = svc
		cat.enabled = append(cat.enabled, id)
	}

	if len(violations) > 0 {
		return nil, &ConfigurationError{Violations: violations}
	}
	return cat, nil
}

// parseDefinition validates one definition, returning all of its
// violations. Day and time are all-or-nothing: a service either has a full
// weekly recurrence or none at all.
func parseDefinition(def Definition) (model.Service, []string) {
	var errs []string

	if def.ID == "" {
		errs = append(errs, "service with empty id")
	}
	if def.Name == "" {
		errs = append(errs, fmt.Sprintf("service %s: name is required", def.ID))
	}

	day := strings.ToUpper(strings.TrimSpace(def.Day))
	clock := strings.TrimSpace(def.Time)

	svc := model.Service{
		ID:          def.ID,
		DisplayName: def.Name,
		Description: def.Description,
	}

	switch {
	case day == "" && clock == "":
		// Schedule-less "special" service; valid, never planned by
		// recurrence modes.
	case day == "":
		errs = append(errs, fmt.Sprintf("service %s: time %q set without a day", def.ID, clock))
	case clock == "":
		errs = append(errs, fmt.Sprintf("service %s: day %q set without a time", def.ID, day))
	default:
		wd, ok := dayNames[day]
		if !ok {
			errs = append(errs, fmt.Sprintf("service %s: unknown day %q", def.ID, def.Day))
		}
		hour, minute, err := parseClock(clock)
		if err != nil {
			errs = append(errs, fmt.Sprintf("service %s: %v", def.ID, err))
		}
		if ok && err == nil {
			svc.Recurrence = &model.Recurrence{Weekday: wd, Hour: hour, Minute: minute}
		}
	}

	return svc, errs
}

// parseClock parses a strict 24-hour "HH:MM" string.
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Enabled returns the enabled services in the order their ids were
// declared. The order is stable and drives every downstream ordering.
func (c *Catalog) Enabled() []model.Service {
	out := make([]model.Service, 0, len(c.enabled))
	for _, id := range c.enabled {
		out = append(out, c.services[id])
	}
	return out
}

// Location returns the catalog's timezone.
func (c *Catalog) Location() *time.Location { return c.loc }
