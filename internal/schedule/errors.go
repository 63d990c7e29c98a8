package schedule

import (
	"errors"
	"strings"
)

// ErrStreamNotFound is returned (possibly wrapped) by a Registry when no
// stream matches the expected naming convention for a service.
var ErrStreamNotFound = errors.New("stream not found")

// ConfigurationError aggregates every validation violation found while
// building a catalog or a planning window, so operators can fix the whole
// configuration in one pass instead of replaying the tool per mistake.
type ConfigurationError struct {
	Violations []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid configuration"
	}
	return "invalid configuration: " + strings.Join(e.Violations, "; ")
}

// AsConfigurationError unwraps err into a *ConfigurationError if possible.
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func configErrorf(violations ...string) error {
	return &ConfigurationError{Violations: violations}
}
