package rules

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	ErrDuplicateID      = errors.New("duplicate rule id")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownSeverity  = errors.New("unknown severity")
	ErrUnknownKind      = errors.New("unknown rule kind")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrEmptyRuleSet     = errors.New("no rules defined")

	// ErrNoSource is returned by ReloadRules before any source was loaded.
	ErrNoSource = errors.New("no rule source loaded")
)

// ConfigError reports a rule configuration that cannot be loaded. A failed
// load or reload never replaces the active snapshot.
type ConfigError struct {
	RuleID string
	Source string
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "rule config error"
	if e.Source != "" {
		msg += fmt.Sprintf(" in %s", e.Source)
	}
	if e.RuleID != "" {
		msg += fmt.Sprintf(": rule %q", e.RuleID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// withSource stamps a source name onto a ConfigError, wrapping other errors.
func withSource(err error, source string) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		if cfgErr.Source == "" {
			cfgErr.Source = source
		}
		return cfgErr
	}
	return &ConfigError{Source: source, Err: err}
}
