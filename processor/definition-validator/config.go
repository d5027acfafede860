package definitionvalidator

import (
	"fmt"
	"strings"
	"time"
)

// Config holds configuration for the definition-validator processor.
type Config struct {
	// SubjectPrefix prefixes every request subject
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`

	// QueueGroup load-balances requests across service instances
	QueueGroup string `json:"queue_group" yaml:"queue_group"`

	// RequestTimeout bounds handling of one request
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// DefaultConfig returns the default configuration for definition-validator.
func DefaultConfig() Config {
	return Config{
		SubjectPrefix:  "defcheck",
		QueueGroup:     "defcheck",
		RequestTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix is required")
	}
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return fmt.Errorf("subject_prefix must not contain wildcards or spaces")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be non-negative")
	}
	return nil
}

// Subject names.
func (c *Config) validateSubject() string { return c.SubjectPrefix + ".validate" }
func (c *Config) reloadSubject() string   { return c.SubjectPrefix + ".rules.reload" }
func (c *Config) catalogSubject() string  { return c.SubjectPrefix + ".rules.catalog" }
func (c *Config) historySubject() string  { return c.SubjectPrefix + ".history" }
