package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/defcheck/definition"
	"gopkg.in/yaml.v3"
)

// DefaultPattern selects rule files inside a rules directory.
const DefaultPattern = "**/*.{yaml,yml}"

// Source produces the raw rule descriptors for one load.
type Source interface {
	// Name identifies the source in errors and logs.
	Name() string
	// Specs reads and parses every descriptor.
	Specs() ([]RuleSpec, error)
}

// fileSpec is the on-disk form of a RuleSpec. Enabled defaults to true.
type fileSpec struct {
	ID                 string                                            `yaml:"id"`
	Name               string                                            `yaml:"name"`
	Kind               Kind                                              `yaml:"kind"`
	Category           Category                                          `yaml:"category"`
	Severity           Severity                                          `yaml:"severity"`
	Enabled            *bool                                             `yaml:"enabled"`
	AppliesTo          []definition.OntologicalCategory                  `yaml:"applies_to"`
	Parameters         map[string]any                                    `yaml:"parameters"`
	CategoryParameters map[definition.OntologicalCategory]map[string]any `yaml:"category_parameters"`
	MessageTemplate    string                                            `yaml:"message_template"`
	SuggestionTemplate string                                            `yaml:"suggestion_template"`
}

type ruleFile struct {
	Rules []fileSpec `yaml:"rules"`
}

// ParseSpecs decodes a rule file. Unknown keys are rejected.
func ParseSpecs(data []byte) ([]RuleSpec, error) {
	var f ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	out := make([]RuleSpec, 0, len(f.Rules))
	for _, raw := range f.Rules {
		spec := RuleSpec{
			ID:                 raw.ID,
			Name:               raw.Name,
			Kind:               raw.Kind,
			Category:           raw.Category,
			Severity:           raw.Severity,
			Enabled:            raw.Enabled == nil || *raw.Enabled,
			AppliesTo:          raw.AppliesTo,
			Parameters:         raw.Parameters,
			CategoryParameters: raw.CategoryParameters,
			MessageTemplate:    raw.MessageTemplate,
			SuggestionTemplate: raw.SuggestionTemplate,
		}
		// Enum fields are matched case-insensitively in files.
		if c, err := ParseCategory(string(spec.Category)); err == nil {
			spec.Category = c
		}
		if s, err := ParseSeverity(string(spec.Severity)); err == nil {
			spec.Severity = s
		}
		out = append(out, spec)
	}
	return out, nil
}

// DirSource reads every rule file matching Pattern below Dir, in sorted
// path order.
type DirSource struct {
	Dir     string
	Pattern string
}

// Name implements Source.
func (s DirSource) Name() string {
	return s.Dir
}

// Specs implements Source.
func (s DirSource) Specs() ([]RuleSpec, error) {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, &ConfigError{Source: s.Dir, Err: fmt.Errorf("open rules directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, &ConfigError{Source: s.Dir, Err: fmt.Errorf("not a directory")}
	}

	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	fsys := os.DirFS(s.Dir)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, &ConfigError{Source: s.Dir, Err: fmt.Errorf("match rule files: %w", err)}
	}
	slices.Sort(matches)
	if len(matches) == 0 {
		return nil, &ConfigError{Source: s.Dir, Err: fmt.Errorf("no rule files matching %q", pattern)}
	}

	var all []RuleSpec
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &ConfigError{Source: path.Join(s.Dir, name), Err: fmt.Errorf("read rule file: %w", err)}
		}
		specs, err := ParseSpecs(data)
		if err != nil {
			return nil, &ConfigError{Source: path.Join(s.Dir, name), Err: fmt.Errorf("parse rule file: %w", err)}
		}
		all = append(all, specs...)
	}
	return all, nil
}

// BytesSource parses a single in-memory rule file.
type BytesSource struct {
	Label string
	Data  []byte
}

// Name implements Source.
func (s BytesSource) Name() string {
	if s.Label == "" {
		return "inline"
	}
	return s.Label
}

// Specs implements Source.
func (s BytesSource) Specs() ([]RuleSpec, error) {
	specs, err := ParseSpecs(s.Data)
	if err != nil {
		return nil, &ConfigError{Source: s.Name(), Err: fmt.Errorf("parse rule file: %w", err)}
	}
	return specs, nil
}

// SpecSource serves already-parsed descriptors.
type SpecSource struct {
	Label string
	List  []RuleSpec
}

// Name implements Source.
func (s SpecSource) Name() string {
	if s.Label == "" {
		return "specs"
	}
	return s.Label
}

// Specs implements Source.
func (s SpecSource) Specs() ([]RuleSpec, error) {
	out := make([]RuleSpec, len(s.List))
	for i, spec := range s.List {
		out[i] = spec.Clone()
	}
	return out, nil
}

// BuildAll resolves specs to rules, rejecting duplicate ids before any
// kind-specific work. An empty spec list is a configuration error so a
// truncated rule file never replaces a working rule set.
func BuildAll(specs []RuleSpec) ([]Rule, error) {
	if len(specs) == 0 {
		return nil, &ConfigError{Err: ErrEmptyRuleSet}
	}
	seen := make(map[string]bool, len(specs))
	out := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.ID] && spec.ID != "" {
			return nil, &ConfigError{RuleID: spec.ID, Field: "id", Err: ErrDuplicateID}
		}
		seen[spec.ID] = true
		r, err := Build(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
