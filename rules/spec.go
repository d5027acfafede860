// Package rules provides the declarative rule descriptors, the closed set of
// rule kinds that evaluate them, and the registry that loads, validates and
// atomically swaps rule snapshots.
package rules

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/c360studio/defcheck/definition"
)

// Category groups rules into families.
type Category string

// Rule categories. The declaration order is the canonical sort order.
const (
	CategoryARAI Category = "ARAI" // AI-output hygiene
	CategoryCON  Category = "CON"  // context consistency
	CategoryESS  Category = "ESS"  // essential elements
	CategoryINT  Category = "INT"  // integrity
	CategorySAM  Category = "SAM"  // coherence
	CategorySTR  Category = "STR"  // structure
	CategoryVER  Category = "VER"  // enrichment
)

// Categories lists every rule category in canonical order.
var Categories = []Category{
	CategoryARAI,
	CategoryCON,
	CategoryESS,
	CategoryINT,
	CategorySAM,
	CategorySTR,
	CategoryVER,
}

// ParseCategory converts s to a known Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Categories, c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Severity states how a failing outcome affects the verdict.
type Severity string

// Severity levels.
const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityBlocking, SeverityWarning, SeverityInfo}

// ParseSeverity converts s to a known Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(Severities, sev) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
	return sev, nil
}

// Rank orders severities, lower is more severe.
func (s Severity) Rank() int {
	if i := slices.Index(Severities, s); i >= 0 {
		return i
	}
	return len(Severities)
}

// Kind is the discriminator that selects a rule implementation.
type Kind string

// RuleSpec is the data-only descriptor of one check.
type RuleSpec struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Category Category `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`

	// AppliesTo restricts the rule to definitions of the listed ontological
	// categories. Empty means every category.
	AppliesTo []definition.OntologicalCategory `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// CategoryParameters overlays Parameters for a specific ontological
	// category. The overlay is bound when rules are selected for a definition.
	CategoryParameters map[definition.OntologicalCategory]map[string]any `json:"category_parameters,omitempty" yaml:"category_parameters,omitempty"`

	MessageTemplate    string `json:"message_template,omitempty" yaml:"message_template,omitempty"`
	SuggestionTemplate string `json:"suggestion_template,omitempty" yaml:"suggestion_template,omitempty"`
}

// Validate checks the schema-level invariants of a single spec. Parameter
// well-formedness is checked by the kind factory.
func (s *RuleSpec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return &ConfigError{Field: "id", Err: fmt.Errorf("id is required")}
	}
	if _, err := ParseCategory(string(s.Category)); err != nil {
		return &ConfigError{RuleID: s.ID, Field: "category", Err: err}
	}
	if _, err := ParseSeverity(string(s.Severity)); err != nil {
		return &ConfigError{RuleID: s.ID, Field: "severity", Err: err}
	}
	if _, ok := kinds[s.Kind]; !ok {
		return &ConfigError{RuleID: s.ID, Field: "kind", Err: fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)}
	}
	for _, c := range s.AppliesTo {
		if _, err := definition.ParseOntologicalCategory(string(c)); err != nil || c == "" {
			return &ConfigError{RuleID: s.ID, Field: "applies_to", Err: fmt.Errorf("unknown ontological category %q", c)}
		}
	}
	for c := range s.CategoryParameters {
		if _, err := definition.ParseOntologicalCategory(string(c)); err != nil || c == "" {
			return &ConfigError{RuleID: s.ID, Field: "category_parameters", Err: fmt.Errorf("unknown ontological category %q", c)}
		}
	}
	return nil
}

// Applies reports whether the rule is applicable to a definition of the
// given ontological category. Undecided categories keep every rule; the
// category-dependent ones report a skip themselves.
func (s *RuleSpec) Applies(c definition.OntologicalCategory) bool {
	if len(s.AppliesTo) == 0 || !c.Decided() {
		return true
	}
	return slices.Contains(s.AppliesTo, c)
}

// CategoryDependent reports whether the rule needs a decided ontological
// category to be meaningful.
func (s *RuleSpec) CategoryDependent() bool {
	return len(s.AppliesTo) > 0 || s.Kind == KindOntologyMarkers
}

// Clone returns a copy that shares no maps or slices with s.
func (s RuleSpec) Clone() RuleSpec {
	out := s
	out.AppliesTo = slices.Clone(s.AppliesTo)
	out.Parameters = maps.Clone(s.Parameters)
	if s.CategoryParameters != nil {
		out.CategoryParameters = make(map[definition.OntologicalCategory]map[string]any, len(s.CategoryParameters))
		for k, v := range s.CategoryParameters {
			out.CategoryParameters[k] = maps.Clone(v)
		}
	}
	return out
}

// parametersFor merges the category overlay onto the base parameters.
func (s *RuleSpec) parametersFor(c definition.OntologicalCategory) map[string]any {
	merged := maps.Clone(s.Parameters)
	if merged == nil {
		merged = make(map[string]any)
	}
	maps.Copy(merged, s.CategoryParameters[c])
	return merged
}

// Less orders specs by category then id.
func Less(aCat Category, aID string, bCat Category, bID string) bool {
	ai, bi := slices.Index(Categories, aCat), slices.Index(Categories, bCat)
	if ai != bi {
		return ai < bi
	}
	return aID < bID
}
