package rules

import (
	"fmt"
	"slices"
	"time"

	"github.com/c360studio/defcheck/definition"
)

// Snapshot is an immutable, fully validated rule set. Validations read one
// snapshot from start to finish; reloads replace the registry's snapshot
// wholesale and never modify one in place.
type Snapshot struct {
	// Version increases by one with every successful load.
	Version uint64
	// Source names the configuration the snapshot was built from.
	Source string
	// LoadedAt is when the snapshot became active.
	LoadedAt time.Time

	rules []Rule
	specs []RuleSpec
}

// NewSnapshot validates rs as a set and orders it canonically. It is the
// single place where set-level invariants are enforced, so custom Rule
// implementations get the same checks as built-in kinds.
func NewSnapshot(version uint64, source string, rs []Rule) (*Snapshot, error) {
	seen := make(map[string]bool, len(rs))
	specs := make([]RuleSpec, len(rs))
	for i, r := range rs {
		spec := r.Spec()
		if spec.ID == "" {
			return nil, &ConfigError{Source: source, Field: "id", Err: fmt.Errorf("id is required")}
		}
		if seen[spec.ID] {
			return nil, &ConfigError{RuleID: spec.ID, Source: source, Field: "id", Err: ErrDuplicateID}
		}
		seen[spec.ID] = true
		if _, err := ParseCategory(string(spec.Category)); err != nil {
			return nil, &ConfigError{RuleID: spec.ID, Source: source, Field: "category", Err: err}
		}
		if _, err := ParseSeverity(string(spec.Severity)); err != nil {
			return nil, &ConfigError{RuleID: spec.ID, Source: source, Field: "severity", Err: err}
		}
		specs[i] = spec
	}

	order := make([]int, len(rs))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		switch {
		case Less(specs[a].Category, specs[a].ID, specs[b].Category, specs[b].ID):
			return -1
		case Less(specs[b].Category, specs[b].ID, specs[a].Category, specs[a].ID):
			return 1
		}
		return 0
	})

	s := &Snapshot{
		Version: version,
		Source:  source,
		rules:   make([]Rule, len(rs)),
		specs:   make([]RuleSpec, len(rs)),
	}
	for i, j := range order {
		s.rules[i] = rs[j]
		s.specs[i] = specs[j]
	}
	return s, nil
}

// Filter narrows the rules selected from a snapshot.
type Filter struct {
	// Categories keeps only rules in these categories. Empty keeps all.
	Categories []Category
	// IDs keeps only rules with these ids. Empty keeps all.
	IDs []string
	// Ontological drops rules not applicable to the category and binds
	// category-specific parameters.
	Ontological definition.OntologicalCategory
}

func (f *Filter) match(spec *RuleSpec) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, spec.Category) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, spec.ID) {
		return false
	}
	return spec.Applies(f.Ontological)
}

// Rules returns the enabled rules matching f in canonical order.
func (s *Snapshot) Rules(f Filter) []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, 0, len(s.rules))
	for i := range s.rules {
		spec := &s.specs[i]
		if !spec.Enabled || !f.match(spec) {
			continue
		}
		r := s.rules[i]
		if b, ok := r.(binder); ok {
			r = b.bind(f.Ontological)
		}
		out = append(out, r)
	}
	return out
}

// Catalog returns copies of every spec in the snapshot, disabled ones
// included, in canonical order.
func (s *Snapshot) Catalog() []RuleSpec {
	if s == nil {
		return nil
	}
	out := make([]RuleSpec, len(s.specs))
	for i, spec := range s.specs {
		out[i] = spec.Clone()
	}
	return out
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
