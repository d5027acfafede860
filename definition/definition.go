// Package definition holds the candidate artifact under validation: a term,
// its proposed definition text, the surrounding context and an optional
// externally supplied ontological category.
package definition

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// OntologicalCategory is the externally computed classification of a term.
// It is consumed by category-dependent rules and never derived here.
type OntologicalCategory string

const (
	// CategoryType classifies a term that names a kind of thing.
	CategoryType OntologicalCategory = "TYPE"
	// CategoryExemplaar classifies a term that names a particular instance.
	CategoryExemplaar OntologicalCategory = "EXEMPLAAR"
	// CategoryProces classifies a term that names an activity or process.
	CategoryProces OntologicalCategory = "PROCES"
	// CategoryResultaat classifies a term that names the outcome of a process.
	CategoryResultaat OntologicalCategory = "RESULTAAT"
	// CategoryOnbeslist marks a classification that could not be decided.
	CategoryOnbeslist OntologicalCategory = "ONBESLIST"
)

// OntologicalCategories lists every known category in canonical order.
var OntologicalCategories = []OntologicalCategory{
	CategoryType,
	CategoryExemplaar,
	CategoryProces,
	CategoryResultaat,
	CategoryOnbeslist,
}

// ParseOntologicalCategory normalizes s into a known category.
// An empty string yields the zero value without error.
func ParseOntologicalCategory(s string) (OntologicalCategory, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, c := range OntologicalCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown ontological category: %q", s)
}

// Decided reports whether c carries a usable classification.
func (c OntologicalCategory) Decided() bool {
	return c != "" && c != CategoryOnbeslist
}

// Context is the read-only surrounding information for a definition.
// Everything a rule needs beyond the definition itself must already be
// resolved into this struct before validation starts.
type Context struct {
	// Organisational lists the organisations the definition is scoped to.
	Organisational []string `json:"organisational,omitempty" yaml:"organisational,omitempty"`
	// Legal lists the legal contexts (domains of law).
	Legal []string `json:"legal,omitempty" yaml:"legal,omitempty"`
	// Statutory lists the statutes or regulations the term stems from.
	Statutory []string `json:"statutory,omitempty" yaml:"statutory,omitempty"`
	// ExistingDefinitions maps other terms defined in the same context to
	// their definition text. Used for duplicate and circularity checks.
	ExistingDefinitions map[string]string `json:"existing_definitions,omitempty" yaml:"existing_definitions,omitempty"`
	// Sources holds pre-fetched citations for the definition.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Field names a context list.
type Field string

// Context field names.
const (
	FieldOrganisational Field = "organisational"
	FieldLegal          Field = "legal"
	FieldStatutory      Field = "statutory"
)

// Fields returns the named context lists in canonical order.
func (c *Context) Fields() []Field {
	return []Field{FieldOrganisational, FieldLegal, FieldStatutory}
}

// Values returns the entries of the named context list.
func (c *Context) Values(f Field) []string {
	switch f {
	case FieldOrganisational:
		return c.Organisational
	case FieldLegal:
		return c.Legal
	case FieldStatutory:
		return c.Statutory
	default:
		return nil
	}
}

// Definition is the candidate artifact under validation.
type Definition struct {
	Term     string              `json:"term" yaml:"term"`
	Text     string              `json:"definition" yaml:"definition"`
	Category OntologicalCategory `json:"ontological_category,omitempty" yaml:"ontological_category,omitempty"`
	Context  Context             `json:"context" yaml:"context"`
	Examples []string            `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Validate checks that the definition carries the minimum required input.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Term) == "" {
		return fmt.Errorf("term is required")
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("definition text is required")
	}
	if _, err := ParseOntologicalCategory(string(d.Category)); err != nil {
		return err
	}
	return nil
}

// Clone returns a deep copy of d. Empty lists and maps become nil, matching
// what a JSON round trip of the omitempty fields yields.
func (d *Definition) Clone() *Definition {
	out := *d
	out.Context = d.Context.Clone()
	out.Examples = cloneList(d.Examples)
	return &out
}

// Clone returns a deep copy of c with empty lists and maps set to nil.
func (c *Context) Clone() Context {
	out := Context{
		Organisational: cloneList(c.Organisational),
		Legal:          cloneList(c.Legal),
		Statutory:      cloneList(c.Statutory),
		Sources:        cloneList(c.Sources),
	}
	if len(c.ExistingDefinitions) > 0 {
		out.ExistingDefinitions = maps.Clone(c.ExistingDefinitions)
	}
	return out
}

func cloneList(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}
