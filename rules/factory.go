package rules

import (
	"slices"

	"github.com/c360studio/defcheck/definition"
)

// Rule kinds. The set is closed: a spec naming any other kind is rejected
// at load time.
const (
	KindForbiddenPatterns    Kind = "forbidden_patterns"
	KindForbiddenStart       Kind = "forbidden_start"
	KindAmbiguousConjunction Kind = "ambiguous_conjunction"
	KindSentenceCount        Kind = "sentence_count"
	KindStartsLowercase      Kind = "starts_lowercase"
	KindEndsWith             Kind = "ends_with"
	KindWordCount            Kind = "word_count"
	KindKickOffNoun          Kind = "kick_off_noun"
	KindSingularTerm         Kind = "singular_term"
	KindTermRepetition       Kind = "term_repetition"
	KindCircularReference    Kind = "circular_reference"
	KindDuplicateDefinition  Kind = "duplicate_definition"
	KindContextLeak          Kind = "context_leak"
	KindContextConsistency   Kind = "context_consistency"
	KindOntologyMarkers      Kind = "ontology_markers"
	KindConnectives          Kind = "connectives"
	KindExamplesRequired     Kind = "examples_required"
	KindExampleUsage         Kind = "example_usage"
	KindAbbreviations        Kind = "abbreviations"
)

// factory builds a checker from decoded parameters.
type factory func(params map[string]any) (checker, error)

var kinds = map[Kind]factory{
	KindForbiddenPatterns:    newForbiddenPatterns,
	KindForbiddenStart:       newForbiddenStart,
	KindAmbiguousConjunction: newAmbiguousConjunction,
	KindSentenceCount:        newSentenceCount,
	KindStartsLowercase:      newStartsLowercase,
	KindEndsWith:             newEndsWith,
	KindWordCount:            newWordCount,
	KindKickOffNoun:          newKickOffNoun,
	KindSingularTerm:         newSingularTerm,
	KindTermRepetition:       newTermRepetition,
	KindCircularReference:    newCircularReference,
	KindDuplicateDefinition:  newDuplicateDefinition,
	KindContextLeak:          newContextLeak,
	KindContextConsistency:   newContextConsistency,
	KindOntologyMarkers:      newOntologyMarkers,
	KindConnectives:          newConnectives,
	KindExamplesRequired:     newExamplesRequired,
	KindExampleUsage:         newExampleUsage,
	KindAbbreviations:        newAbbreviations,
}

// Kinds returns the supported rule kinds in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Build validates spec and resolves it to a Rule through the kind factory.
// Category parameter overlays are built eagerly so malformed overlays fail
// at load time.
func Build(spec RuleSpec) (Rule, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec = spec.Clone()

	newChecker := kinds[spec.Kind]
	base, err := newChecker(spec.Parameters)
	if err != nil {
		return nil, &ConfigError{RuleID: spec.ID, Field: "parameters", Err: err}
	}

	r := &rule{spec: spec, checker: base}

	if len(spec.CategoryParameters) > 0 {
		r.variants = make(map[definition.OntologicalCategory]checker, len(spec.CategoryParameters))
		for c := range spec.CategoryParameters {
			v, err := newChecker(spec.parametersFor(c))
			if err != nil {
				return nil, &ConfigError{RuleID: spec.ID, Field: "category_parameters." + string(c), Err: err}
			}
			r.variants[c] = v
		}
	}

	if r.message, err = parseTemplate(spec.ID+".message", spec.MessageTemplate); err != nil {
		return nil, &ConfigError{RuleID: spec.ID, Field: "message_template", Err: err}
	}
	if r.suggestion, err = parseTemplate(spec.ID+".suggestion", spec.SuggestionTemplate); err != nil {
		return nil, &ConfigError{RuleID: spec.ID, Field: "suggestion_template", Err: err}
	}

	return r, nil
}
