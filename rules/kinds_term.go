package rules

import (
	"slices"
	"strings"

	"github.com/c360studio/defcheck/definition"
)

// repetitionMode selects how the term is searched for in the definition.
type repetitionMode string

const (
	repetitionContains   repetitionMode = "contains"
	repetitionStartsWith repetitionMode = "starts_with"
	repetitionEquals     repetitionMode = "equals"
)

// termRepetition fails when the definition restates the term it defines.
type termRepetition struct {
	mode    repetitionMode
	inflect bool
}

type termRepetitionParams struct {
	Mode        string `yaml:"mode"`
	Inflections bool   `yaml:"match_inflections"`
}

func newTermRepetition(raw map[string]any) (checker, error) {
	var p termRepetitionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	mode := repetitionMode(strings.ToLower(strings.TrimSpace(p.Mode)))
	switch mode {
	case "":
		mode = repetitionContains
	case repetitionContains, repetitionStartsWith, repetitionEquals:
	default:
		return nil, paramErr("unknown mode %q", p.Mode)
	}
	return &termRepetition{mode: mode, inflect: p.Inflections}, nil
}

func (c *termRepetition) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	term := words(def.Term)
	if len(term) == 0 {
		return nil, nil
	}

	switch c.mode {
	case repetitionEquals:
		if normalize(def.Text) == strings.Join(term, " ") {
			return failf(nil, "definitie herhaalt alleen de term %q", def.Term), nil
		}
		return nil, nil
	case repetitionStartsWith:
		m, ok := findPhrase(def.Text, tokenize(def.Text), term, 0, c.inflect)
		if ok && m.first == 0 {
			span := m.span
			return failf(&span, "definitie begint met de term %q", def.Term), nil
		}
		return nil, nil
	default:
		if m, ok := findPhrase(def.Text, tokenize(def.Text), term, 0, c.inflect); ok {
			span := m.span
			return failf(&span, "definitie bevat de term %q", def.Term), nil
		}
		return nil, nil
	}
}

// circularReference fails when the definition is the term itself, or when
// it leans on another term in the context whose definition in turn leans on
// this term.
type circularReference struct {
	mutual bool
}

type circularReferenceParams struct {
	Mutual *bool `yaml:"mutual"`
}

func newCircularReference(raw map[string]any) (checker, error) {
	var p circularReferenceParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return &circularReference{mutual: p.Mutual == nil || *p.Mutual}, nil
}

func (c *circularReference) check(def *definition.Definition, dctx *definition.Context) (*finding, error) {
	term := normalize(def.Term)
	if term == "" {
		return nil, nil
	}
	if normalize(def.Text) == term {
		span := Span{Start: 0, End: len(def.Text), Text: def.Text}
		return failf(&span, "definitie is gelijk aan de term %q", def.Term), nil
	}
	if !c.mutual || dctx == nil {
		return nil, nil
	}

	tokens := tokenize(def.Text)
	for _, other := range sortedKeys(dctx.ExistingDefinitions) {
		if normalize(other) == term {
			continue
		}
		m, ok := findPhrase(def.Text, tokens, words(other), 0, false)
		if !ok {
			continue
		}
		if containsPhrase(dctx.ExistingDefinitions[other], def.Term, false) {
			span := m.span
			return failf(&span, "%q en %q verwijzen naar elkaar", def.Term, other), nil
		}
	}
	return nil, nil
}

// duplicateDefinition fails when another term in the context already
// carries the same definition text.
type duplicateDefinition struct{}

type duplicateDefinitionParams struct{}

func newDuplicateDefinition(raw map[string]any) (checker, error) {
	var p duplicateDefinitionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return duplicateDefinition{}, nil
}

func (duplicateDefinition) check(def *definition.Definition, dctx *definition.Context) (*finding, error) {
	if dctx == nil {
		return nil, nil
	}
	text := normalize(def.Text)
	if text == "" {
		return nil, nil
	}
	term := normalize(def.Term)
	for _, other := range sortedKeys(dctx.ExistingDefinitions) {
		if normalize(other) == term {
			continue
		}
		if normalize(dctx.ExistingDefinitions[other]) == text {
			return failf(nil, "zelfde definitie als %q", other), nil
		}
	}
	return nil, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
