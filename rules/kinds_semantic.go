package rules

import (
	"strings"

	"github.com/c360studio/defcheck/definition"
)

// ontologyMarkers requires the definition to carry a word that signals its
// ontological category, e.g. "activiteit" for a PROCES. Markers are
// normally supplied per category through category_parameters.
type ontologyMarkers struct {
	markers [][]string
	within  int
}

type ontologyMarkersParams struct {
	Markers     []string `yaml:"markers"`
	WithinWords int      `yaml:"within_words"`
}

func newOntologyMarkers(raw map[string]any) (checker, error) {
	var p ontologyMarkersParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.WithinWords < 0 {
		return nil, paramErr("within_words must not be negative")
	}
	return &ontologyMarkers{markers: phraseList(p.Markers), within: p.WithinWords}, nil
}

func (c *ontologyMarkers) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	if len(c.markers) == 0 {
		return nil, nil
	}
	tokens := tokenize(def.Text)
	for _, marker := range c.markers {
		m, ok := findPhrase(def.Text, tokens, marker, 0, true)
		if ok && (c.within == 0 || m.first < c.within) {
			return nil, nil
		}
	}
	return failf(nil, "geen kenmerk van categorie %s gevonden", def.Category), nil
}

// connectives bounds how many clauses a definition may chain together with
// separators and connective words.
type connectives struct {
	separators  []string
	connectives [][]string
	maxClauses  int
}

type connectivesParams struct {
	Separators  []string `yaml:"separators"`
	Connectives []string `yaml:"connectives"`
	MaxClauses  int      `yaml:"max_clauses"`
}

func newConnectives(raw map[string]any) (checker, error) {
	var p connectivesParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.MaxClauses < 1 {
		return nil, paramErr("max_clauses must be at least 1")
	}
	if len(p.Separators) == 0 && len(p.Connectives) == 0 {
		return nil, paramErr("separators or connectives required")
	}
	return &connectives{separators: p.Separators, connectives: phraseList(p.Connectives), maxClauses: p.MaxClauses}, nil
}

func (c *connectives) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	clauses := 1
	var first *Span
	for _, sep := range c.separators {
		if sep == "" {
			continue
		}
		if i := strings.Index(def.Text, sep); i >= 0 && first == nil {
			first = &Span{Start: i, End: i + len(sep), Text: sep}
		}
		clauses += strings.Count(def.Text, sep)
	}
	tokens := tokenize(def.Text)
	for _, conn := range c.connectives {
		n, span := countPhrase(def.Text, tokens, conn)
		if first == nil {
			first = span
		}
		clauses += n
	}
	if clauses <= c.maxClauses {
		return nil, nil
	}
	return failf(first, "%d deelzinnen, maximaal %d", clauses, c.maxClauses), nil
}

// examplesRequired requires a minimum number of example sentences, and
// optionally counts pre-fetched sources towards it.
type examplesRequired struct {
	min          int
	countSources bool
}

type examplesRequiredParams struct {
	MinExamples  int  `yaml:"min_examples"`
	CountSources bool `yaml:"count_sources"`
}

func newExamplesRequired(raw map[string]any) (checker, error) {
	var p examplesRequiredParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.MinExamples < 0 {
		return nil, paramErr("min_examples must not be negative")
	}
	if p.MinExamples == 0 {
		p.MinExamples = 1
	}
	return &examplesRequired{min: p.MinExamples, countSources: p.CountSources}, nil
}

func (c *examplesRequired) check(def *definition.Definition, dctx *definition.Context) (*finding, error) {
	n := nonEmpty(def.Examples)
	if c.countSources && dctx != nil {
		n += nonEmpty(dctx.Sources)
	}
	if n >= c.min {
		return nil, nil
	}
	return failf(nil, "%d voorbeelden, minimaal %d", n, c.min), nil
}

// exampleUsage requires every example sentence to use the term.
type exampleUsage struct{}

type exampleUsageParams struct{}

func newExampleUsage(raw map[string]any) (checker, error) {
	var p exampleUsageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return exampleUsage{}, nil
}

func (exampleUsage) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	for i, ex := range def.Examples {
		if strings.TrimSpace(ex) == "" {
			continue
		}
		if !containsPhrase(ex, def.Term, true) {
			return failf(&Span{Start: 0, End: len(ex), Text: ex, Field: ExampleField(i)}, "voorbeeld %d gebruikt de term %q niet", i+1, def.Term), nil
		}
	}
	return nil, nil
}

// abbreviations requires every acronym in the definition to be explained in
// parentheses or listed as commonly known.
type abbreviations struct {
	allow      map[string]bool
	minLetters int
}

type abbreviationsParams struct {
	Allow      []string `yaml:"allow"`
	MinLetters int      `yaml:"min_letters"`
}

func newAbbreviations(raw map[string]any) (checker, error) {
	var p abbreviationsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.MinLetters < 0 {
		return nil, paramErr("min_letters must not be negative")
	}
	if p.MinLetters == 0 {
		p.MinLetters = 2
	}
	return &abbreviations{allow: toSet(p.Allow), minLetters: p.MinLetters}, nil
}

func (c *abbreviations) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	for _, t := range tokenize(def.Text) {
		raw := def.Text[t.start:t.end]
		if !isAcronym(raw, c.minLetters) || c.allow[t.word] {
			continue
		}
		if strings.Contains(def.Text, "("+raw+")") {
			continue
		}
		span := Span{Start: t.start, End: t.end, Text: raw}
		return failf(&span, "afkorting %q wordt niet toegelicht", raw), nil
	}
	return nil, nil
}

func nonEmpty(list []string) int {
	n := 0
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
