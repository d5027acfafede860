package rules

import (
	"regexp"
	"strings"

	"github.com/c360studio/defcheck/definition"
)

// forbiddenPatterns fails when listed words or regular expressions occur
// at least MinMatches times in the target text.
type forbiddenPatterns struct {
	words      [][]string
	patterns   []*regexp.Regexp
	target     target
	minMatches int
	inflect    bool
}

type forbiddenPatternsParams struct {
	Words         []string `yaml:"words"`
	Patterns      []string `yaml:"patterns"`
	Target        string   `yaml:"target"`
	MinMatches    int      `yaml:"min_matches"`
	CaseSensitive bool     `yaml:"case_sensitive"`
	Inflections   bool     `yaml:"match_inflections"`
}

func newForbiddenPatterns(raw map[string]any) (checker, error) {
	var p forbiddenPatternsParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Words) == 0 && len(p.Patterns) == 0 {
		return nil, paramErr("words or patterns required")
	}
	if p.MinMatches < 0 {
		return nil, paramErr("min_matches must not be negative")
	}
	if p.MinMatches == 0 {
		p.MinMatches = 1
	}
	t, err := parseTarget(p.Target)
	if err != nil {
		return nil, err
	}
	res, err := compilePatterns(p.Patterns, p.CaseSensitive)
	if err != nil {
		return nil, err
	}
	return &forbiddenPatterns{
		words:      phraseList(p.Words),
		patterns:   res,
		target:     t,
		minMatches: p.MinMatches,
		inflect:    p.Inflections,
	}, nil
}

func (c *forbiddenPatterns) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	var (
		total int
		first *Span
		found []string
	)
	for _, in := range targetTexts(def, c.target) {
		text := in.text
		tokens := tokenize(text)
		for _, phrase := range c.words {
			for from := 0; ; {
				m, ok := findPhrase(text, tokens, phrase, from, c.inflect)
				if !ok {
					break
				}
				total++
				if first == nil {
					span := m.span
					span.Field = in.field
					first = &span
				}
				found = appendUnique(found, m.span.Text)
				from = m.first + len(phrase)
			}
		}
		for _, re := range c.patterns {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				total++
				span := Span{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]], Field: in.field}
				if first == nil {
					first = &span
				}
				found = appendUnique(found, span.Text)
			}
		}
	}
	if total < c.minMatches {
		return nil, nil
	}
	return failf(first, "gevonden: %s", quoteJoin(found)), nil
}

// forbiddenStart fails when the definition text opens with a listed phrase.
type forbiddenStart struct {
	phrases [][]string
}

type forbiddenStartParams struct {
	Words []string `yaml:"words"`
}

func newForbiddenStart(raw map[string]any) (checker, error) {
	var p forbiddenStartParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Words) == 0 {
		return nil, paramErr("words required")
	}
	return &forbiddenStart{phrases: phraseList(p.Words)}, nil
}

func (c *forbiddenStart) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	tokens := tokenize(def.Text)
	for _, phrase := range c.phrases {
		if m, ok := findPhrase(def.Text, tokens, phrase, 0, false); ok && m.first == 0 {
			span := m.span
			return failf(&span, "definitie begint met %q", span.Text), nil
		}
	}
	return nil, nil
}

// ambiguousConjunction fails when a conjunction such as "en" or "of" is used
// without any of the words that make its reading explicit.
type ambiguousConjunction struct {
	word       []string
	clarifiers [][]string
}

type ambiguousConjunctionParams struct {
	Word       string   `yaml:"word"`
	Clarifiers []string `yaml:"clarifiers"`
}

func newAmbiguousConjunction(raw map[string]any) (checker, error) {
	var p ambiguousConjunctionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	w := words(p.Word)
	if len(w) == 0 {
		return nil, paramErr("word required")
	}
	return &ambiguousConjunction{word: w, clarifiers: phraseList(p.Clarifiers)}, nil
}

func (c *ambiguousConjunction) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	tokens := tokenize(def.Text)
	m, ok := findPhrase(def.Text, tokens, c.word, 0, false)
	if !ok {
		return nil, nil
	}
	for _, cl := range c.clarifiers {
		if _, ok := findPhrase(def.Text, tokens, cl, 0, false); ok {
			return nil, nil
		}
	}
	span := m.span
	return failf(&span, "%q kan zowel inclusief als exclusief gelezen worden", span.Text), nil
}

// targetInput is one text a pattern kind inspects, with the Span field
// naming where it came from.
type targetInput struct {
	field string
	text  string
}

func targetTexts(def *definition.Definition, t target) []targetInput {
	switch t {
	case targetTerm:
		return []targetInput{{field: FieldTerm, text: def.Term}}
	case targetExamples:
		inputs := make([]targetInput, len(def.Examples))
		for i, ex := range def.Examples {
			inputs[i] = targetInput{field: ExampleField(i), text: ex}
		}
		return inputs
	default:
		return []targetInput{{text: def.Text}}
	}
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if strings.EqualFold(e, s) {
			return list
		}
	}
	return append(list, s)
}

func quoteJoin(list []string) string {
	quoted := make([]string, len(list))
	for i, s := range list {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}
