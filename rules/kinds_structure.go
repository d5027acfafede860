package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/c360studio/defcheck/definition"
)

// sentenceCount bounds the number of sentences in the definition text.
type sentenceCount struct {
	min, max      int
	abbreviations map[string]bool
}

type sentenceCountParams struct {
	Min           int      `yaml:"min"`
	Max           int      `yaml:"max"`
	Abbreviations []string `yaml:"abbreviations"`
}

func newSentenceCount(raw map[string]any) (checker, error) {
	var p sentenceCountParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Min < 0 || p.Max < 0 {
		return nil, paramErr("min and max must not be negative")
	}
	if p.Max > 0 && p.Min > p.Max {
		return nil, paramErr("min %d exceeds max %d", p.Min, p.Max)
	}
	if p.Min == 0 && p.Max == 0 {
		p.Max = 1
	}
	// Text without a single sentence never satisfies a definition.
	if p.Min == 0 {
		p.Min = 1
	}
	return &sentenceCount{min: p.Min, max: p.Max, abbreviations: toSet(p.Abbreviations)}, nil
}

func (c *sentenceCount) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	n := countSentences(def.Text, c.abbreviations)
	switch {
	case c.max > 0 && n > c.max:
		return failf(nil, "%d zinnen, maximaal %d toegestaan", n, c.max), nil
	case n < c.min:
		return failf(nil, "%d zinnen, minimaal %d vereist", n, c.min), nil
	}
	return nil, nil
}

// startsLowercase requires the definition to open with a lowercase letter.
type startsLowercase struct {
	allowAcronyms bool
}

type startsLowercaseParams struct {
	AllowAcronyms bool `yaml:"allow_acronyms"`
}

func newStartsLowercase(raw map[string]any) (checker, error) {
	var p startsLowercaseParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return &startsLowercase{allowAcronyms: p.AllowAcronyms}, nil
}

func (c *startsLowercase) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	r, at, ok := firstLetter(def.Text)
	if !ok || !unicode.IsUpper(r) {
		return nil, nil
	}
	if c.allowAcronyms {
		if tokens := tokenize(def.Text); len(tokens) > 0 && isAcronym(def.Text[tokens[0].start:tokens[0].end], 2) {
			return nil, nil
		}
	}
	span := Span{Start: at, End: at + utf8.RuneLen(r), Text: string(r)}
	return failf(&span, "definitie begint met hoofdletter %q", span.Text), nil
}

// endsWith requires the trimmed definition text to end in a suffix.
type endsWith struct {
	suffix string
}

type endsWithParams struct {
	Suffix string `yaml:"suffix"`
}

func newEndsWith(raw map[string]any) (checker, error) {
	var p endsWithParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Suffix == "" {
		p.Suffix = "."
	}
	return &endsWith{suffix: p.Suffix}, nil
}

func (c *endsWith) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	text := strings.TrimRightFunc(def.Text, unicode.IsSpace)
	if strings.HasSuffix(text, c.suffix) {
		return nil, nil
	}
	r, size := utf8.DecodeLastRuneInString(text)
	if size == 0 {
		return failf(nil, "definitie eindigt niet op %q", c.suffix), nil
	}
	span := Span{Start: len(text) - size, End: len(text), Text: string(r)}
	return failf(&span, "definitie eindigt niet op %q", c.suffix), nil
}

// wordCount bounds the number of words in the definition text.
type wordCount struct {
	min, max int
}

type wordCountParams struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func newWordCount(raw map[string]any) (checker, error) {
	var p wordCountParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Min < 0 || p.Max < 0 {
		return nil, paramErr("min and max must not be negative")
	}
	if p.Min == 0 && p.Max == 0 {
		return nil, paramErr("min or max required")
	}
	if p.Max > 0 && p.Min > p.Max {
		return nil, paramErr("min %d exceeds max %d", p.Min, p.Max)
	}
	return &wordCount{min: p.Min, max: p.Max}, nil
}

func (c *wordCount) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	n := len(tokenize(def.Text))
	switch {
	case c.max > 0 && n > c.max:
		return failf(nil, "%d woorden, maximaal %d", n, c.max), nil
	case n < c.min:
		return failf(nil, "%d woorden, minimaal %d", n, c.min), nil
	}
	return nil, nil
}

// kickOffNoun requires the first content word of the definition to be able
// to act as the defining noun. Leading articles are skipped; verbs,
// conjunctions and adjective endings disqualify the word.
type kickOffNoun struct {
	skip      map[string]bool
	forbidden map[string]bool
	suffixes  []string
}

type kickOffNounParams struct {
	SkipWords         []string `yaml:"skip_words"`
	ForbiddenWords    []string `yaml:"forbidden_words"`
	ForbiddenSuffixes []string `yaml:"forbidden_suffixes"`
}

func newKickOffNoun(raw map[string]any) (checker, error) {
	var p kickOffNounParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	suffixes := make([]string, 0, len(p.ForbiddenSuffixes))
	for _, s := range p.ForbiddenSuffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}
	return &kickOffNoun{
		skip:      toSet(p.SkipWords),
		forbidden: toSet(p.ForbiddenWords),
		suffixes:  suffixes,
	}, nil
}

func (c *kickOffNoun) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	tokens := tokenize(def.Text)
	for _, t := range tokens {
		if c.skip[t.word] {
			continue
		}
		span := Span{Start: t.start, End: t.end, Text: def.Text[t.start:t.end]}
		if c.forbidden[t.word] {
			return failf(&span, "%q is geen zelfstandig naamwoord als kern", span.Text), nil
		}
		for _, s := range c.suffixes {
			if len(t.word) > len(s) && strings.HasSuffix(t.word, s) {
				return failf(&span, "%q lijkt geen zelfstandig naamwoord", span.Text), nil
			}
		}
		if r, _ := utf8.DecodeRuneInString(t.word); unicode.IsDigit(r) {
			return failf(&span, "definitie begint met een getal"), nil
		}
		return nil, nil
	}
	return failf(nil, "geen kernwoord gevonden"), nil
}

// singularTerm flags terms whose last word carries a plural ending.
type singularTerm struct {
	suffixes   []string
	exceptions map[string]bool
	minLength  int
}

type singularTermParams struct {
	PluralSuffixes []string `yaml:"plural_suffixes"`
	Exceptions     []string `yaml:"exceptions"`
	MinLength      int      `yaml:"min_length"`
}

func newSingularTerm(raw map[string]any) (checker, error) {
	var p singularTermParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if len(p.PluralSuffixes) == 0 {
		return nil, paramErr("plural_suffixes required")
	}
	if p.MinLength < 0 {
		return nil, paramErr("min_length must not be negative")
	}
	suffixes := make([]string, 0, len(p.PluralSuffixes))
	for _, s := range p.PluralSuffixes {
		suffixes = append(suffixes, strings.ToLower(strings.TrimSpace(s)))
	}
	return &singularTerm{suffixes: suffixes, exceptions: toSet(p.Exceptions), minLength: p.MinLength}, nil
}

func (c *singularTerm) check(def *definition.Definition, _ *definition.Context) (*finding, error) {
	tokens := tokenize(def.Term)
	if len(tokens) == 0 {
		return nil, nil
	}
	last := tokens[len(tokens)-1]
	if c.exceptions[last.word] || c.exceptions[normalize(def.Term)] {
		return nil, nil
	}
	if utf8.RuneCountInString(last.word) < c.minLength {
		return nil, nil
	}
	for _, s := range c.suffixes {
		if s != "" && len(last.word) > len(s) && strings.HasSuffix(last.word, s) {
			span := Span{Start: last.start, End: last.end, Text: def.Term[last.start:last.end], Field: FieldTerm}
			return failf(&span, "term %q lijkt meervoud", def.Term), nil
		}
	}
	return nil, nil
}

// isAcronym reports whether s consists of at least minLetters uppercase
// letters, optionally mixed with digits.
func isAcronym(s string, minLetters int) bool {
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			letters++
		case unicode.IsDigit(r):
		default:
			return false
		}
	}
	return letters >= minLetters
}
