package rules

import (
	"fmt"
	"strings"

	"github.com/c360studio/defcheck/definition"
)

// contextLeak fails when the definition text names one of its context
// entries literally. Context is carried as metadata, not in the text.
type contextLeak struct {
	fields []definition.Field
}

type contextLeakParams struct {
	Fields []string `yaml:"fields"`
}

func newContextLeak(raw map[string]any) (checker, error) {
	var p contextLeakParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	fields, err := parseFields(p.Fields)
	if err != nil {
		return nil, err
	}
	return &contextLeak{fields: fields}, nil
}

func (c *contextLeak) check(def *definition.Definition, dctx *definition.Context) (*finding, error) {
	if dctx == nil {
		return nil, nil
	}
	tokens := tokenize(def.Text)
	for _, f := range c.fields {
		for _, entry := range dctx.Values(f) {
			if m, ok := findPhrase(def.Text, tokens, words(entry), 0, false); ok {
				span := m.span
				return failf(&span, "%s context %q staat in de definitie", f, entry), nil
			}
		}
	}
	return nil, nil
}

// contextConsistency fails when the context lists contradict each other:
// the same entry appears in more than one field, or an entry is negated.
type contextConsistency struct {
	negations []string
}

type contextConsistencyParams struct {
	NegationPrefixes []string `yaml:"negation_prefixes"`
}

func newContextConsistency(raw map[string]any) (checker, error) {
	var p contextConsistencyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if len(p.NegationPrefixes) == 0 {
		p.NegationPrefixes = []string{"niet ", "geen ", "!"}
	}
	negations := make([]string, 0, len(p.NegationPrefixes))
	for _, n := range p.NegationPrefixes {
		if n = strings.ToLower(strings.TrimLeft(n, " ")); n != "" {
			negations = append(negations, n)
		}
	}
	return &contextConsistency{negations: negations}, nil
}

func (c *contextConsistency) check(_ *definition.Definition, dctx *definition.Context) (*finding, error) {
	if dctx == nil {
		return nil, nil
	}
	seen := make(map[string]definition.Field)
	for _, f := range dctx.Fields() {
		for _, entry := range dctx.Values(f) {
			lower := strings.ToLower(strings.TrimSpace(entry))
			for _, neg := range c.negations {
				if strings.HasPrefix(lower, neg) {
					return failf(nil, "%s context %q is een ontkenning", f, entry), nil
				}
			}
			key := normalize(entry)
			if key == "" {
				continue
			}
			if prev, ok := seen[key]; ok && prev != f {
				return failf(nil, "%q staat zowel in %s als in %s context", entry, prev, f), nil
			}
			seen[key] = f
		}
	}
	return nil, nil
}

func parseFields(names []string) ([]definition.Field, error) {
	all := (&definition.Context{}).Fields()
	if len(names) == 0 {
		return all, nil
	}
	out := make([]definition.Field, 0, len(names))
	for _, n := range names {
		f := definition.Field(strings.ToLower(strings.TrimSpace(n)))
		known := false
		for _, a := range all {
			if a == f {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown context field %q", ErrInvalidParameter, n)
		}
		out = append(out, f)
	}
	return out, nil
}
