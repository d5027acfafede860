package rules

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/c360studio/defcheck/definition"
)

// Rule is one independent, deterministic check.
//
// Evaluate must be pure: it reads only its arguments and its own spec, performs
// no I/O and shares no mutable state. Errors and panics are contained by the
// caller and reported as blocking outcomes.
type Rule interface {
	Spec() RuleSpec
	Evaluate(def *definition.Definition, dctx *definition.Context) (Outcome, error)
}

// binder is implemented by rules whose parameters depend on the ontological
// category of the definition being validated.
type binder interface {
	bind(c definition.OntologicalCategory) Rule
}

// TemplateData is the value message and suggestion templates execute against.
type TemplateData struct {
	Term     string
	RuleID   string
	Category Category
	Name     string
	Evidence string
	Detail   string
}

// finding is what a checker reports when its check fails or cannot run.
type finding struct {
	detail   string
	evidence *Span
	skip     bool
}

func failf(evidence *Span, format string, args ...any) *finding {
	return &finding{detail: fmt.Sprintf(format, args...), evidence: evidence}
}

// checker is the kind-specific part of a rule.
type checker interface {
	check(def *definition.Definition, dctx *definition.Context) (*finding, error)
}

// rule couples a spec with its kind checker and rendered templates.
type rule struct {
	spec       RuleSpec
	message    *template.Template
	suggestion *template.Template

	checker  checker
	variants map[definition.OntologicalCategory]checker
}

var _ Rule = (*rule)(nil)

func (r *rule) Spec() RuleSpec {
	return r.spec.Clone()
}

func (r *rule) bind(c definition.OntologicalCategory) Rule {
	v, ok := r.variants[c]
	if !ok {
		return r
	}
	bound := *r
	bound.checker = v
	bound.variants = nil
	return &bound
}

// Evaluate runs the checker and renders the outcome.
func (r *rule) Evaluate(def *definition.Definition, dctx *definition.Context) (Outcome, error) {
	if r.spec.CategoryDependent() && !def.Category.Decided() {
		return r.skipped(def, "ontologische categorie onbekend; regel vereist een vastgestelde categorie")
	}

	f, err := r.checker.check(def, dctx)
	if err != nil {
		return Outcome{}, err
	}
	if f == nil {
		return Outcome{
			RuleID:   r.spec.ID,
			Category: r.spec.Category,
			Severity: r.spec.Severity,
			Passed:   true,
			Message:  "voldoet",
		}, nil
	}
	if f.skip {
		return r.skipped(def, f.detail)
	}

	data := r.templateData(def, f)
	message := f.detail
	if r.message != nil {
		if message, err = render(r.message, data); err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{
		RuleID:   r.spec.ID,
		Category: r.spec.Category,
		Severity: r.spec.Severity,
		Passed:   false,
		Message:  message,
		Evidence: f.evidence,
	}
	if r.suggestion != nil {
		s, err := render(r.suggestion, data)
		if err != nil {
			return Outcome{}, err
		}
		out.Suggestion = &s
	}
	return out, nil
}

func (r *rule) skipped(def *definition.Definition, detail string) (Outcome, error) {
	suggestion := "Stel de ontologische categorie vast (TYPE, EXEMPLAAR, PROCES of RESULTAAT) en valideer opnieuw."
	if def.Category.Decided() {
		return Skip(r.spec, detail, nil), nil
	}
	return Skip(r.spec, detail, &suggestion), nil
}

func (r *rule) templateData(def *definition.Definition, f *finding) TemplateData {
	data := TemplateData{
		Term:     def.Term,
		RuleID:   r.spec.ID,
		Category: r.spec.Category,
		Name:     r.spec.Name,
		Detail:   f.detail,
	}
	if f.evidence != nil {
		data.Evidence = f.evidence.Text
	}
	return data
}

func render(t *template.Template, data TemplateData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// parseTemplate compiles a message or suggestion template. Unknown fields
// fail at load time rather than at evaluation time.
func parseTemplate(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if _, err := render(t, TemplateData{}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return t, nil
}
