package rules

import "fmt"

// Span locates the evidence for an outcome. Start and End are byte offsets
// into the definition text, or into the input Field names when it is set.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
	Field string `json:"field,omitempty"`
}

// FieldTerm marks a Span inside the term.
const FieldTerm = "term"

// ExampleField marks a Span inside the i-th example, counting from zero.
func ExampleField(i int) string {
	return fmt.Sprintf("examples[%d]", i)
}

// Outcome is the result of evaluating one rule against one definition.
type Outcome struct {
	RuleID     string   `json:"rule_id"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Passed     bool     `json:"passed"`
	Skipped    bool     `json:"skipped,omitempty"`
	Message    string   `json:"message"`
	Suggestion *string  `json:"suggestion"`
	Evidence   *Span    `json:"evidence,omitempty"`
}

// Failed reports whether the outcome is an executed, failing check.
func (o *Outcome) Failed() bool {
	return !o.Passed && !o.Skipped
}

// Blocking reports whether the outcome fails the overall gate.
func (o *Outcome) Blocking() bool {
	return o.Severity == SeverityBlocking && !o.Passed
}

// Status summarizes the outcome for metrics and text output.
func (o *Outcome) Status() string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Passed:
		return "passed"
	default:
		return "failed"
	}
}

// Skip builds a skipped outcome at warning severity for spec.
func Skip(spec RuleSpec, message string, suggestion *string) Outcome {
	return Outcome{
		RuleID:     spec.ID,
		Category:   spec.Category,
		Severity:   SeverityWarning,
		Passed:     false,
		Skipped:    true,
		Message:    message,
		Suggestion: suggestion,
	}
}

// ExecutionError builds the blocking outcome that replaces a rule which
// returned an error or panicked.
func ExecutionError(spec RuleSpec, cause error) Outcome {
	return Outcome{
		RuleID:   spec.ID,
		Category: spec.Category,
		Severity: SeverityBlocking,
		Passed:   false,
		Message:  "rule execution error: " + cause.Error(),
	}
}
