package validation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
)

// Result is the immutable output of one validation. Its JSON form is the
// stable contract consumed by reporting tools.
type Result struct {
	Definition     *definition.Definition `json:"definition,omitempty"`
	Score          int                    `json:"score"`
	Passed         bool                   `json:"passed"`
	Incomplete     bool                   `json:"incomplete"`
	Outcomes       []rules.Outcome        `json:"outcomes"`
	Suggestions    []string               `json:"suggestions"`
	RuleSetVersion uint64                 `json:"rule_set_version"`
	ComputedAt     time.Time              `json:"computed_at"`
}

// Failures returns the failing outcomes of the given severity.
func (r *Result) Failures(sev rules.Severity) []rules.Outcome {
	var out []rules.Outcome
	for _, o := range r.Outcomes {
		if o.Failed() && o.Severity == sev {
			out = append(out, o)
		}
	}
	return out
}

// Skipped returns the outcomes of rules that did not produce a verdict.
func (r *Result) Skipped() []rules.Outcome {
	var out []rules.Outcome
	for _, o := range r.Outcomes {
		if o.Skipped {
			out = append(out, o)
		}
	}
	return out
}

// Marshal encodes the result in its JSON contract form.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResult decodes a result produced by Marshal.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal validation result: %w", err)
	}
	if r.Outcomes == nil {
		r.Outcomes = []rules.Outcome{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	return &r, nil
}
