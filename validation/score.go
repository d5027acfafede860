package validation

import (
	"fmt"
	"maps"

	"github.com/c360studio/defcheck/rules"
)

// Score bounds.
const (
	MaxScore = 100
	MinScore = 0
)

// Weights holds the penalty subtracted from the score per failing outcome,
// by severity and rule category. INFO outcomes never carry a penalty.
type Weights struct {
	Blocking map[rules.Category]int `json:"blocking" yaml:"blocking"`
	Warning  map[rules.Category]int `json:"warning" yaml:"warning"`
}

// DefaultWeights returns the standard penalty table.
func DefaultWeights() Weights {
	return Weights{
		Blocking: map[rules.Category]int{
			rules.CategoryARAI: 10,
			rules.CategoryCON:  10,
			rules.CategoryESS:  15,
			rules.CategoryINT:  12,
			rules.CategorySAM:  8,
			rules.CategorySTR:  10,
			rules.CategoryVER:  8,
		},
		Warning: map[rules.Category]int{
			rules.CategoryARAI: 3,
			rules.CategoryCON:  3,
			rules.CategoryESS:  5,
			rules.CategoryINT:  4,
			rules.CategorySAM:  3,
			rules.CategorySTR:  3,
			rules.CategoryVER:  2,
		},
	}
}

// Merge returns w with the entries of override replacing its own.
func (w Weights) Merge(override Weights) Weights {
	out := Weights{Blocking: maps.Clone(w.Blocking), Warning: maps.Clone(w.Warning)}
	if out.Blocking == nil {
		out.Blocking = make(map[rules.Category]int)
	}
	if out.Warning == nil {
		out.Warning = make(map[rules.Category]int)
	}
	maps.Copy(out.Blocking, override.Blocking)
	maps.Copy(out.Warning, override.Warning)
	return out
}

// Validate rejects negative penalties and unknown categories. Negative
// penalties would let a failure raise the score.
func (w Weights) Validate() error {
	for name, table := range map[string]map[rules.Category]int{"blocking": w.Blocking, "warning": w.Warning} {
		for c, p := range table {
			if _, err := rules.ParseCategory(string(c)); err != nil {
				return fmt.Errorf("%s weights: %w", name, err)
			}
			if p < 0 {
				return fmt.Errorf("%s weights: negative penalty %d for %s", name, p, c)
			}
		}
	}
	return nil
}

// Penalty returns the score penalty for one outcome.
func (w Weights) Penalty(o *rules.Outcome) int {
	if !o.Failed() {
		return 0
	}
	switch o.Severity {
	case rules.SeverityBlocking:
		return w.Blocking[o.Category]
	case rules.SeverityWarning:
		return w.Warning[o.Category]
	default:
		return 0
	}
}

// ComputeScore derives the 0-100 score from outcomes. Skipped outcomes did
// not execute and carry no penalty.
func ComputeScore(outcomes []rules.Outcome, w Weights) int {
	score := MaxScore
	for i := range outcomes {
		score -= w.Penalty(&outcomes[i])
	}
	return min(max(score, MinScore), MaxScore)
}

// Gate reports whether no blocking outcome failed. It is independent of the
// numeric score.
func Gate(outcomes []rules.Outcome) bool {
	for i := range outcomes {
		if outcomes[i].Blocking() {
			return false
		}
	}
	return true
}
