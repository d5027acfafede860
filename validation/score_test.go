package validation

import (
	"testing"

	"github.com/c360studio/defcheck/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failed(id string, cat rules.Category, sev rules.Severity) rules.Outcome {
	return rules.Outcome{RuleID: id, Category: cat, Severity: sev, Passed: false, Message: "x"}
}

func passed(id string, cat rules.Category, sev rules.Severity) rules.Outcome {
	return rules.Outcome{RuleID: id, Category: cat, Severity: sev, Passed: true, Message: "voldoet"}
}

func TestComputeScore(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name     string
		outcomes []rules.Outcome
		want     int
	}{
		{"no outcomes", nil, 100},
		{"all passed", []rules.Outcome{passed("STR-01", rules.CategorySTR, rules.SeverityBlocking)}, 100},
		{"blocking ESS", []rules.Outcome{failed("ESS-02", rules.CategoryESS, rules.SeverityBlocking)}, 85},
		{"warning STR", []rules.Outcome{failed("STR-03", rules.CategorySTR, rules.SeverityWarning)}, 97},
		{"info is free", []rules.Outcome{failed("INT-10", rules.CategoryINT, rules.SeverityInfo)}, 100},
		{"skipped is free", []rules.Outcome{rules.Skip(rules.RuleSpec{ID: "ESS-02", Category: rules.CategoryESS}, "x", nil)}, 100},
		{"mixed", []rules.Outcome{
			failed("INT-01", rules.CategoryINT, rules.SeverityBlocking),
			failed("VER-02", rules.CategoryVER, rules.SeverityWarning),
			failed("SAM-06", rules.CategorySAM, rules.SeverityInfo),
		}, 86},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeScore(tt.outcomes, w))
		})
	}
}

func TestComputeScore_Clamped(t *testing.T) {
	var outcomes []rules.Outcome
	for range 20 {
		outcomes = append(outcomes, failed("ESS-03", rules.CategoryESS, rules.SeverityBlocking))
	}
	assert.Equal(t, 0, ComputeScore(outcomes, DefaultWeights()))
}

func TestComputeScore_Monotonic(t *testing.T) {
	w := DefaultWeights()
	outcomes := []rules.Outcome{
		passed("ARAI-01", rules.CategoryARAI, rules.SeverityBlocking),
		failed("STR-03", rules.CategorySTR, rules.SeverityWarning),
	}

	prevScore := ComputeScore(outcomes, w)
	prevPassed := Gate(outcomes)
	for _, cat := range rules.Categories {
		outcomes = append(outcomes, failed(string(cat)+"-99", cat, rules.SeverityBlocking))
		score := ComputeScore(outcomes, w)
		gate := Gate(outcomes)
		assert.LessOrEqual(t, score, prevScore, cat)
		assert.False(t, gate)
		assert.False(t, !prevPassed && gate)
		prevScore, prevPassed = score, gate
	}
}

func TestGate(t *testing.T) {
	assert.True(t, Gate(nil))
	assert.True(t, Gate([]rules.Outcome{
		failed("STR-03", rules.CategorySTR, rules.SeverityWarning),
		failed("INT-10", rules.CategoryINT, rules.SeverityInfo),
		passed("INT-01", rules.CategoryINT, rules.SeverityBlocking),
		rules.Skip(rules.RuleSpec{ID: "ESS-02", Category: rules.CategoryESS, Severity: rules.SeverityBlocking}, "x", nil),
	}))
	assert.False(t, Gate([]rules.Outcome{failed("INT-01", rules.CategoryINT, rules.SeverityBlocking)}))
}

func TestWeights_MergeAndValidate(t *testing.T) {
	w := DefaultWeights().Merge(Weights{Blocking: map[rules.Category]int{rules.CategorySTR: 20}})
	assert.Equal(t, 20, w.Blocking[rules.CategorySTR])
	assert.Equal(t, 15, w.Blocking[rules.CategoryESS])
	assert.Equal(t, 10, DefaultWeights().Blocking[rules.CategorySTR])
	require.NoError(t, w.Validate())

	bad := Weights{Warning: map[rules.Category]int{rules.CategorySTR: -1}}
	assert.ErrorContains(t, bad.Validate(), "negative")

	unknown := Weights{Blocking: map[rules.Category]int{"XYZ": 1}}
	assert.ErrorIs(t, unknown.Validate(), rules.ErrUnknownCategory)
}
