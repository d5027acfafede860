package validation

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/c360studio/defcheck/rules"
)

// FallbackSuggestion is used for failing outcomes without a rendered
// suggestion.
func FallbackSuggestion(category rules.Category, ruleID string) string {
	return fmt.Sprintf("Controleer %s regel %s", category, ruleID)
}

// Suggestions derives the ordered, deduplicated improvement list from
// outcomes: blocking before warning, then by category and rule id. INFO
// outcomes never produce a suggestion; skipped outcomes only when the rule
// supplied one.
func Suggestions(outcomes []rules.Outcome) []string {
	candidates := make([]*rules.Outcome, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.Passed || o.Severity == rules.SeverityInfo {
			continue
		}
		if o.Skipped && o.Suggestion == nil {
			continue
		}
		candidates = append(candidates, o)
	}

	slices.SortStableFunc(candidates, func(a, b *rules.Outcome) int {
		if c := cmp.Compare(a.Severity.Rank(), b.Severity.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(slices.Index(rules.Categories, a.Category), slices.Index(rules.Categories, b.Category)); c != 0 {
			return c
		}
		return cmp.Compare(a.RuleID, b.RuleID)
	})

	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, o := range candidates {
		s := FallbackSuggestion(o.Category, o.RuleID)
		if o.Suggestion != nil && strings.TrimSpace(*o.Suggestion) != "" {
			s = *o.Suggestion
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
