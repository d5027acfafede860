package validation

import (
	"fmt"
	"strings"

	"github.com/c360studio/defcheck/rules"
)

// FormatFeedback renders a result as markdown feedback for a regeneration
// attempt. A passed, complete result without suggestions yields "".
func (r *Result) FormatFeedback() string {
	if r.Passed && !r.Incomplete && len(r.Suggestions) == 0 {
		return ""
	}

	var sb strings.Builder
	if r.Passed {
		sb.WriteString("## Validatie geslaagd met opmerkingen\n\n")
	} else {
		sb.WriteString("## Validatie niet geslaagd\n\n")
	}
	fmt.Fprintf(&sb, "Score: %d/100\n\n", r.Score)

	if r.Incomplete {
		sb.WriteString("Let op: niet alle regels zijn uitgevoerd. Valideer opnieuw voor een definitief oordeel.\n\n")
	}

	for _, sev := range []rules.Severity{rules.SeverityBlocking, rules.SeverityWarning} {
		failures := r.Failures(sev)
		if len(failures) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", sev)
		for _, o := range failures {
			fmt.Fprintf(&sb, "- %s: %s\n", o.RuleID, o.Message)
		}
		sb.WriteString("\n")
	}

	if len(r.Suggestions) > 0 {
		sb.WriteString("### Suggesties\n\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Herschrijf de definitie en verwerk deze punten.\n")
	return sb.String()
}
