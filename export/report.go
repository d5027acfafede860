package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"gopkg.in/yaml.v3"
)

// WriteResult writes r to w in the given format.
func WriteResult(w io.Writer, r *validation.Result, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatText:
		_, err := io.WriteString(w, ResultText(r))
		return err
	case FormatYAML:
		return fmt.Errorf("%w: %s result", ErrUnsupported, format)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// WriteCatalog writes the rule descriptors to w in the given format. The
// YAML form is a rule file the registry can load again.
func WriteCatalog(w io.Writer, specs []rules.RuleSpec, format Format) error {
	if specs == nil {
		specs = []rules.RuleSpec{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, specs)
	case FormatText:
		return writeCatalogTable(w, specs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(struct {
			Rules []rules.RuleSpec `yaml:"rules"`
		}{specs}); err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ResultText renders a validation result as a terminal report. Failing
// outcomes are grouped by severity; skipped rules and suggestions follow.
func ResultText(r *validation.Result) string {
	var sb strings.Builder

	if r.Definition != nil {
		fmt.Fprintf(&sb, "Term:     %s\n", r.Definition.Term)
	}
	status := "PASSED"
	if !r.Passed {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "Status:   %s\n", status)
	fmt.Fprintf(&sb, "Score:    %d/100\n", r.Score)
	fmt.Fprintf(&sb, "Rule set: v%d\n", r.RuleSetVersion)
	if r.Incomplete {
		sb.WriteString("\n!! INCOMPLETE: not every rule was executed within the time budget\n")
	}

	for _, sev := range []rules.Severity{rules.SeverityBlocking, rules.SeverityWarning, rules.SeverityInfo} {
		writeOutcomes(&sb, fmt.Sprintf("%s failures", sev), r.Failures(sev))
	}
	writeOutcomes(&sb, "Skipped", r.Skipped())

	if len(r.Suggestions) > 0 {
		sb.WriteString("\nSuggestions\n")
		for i, s := range r.Suggestions {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, s)
		}
	}

	var passed, failed, skipped int
	for _, o := range r.Outcomes {
		switch o.Status() {
		case "passed":
			passed++
		case "skipped":
			skipped++
		default:
			failed++
		}
	}
	fmt.Fprintf(&sb, "\n%d rules: %d passed, %d failed, %d skipped\n", len(r.Outcomes), passed, failed, skipped)
	return sb.String()
}

func writeOutcomes(sb *strings.Builder, title string, outcomes []rules.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d)\n", title, len(outcomes))
	for _, o := range outcomes {
		fmt.Fprintf(sb, "  %-8s [%s] %s\n", o.RuleID, o.Category, o.Message)
		if ev := o.Evidence; ev != nil {
			where := ""
			if ev.Field != "" {
				where = " in " + ev.Field
			}
			fmt.Fprintf(sb, "           evidence: %q at %d-%d%s\n", ev.Text, ev.Start, ev.End, where)
		}
	}
}

func writeCatalogTable(w io.Writer, specs []rules.RuleSpec) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tKIND\tENABLED\tAPPLIES TO\tNAME")
	for _, s := range specs {
		applies := "*"
		if len(s.AppliesTo) > 0 {
			parts := make([]string, len(s.AppliesTo))
			for i, c := range s.AppliesTo {
				parts[i] = string(c)
			}
			applies = strings.Join(parts, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n", s.ID, s.Category, s.Severity, s.Kind, s.Enabled, applies, s.Name)
	}
	return tw.Flush()
}
