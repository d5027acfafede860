package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *validation.Result {
	suggestion := "Sluit de definitie af met een punt."
	return &validation.Result{
		Definition: &definition.Definition{Term: "verdachte", Text: "persoon tegen wie"},
		Score:      85,
		Passed:     false,
		Incomplete: true,
		Outcomes: []rules.Outcome{
			{RuleID: "ARAI-01", Category: rules.CategoryARAI, Severity: rules.SeverityWarning, Passed: true, Message: "voldoet"},
			{RuleID: "ESS-02", Category: rules.CategoryESS, Severity: rules.SeverityWarning, Skipped: true, Message: "overgeslagen"},
			{RuleID: "INT-01", Category: rules.CategoryINT, Severity: rules.SeverityBlocking, Message: "definitie herhaalt de term",
				Evidence: &rules.Span{Start: 0, End: 9, Text: "verdachte"}},
			{RuleID: "STR-03", Category: rules.CategorySTR, Severity: rules.SeverityWarning, Message: "geen punt", Suggestion: &suggestion},
		},
		Suggestions:    []string{"Controleer INT regel INT-01", suggestion},
		RuleSetVersion: 3,
		ComputedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{" TEXT ", FormatText, false},
		{"yaml", FormatYAML, false},
		{"turtle", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRegistry(t *testing.T) {
	assert.Equal(t, []Format{FormatJSON, FormatText, FormatYAML}, Formats())
	for _, f := range Formats() {
		info, ok := GetFormatInfo(f)
		require.True(t, ok)
		assert.Equal(t, f, info.Name)
		assert.True(t, strings.HasPrefix(info.Extension, "."))
		assert.NotEmpty(t, info.MIMEType)
	}
	_, ok := GetFormatInfo("rdf")
	assert.False(t, ok)
}

func TestWriteResult_JSON(t *testing.T) {
	r := sampleResult()
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, r, FormatJSON))

	got, err := validation.UnmarshalResult(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, r, got)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"score", "passed", "incomplete", "outcomes", "suggestions", "rule_set_version", "computed_at"} {
		assert.Contains(t, raw, key)
	}
}

func TestWriteResult_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, sampleResult(), FormatText))
	out := buf.String()

	assert.Contains(t, out, "Term:     verdachte\n")
	assert.Contains(t, out, "Status:   FAILED\n")
	assert.Contains(t, out, "Score:    85/100\n")
	assert.Contains(t, out, "Rule set: v3\n")
	assert.Contains(t, out, "INCOMPLETE")
	assert.Contains(t, out, "BLOCKING failures (1)\n  INT-01   [INT] definitie herhaalt de term\n")
	assert.Contains(t, out, "evidence: \"verdachte\" at 0-9\n")
	assert.Contains(t, out, "WARNING failures (1)\n  STR-03   [STR] geen punt\n")
	assert.NotContains(t, out, "INFO failures")
	assert.Contains(t, out, "Skipped (1)\n  ESS-02   [ESS] overgeslagen\n")
	assert.Contains(t, out, "  1. Controleer INT regel INT-01\n  2. Sluit de definitie af met een punt.\n")
	assert.True(t, strings.HasSuffix(out, "4 rules: 1 passed, 2 failed, 1 skipped\n"))

	// Blocking failures are listed before warnings.
	assert.Less(t, strings.Index(out, "INT-01"), strings.Index(out, "STR-03"))
}

func TestWriteResult_TextPassed(t *testing.T) {
	r := &validation.Result{Score: 100, Passed: true, Outcomes: []rules.Outcome{}, Suggestions: []string{}}
	out := ResultText(r)
	assert.Contains(t, out, "Status:   PASSED")
	assert.NotContains(t, out, "INCOMPLETE")
	assert.NotContains(t, out, "Suggestions")
	assert.NotContains(t, out, "Term:")
}

func TestWriteResult_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteResult(&buf, sampleResult(), FormatYAML), ErrUnsupported)
	assert.ErrorIs(t, WriteResult(&buf, sampleResult(), "xml"), ErrUnknownFormat)
	assert.Zero(t, buf.Len())
}

func TestWriteCatalog(t *testing.T) {
	catalog := rules.NewDefaultRegistry().Catalog()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCatalog(&buf, catalog, FormatJSON))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 45)
		assert.Equal(t, "ARAI-01", got[0]["id"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCatalog(&buf, catalog, FormatText))
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 46)
		assert.True(t, strings.HasPrefix(lines[0], "ID"))
		assert.Regexp(t, `(?m)^ARAI-01\s+ARAI\s+\S+\s+\S+\s+true\s+\*\s+`, buf.String())
	})

	t.Run("yaml loads back", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCatalog(&buf, catalog, FormatYAML))

		reg := rules.NewRegistry()
		require.NoError(t, reg.Load(rules.BytesSource{Label: "dump", Data: buf.Bytes()}))
		assert.Equal(t, catalog, reg.Catalog())
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteCatalog(&buf, nil, FormatJSON))
		assert.Equal(t, "[]\n", buf.String())
	})
}

func TestWriteResult_TextEvidenceField(t *testing.T) {
	res := sampleResult()
	res.Outcomes[2].Evidence = &rules.Span{Start: 4, End: 13, Text: "verdachte", Field: rules.ExampleField(0)}

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, res, FormatText))
	assert.Contains(t, buf.String(), "evidence: \"verdachte\" at 4-13 in examples[0]\n")
}
