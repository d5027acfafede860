package definitionvalidator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func goldenDefinition() *definition.Definition {
	return &definition.Definition{
		Term:     "verdachte",
		Text:     "persoon tegen wie een redelijk vermoeden van schuld aan een strafbaar feit bestaat.",
		Category: definition.CategoryType,
		Context: definition.Context{
			Organisational: []string{"Openbaar Ministerie"},
			Legal:          []string{"strafrecht"},
			Statutory:      []string{"Wetboek van Strafvordering"},
		},
		Examples: []string{"De verdachte werd door de politie verhoord."},
	}
}

func newTestComponent(t *testing.T, history *storage.History) *Component {
	t.Helper()
	c, err := NewComponent(Config{}, Dependencies{
		Registry: rules.NewDefaultRegistry(),
		History:  history,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return c
}

func call[T any](t *testing.T, h handlerFunc, req any) T {
	t.Helper()
	var data []byte
	if req != nil {
		var err error
		data, err = json.Marshal(req)
		require.NoError(t, err)
	}
	raw, err := h(context.Background(), data)
	require.NoError(t, err)
	var resp T
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestNewComponent(t *testing.T) {
	c := newTestComponent(t, nil)
	assert.Equal(t, "defcheck", c.config.SubjectPrefix)
	assert.Equal(t, 5*time.Second, c.config.RequestTimeout)

	subjects := make([]string, 0)
	for s := range c.handlers() {
		subjects = append(subjects, s)
	}
	assert.ElementsMatch(t, []string{"defcheck.validate", "defcheck.rules.reload", "defcheck.rules.catalog", "defcheck.history"}, subjects)

	_, err := NewComponent(Config{}, Dependencies{})
	assert.ErrorContains(t, err, "registry")

	_, err = NewComponent(Config{SubjectPrefix: "a.*"}, Dependencies{Registry: rules.NewDefaultRegistry()})
	assert.ErrorContains(t, err, "invalid config")
}

func TestHandleValidate(t *testing.T) {
	c := newTestComponent(t, nil)

	t.Run("golden definition passes", func(t *testing.T) {
		resp := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition()})
		require.Empty(t, resp.Error)
		require.NotNil(t, resp.Result)
		assert.True(t, resp.Result.Passed)
		assert.Equal(t, 100, resp.Result.Score)
		assert.Empty(t, resp.Feedback)
		assert.Empty(t, resp.RecordID)
	})

	t.Run("circular definition blocks", func(t *testing.T) {
		def := goldenDefinition()
		def.Text = def.Term
		resp := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: def})
		require.NotNil(t, resp.Result)
		assert.False(t, resp.Result.Passed)
		assert.Contains(t, resp.Feedback, "## Validatie niet geslaagd")
	})

	t.Run("category filter", func(t *testing.T) {
		resp := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition(), Categories: []string{"str"}})
		require.NotNil(t, resp.Result)
		for _, o := range resp.Result.Outcomes {
			assert.Equal(t, rules.CategorySTR, o.Category)
		}
		assert.Len(t, resp.Result.Outcomes, 9)
	})

	t.Run("context override", func(t *testing.T) {
		override := &definition.Context{Legal: []string{"bestuursrecht"}}
		resp := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition(), Context: override})
		require.NotNil(t, resp.Result)
		assert.Equal(t, []string{"bestuursrecht"}, resp.Result.Definition.Context.Legal)
	})

	errorCases := []struct {
		name string
		req  any
		want string
	}{
		{"missing definition", ValidateRequest{}, "definition is required"},
		{"empty text", ValidateRequest{Definition: &definition.Definition{Term: "x"}}, "invalid definition"},
		{"unknown category", ValidateRequest{Definition: goldenDefinition(), Categories: []string{"XYZ"}}, "unknown category"},
		{"negative timeout", ValidateRequest{Definition: goldenDefinition(), TimeoutMs: -1}, "timeout_ms"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := call[ValidateResponse](t, c.handleValidate, tc.req)
			assert.Nil(t, resp.Result)
			assert.Contains(t, resp.Error, tc.want)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		raw, err := c.handleValidate(context.Background(), []byte("{"))
		require.NoError(t, err)
		assert.Contains(t, string(raw), "failed to parse request")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.handleValidate(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	assert.Equal(t, int64(4), c.validationsPassed.Load()+c.validationsFailed.Load())
	assert.GreaterOrEqual(t, c.validationsFailed.Load(), int64(1))
}

func TestHandleValidate_History(t *testing.T) {
	history := storage.NewMemoryStore()
	c := newTestComponent(t, history)

	resp := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition()})
	require.NotEmpty(t, resp.RecordID)

	byID := call[HistoryResponse](t, c.handleHistory, HistoryRequest{ID: resp.RecordID})
	require.Empty(t, byID.Error)
	require.Len(t, byID.Records, 1)
	assert.Equal(t, "verdachte", byID.Records[0].Term)
	assert.Equal(t, resp.Result.Score, byID.Records[0].Result.Score)

	call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition()})
	byTerm := call[HistoryResponse](t, c.handleHistory, HistoryRequest{Term: "verdachte"})
	assert.Len(t, byTerm.Records, 2)

	limited := call[HistoryResponse](t, c.handleHistory, HistoryRequest{Term: "verdachte", Limit: 1})
	assert.Len(t, limited.Records, 1)

	missing := call[HistoryResponse](t, c.handleHistory, HistoryRequest{})
	assert.Contains(t, missing.Error, "either id, term or all")

	unknown := call[HistoryResponse](t, c.handleHistory, HistoryRequest{ID: "not-a-uuid"})
	assert.Contains(t, unknown.Error, "invalid record id")
}

func TestHandleHistory_ListAllAndDelete(t *testing.T) {
	history := storage.NewMemoryStore()
	c := newTestComponent(t, history)

	first := call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: goldenDefinition()})
	require.NotEmpty(t, first.RecordID)
	other := goldenDefinition()
	other.Term = "getuige"
	other.Text = "persoon die over feiten van een strafzaak een verklaring aflegt."
	call[ValidateResponse](t, c.handleValidate, ValidateRequest{Definition: other})

	all := call[HistoryResponse](t, c.handleHistory, HistoryRequest{All: true})
	require.Empty(t, all.Error)
	assert.Len(t, all.Records, 2)

	limited := call[HistoryResponse](t, c.handleHistory, HistoryRequest{All: true, Limit: 1})
	assert.Len(t, limited.Records, 1)

	deleted := call[HistoryResponse](t, c.handleHistory, HistoryRequest{ID: first.RecordID, Delete: true})
	require.Empty(t, deleted.Error)
	assert.True(t, deleted.Deleted)

	gone := call[HistoryResponse](t, c.handleHistory, HistoryRequest{ID: first.RecordID})
	assert.Contains(t, gone.Error, "record not found")
	again := call[HistoryResponse](t, c.handleHistory, HistoryRequest{ID: first.RecordID, Delete: true})
	assert.False(t, again.Deleted)
	assert.Contains(t, again.Error, "record not found")

	remaining := call[HistoryResponse](t, c.handleHistory, HistoryRequest{All: true})
	require.Len(t, remaining.Records, 1)
	assert.Equal(t, "getuige", remaining.Records[0].Term)

	noID := call[HistoryResponse](t, c.handleHistory, HistoryRequest{Term: "getuige", Delete: true})
	assert.Contains(t, noID.Error, "delete requires an id")
}

func TestHandleHistory_Disabled(t *testing.T) {
	c := newTestComponent(t, nil)
	resp := call[HistoryResponse](t, c.handleHistory, HistoryRequest{Term: "verdachte"})
	assert.Equal(t, "history is disabled", resp.Error)
	assert.NotNil(t, resp.Records)
}

func TestHandleCatalog(t *testing.T) {
	c := newTestComponent(t, nil)

	all := call[CatalogResponse](t, c.handleCatalog, nil)
	require.Empty(t, all.Error)
	assert.Len(t, all.Rules, 45)
	assert.Equal(t, uint64(1), all.Version)

	ess := call[CatalogResponse](t, c.handleCatalog, CatalogRequest{Category: "ESS"})
	assert.Len(t, ess.Rules, 5)

	bad := call[CatalogResponse](t, c.handleCatalog, CatalogRequest{Category: "nope"})
	assert.NotEmpty(t, bad.Error)
	assert.Empty(t, bad.Rules)
}

func TestHandleReload(t *testing.T) {
	dir := t.TempDir()
	rulesFile := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesFile, []byte(`
rules:
  - id: STR-03
    kind: ends_with
    category: STR
    severity: WARNING
`), 0o644))

	reg := rules.NewRegistry(rules.WithLogger(discardLogger()))
	require.NoError(t, reg.Load(rules.DirSource{Dir: dir}))
	c, err := NewComponent(Config{}, Dependencies{Registry: reg, Logger: discardLogger()})
	require.NoError(t, err)

	ok := call[ReloadResponse](t, c.handleReload, nil)
	assert.Empty(t, ok.Error)
	assert.Equal(t, uint64(2), ok.Version)
	assert.Equal(t, 1, ok.Rules)

	// A broken edit is rejected and the previous snapshot stays active
	require.NoError(t, os.WriteFile(rulesFile, []byte("rules: [{id: STR-03}, {id: STR-03}]"), 0o644))
	bad := call[ReloadResponse](t, c.handleReload, nil)
	assert.NotEmpty(t, bad.Error)
	assert.Equal(t, uint64(2), bad.Version)
	assert.Equal(t, 1, bad.Rules)
}

func TestComponent_StartRequiresConnection(t *testing.T) {
	c := newTestComponent(t, nil)
	assert.ErrorContains(t, c.Start(context.Background()), "NATS connection required")
	assert.False(t, c.Health().Healthy)
	assert.NoError(t, c.Stop(time.Second))
}
