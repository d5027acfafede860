package definitionvalidator

import (
	"fmt"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/storage"
	"github.com/c360studio/defcheck/validation"
)

// ValidateRequest is the request payload for definition validation.
type ValidateRequest struct {
	// Definition is the candidate under validation
	Definition *definition.Definition `json:"definition"`

	// Context replaces Definition.Context when set
	Context *definition.Context `json:"context,omitempty"`

	// Categories restricts validation to these rule categories
	Categories []string `json:"categories,omitempty"`

	// RuleIDs restricts validation to these rules
	RuleIDs []string `json:"rule_ids,omitempty"`

	// TimeoutMs overrides the overall validation budget
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Validate checks the request shape. Definition content is checked by the
// validator.
func (p *ValidateRequest) Validate() error {
	if p.Definition == nil {
		return fmt.Errorf("definition is required")
	}
	if p.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	return nil
}

// Options converts the request filters to validation options.
func (p *ValidateRequest) Options() (validation.Options, error) {
	opts := validation.Options{
		RuleIDs: p.RuleIDs,
		Timeout: time.Duration(p.TimeoutMs) * time.Millisecond,
	}
	for _, s := range p.Categories {
		cat, err := rules.ParseCategory(s)
		if err != nil {
			return validation.Options{}, err
		}
		opts.Categories = append(opts.Categories, cat)
	}
	return opts, nil
}

// ValidateResponse is the response payload for definition validation.
type ValidateResponse struct {
	// Result is the validation result
	Result *validation.Result `json:"result,omitempty"`

	// RecordID identifies the stored result when history is enabled
	RecordID string `json:"record_id,omitempty"`

	// Feedback is the formatted validation feedback for regeneration prompts
	Feedback string `json:"feedback,omitempty"`

	// Error is set if validation could not be performed
	Error string `json:"error,omitempty"`
}

// ReloadResponse is the response payload for a rule reload.
type ReloadResponse struct {
	// Version is the active rule set version after the attempt
	Version uint64 `json:"version"`

	// Rules is the number of rules in the active snapshot
	Rules int `json:"rules"`

	// Error is set when the reload was rejected; the previous rules stay active
	Error string `json:"error,omitempty"`
}

// CatalogRequest is the request payload for the rule catalog.
type CatalogRequest struct {
	// Category restricts the catalog to one rule category
	Category string `json:"category,omitempty"`
}

// CatalogResponse is the response payload for the rule catalog.
type CatalogResponse struct {
	Version uint64           `json:"version"`
	Rules   []rules.RuleSpec `json:"rules"`
	Error   string           `json:"error,omitempty"`
}

// HistoryRequest looks up stored results by record id, by term or across
// all terms. With Delete set it removes the record named by ID instead.
type HistoryRequest struct {
	ID   string `json:"id,omitempty"`
	Term string `json:"term,omitempty"`
	All  bool   `json:"all,omitempty"`

	// Delete removes the record named by ID
	Delete bool `json:"delete,omitempty"`

	// Limit caps the number of records returned for a list (0 = all)
	Limit int `json:"limit,omitempty"`
}

// Validate checks the HistoryRequest.
func (p *HistoryRequest) Validate() error {
	if p.Delete && p.ID == "" {
		return fmt.Errorf("delete requires an id")
	}
	if p.ID == "" && p.Term == "" && !p.All {
		return fmt.Errorf("either id, term or all is required")
	}
	if p.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	return nil
}

// HistoryResponse is the response payload for history lookups.
type HistoryResponse struct {
	Records []*storage.Record `json:"records"`
	Deleted bool              `json:"deleted,omitempty"`
	Error   string            `json:"error,omitempty"`
}
