// Package definitionvalidator provides a NATS request/reply service for
// validating definitions and managing the active rule set.
package definitionvalidator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/storage"
	"github.com/c360studio/defcheck/validation"
	"github.com/nats-io/nats.go"
)

// Dependencies are the collaborators the component serves.
type Dependencies struct {
	// Conn is required by Start; handlers work without it
	Conn *nats.Conn

	// Registry holds the active rule set
	Registry *rules.Registry

	// Validator evaluates definitions against Registry
	Validator *validation.Validator

	// History stores results when set
	History *storage.History

	Logger *slog.Logger
}

// HealthStatus reports whether the component is serving.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	Status     string        `json:"status"`
	Uptime     time.Duration `json:"uptime"`
	ErrorCount int64         `json:"error_count"`
	LastCheck  time.Time     `json:"last_check"`
}

type handlerFunc func(ctx context.Context, data []byte) ([]byte, error)

// Component implements the definition-validator processor.
type Component struct {
	name      string
	config    Config
	conn      *nats.Conn
	registry  *rules.Registry
	validator *validation.Validator
	history   *storage.History
	logger    *slog.Logger

	// Lifecycle
	running       bool
	startTime     time.Time
	mu            sync.RWMutex
	cancel        context.CancelFunc
	subscriptions []*nats.Subscription

	// Metrics
	requestsProcessed atomic.Int64
	validationsPassed atomic.Int64
	validationsFailed atomic.Int64
	requestErrors     atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new definition-validator processor.
func NewComponent(config Config, deps Dependencies) (*Component, error) {
	// Apply defaults if not specified
	defaults := DefaultConfig()
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = defaults.SubjectPrefix
	}
	if config.QueueGroup == "" {
		config.QueueGroup = defaults.QueueGroup
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("rule registry required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = validation.New(deps.Registry, validation.WithLogger(deps.Logger))
	}

	return &Component{
		name:      "definition-validator",
		config:    config,
		conn:      deps.Conn,
		registry:  deps.Registry,
		validator: deps.Validator,
		history:   deps.History,
		logger:    deps.Logger,
	}, nil
}

// handlers maps request subjects to their handlers.
func (c *Component) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		c.config.validateSubject(): c.handleValidate,
		c.config.reloadSubject():   c.handleReload,
		c.config.catalogSubject():  c.handleCatalog,
		c.config.historySubject():  c.handleHistory,
	}
}

// Start begins handling requests.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS connection required")
	}

	// Set running state while holding lock to prevent race condition
	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	var subs []*nats.Subscription
	for subject, h := range c.handlers() {
		sub, err := c.conn.QueueSubscribe(subject, c.config.QueueGroup, func(msg *nats.Msg) {
			c.serve(subCtx, msg, h)
		})
		if err != nil {
			// Rollback running state on failure
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			c.mu.Lock()
			c.running = false
			c.cancel = nil
			c.mu.Unlock()
			cancel()
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subscriptions = subs
	c.mu.Unlock()

	c.logger.Info("definition-validator started",
		"subject_prefix", c.config.SubjectPrefix,
		"queue_group", c.config.QueueGroup,
		"history", c.history != nil)

	return nil
}

// serve runs one request and publishes the reply.
func (c *Component) serve(ctx context.Context, msg *nats.Msg, h handlerFunc) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := h(reqCtx, msg.Data)
	if err != nil {
		c.requestErrors.Add(1)
		c.logger.Warn("Request failed", "subject", msg.Subject, "error", err)
		resp, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(resp); err != nil {
		c.logger.Warn("Failed to send reply", "subject", msg.Subject, "error", err)
	}
}

// handleValidate validates one definition and returns the result.
func (c *Component) handleValidate(ctx context.Context, data []byte) ([]byte, error) {
	// Check for cancellation before processing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.requestsProcessed.Add(1)
	c.updateLastActivity()

	var req ValidateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return c.validateError("failed to parse request: " + err.Error())
	}
	if err := req.Validate(); err != nil {
		return c.validateError(err.Error())
	}
	opts, err := req.Options()
	if err != nil {
		return c.validateError(err.Error())
	}

	result, err := c.validator.Validate(ctx, req.Definition, req.Context, opts)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidDefinition) || errors.Is(err, validation.ErrNoRules) {
			return c.validateError(err.Error())
		}
		return nil, fmt.Errorf("validate %q: %w", req.Definition.Term, err)
	}

	// Track metrics
	if result.Passed {
		c.validationsPassed.Add(1)
	} else {
		c.validationsFailed.Add(1)
	}

	response := &ValidateResponse{
		Result:   result,
		Feedback: result.FormatFeedback(),
	}
	if c.history != nil {
		rec, err := c.history.Save(ctx, result)
		if err != nil {
			// The verdict stands without a stored copy
			c.logger.Warn("Failed to store validation result", "term", req.Definition.Term, "error", err)
		} else {
			response.RecordID = rec.ID
		}
	}

	c.logger.Debug("Validated definition",
		"term", req.Definition.Term,
		"score", result.Score,
		"passed", result.Passed,
		"incomplete", result.Incomplete)

	return json.Marshal(response)
}

func (c *Component) validateError(msg string) ([]byte, error) {
	return json.Marshal(&ValidateResponse{Error: msg})
}

// handleReload reloads rules from the registry's current source.
func (c *Component) handleReload(ctx context.Context, _ []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.updateLastActivity()

	resp := &ReloadResponse{}
	if err := c.registry.ReloadRules(); err != nil {
		resp.Error = err.Error()
	}
	if snap := c.registry.Snapshot(); snap != nil {
		resp.Version = snap.Version
		resp.Rules = snap.Len()
	}
	return json.Marshal(resp)
}

// handleCatalog returns the descriptors of the active rule set.
func (c *Component) handleCatalog(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.updateLastActivity()

	var req CatalogRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return json.Marshal(&CatalogResponse{Rules: []rules.RuleSpec{}, Error: "failed to parse request: " + err.Error()})
		}
	}

	resp := &CatalogResponse{Rules: []rules.RuleSpec{}}
	var filter func(rules.RuleSpec) bool
	if req.Category != "" {
		cat, err := rules.ParseCategory(req.Category)
		if err != nil {
			resp.Error = err.Error()
			return json.Marshal(resp)
		}
		filter = func(s rules.RuleSpec) bool { return s.Category == cat }
	}

	snap := c.registry.Snapshot()
	if snap == nil {
		resp.Error = rules.ErrNoSource.Error()
		return json.Marshal(resp)
	}
	resp.Version = snap.Version
	for _, spec := range snap.Catalog() {
		if filter == nil || filter(spec) {
			resp.Rules = append(resp.Rules, spec)
		}
	}
	return json.Marshal(resp)
}

// handleHistory looks up stored validation results.
func (c *Component) handleHistory(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.updateLastActivity()

	resp := &HistoryResponse{Records: []*storage.Record{}}
	if c.history == nil {
		resp.Error = "history is disabled"
		return json.Marshal(resp)
	}

	var req HistoryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		resp.Error = "failed to parse request: " + err.Error()
		return json.Marshal(resp)
	}
	if err := req.Validate(); err != nil {
		resp.Error = err.Error()
		return json.Marshal(resp)
	}

	if req.Delete {
		if err := c.history.Delete(ctx, req.ID); err != nil {
			resp.Error = err.Error()
			return json.Marshal(resp)
		}
		c.logger.Info("Deleted validation record", "id", req.ID)
		resp.Deleted = true
		return json.Marshal(resp)
	}

	if req.ID != "" {
		rec, err := c.history.Get(ctx, req.ID)
		if err != nil {
			resp.Error = err.Error()
			return json.Marshal(resp)
		}
		resp.Records = append(resp.Records, rec)
		return json.Marshal(resp)
	}

	var (
		records []*storage.Record
		err     error
	)
	if req.Term != "" {
		records, err = c.history.ListByTerm(ctx, req.Term)
	} else {
		records, err = c.history.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	resp.Records = append(resp.Records, records...)
	return json.Marshal(resp)
}

// Stop gracefully stops the component, draining in-flight requests.
func (c *Component) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	deadline := time.Now().Add(timeout)
	var errs []error
	for _, sub := range c.subscriptions {
		if err := sub.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, sub := range c.subscriptions {
		for sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
	c.subscriptions = nil

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("definition-validator stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"validations_passed", c.validationsPassed.Load(),
		"validations_failed", c.validationsFailed.Load())

	return errors.Join(errs...)
}

// Health returns the current health status.
func (c *Component) Health() HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	var uptime time.Duration
	if running {
		status = "running"
		uptime = time.Since(startTime)
	}

	return HealthStatus{
		Healthy:    running,
		Status:     status,
		Uptime:     uptime,
		ErrorCount: c.requestErrors.Load(),
		LastCheck:  time.Now(),
	}
}

// LastActivity returns when the last request was handled.
func (c *Component) LastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}
