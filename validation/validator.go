// Package validation runs a rule snapshot against one definition and turns
// the outcomes into a scored, gated result with suggestions.
package validation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/rules"
	"golang.org/x/sync/errgroup"
)

// Default time budgets.
const (
	DefaultRuleTimeout = 50 * time.Millisecond
	DefaultTimeout     = time.Second
)

var (
	// ErrNoRules is returned when no rule snapshot has been loaded.
	ErrNoRules = errors.New("no rules loaded")
	// ErrInvalidDefinition wraps input that cannot be validated at all.
	ErrInvalidDefinition = errors.New("invalid definition")
)

// State is the phase of one validation run.
type State string

// Validation states. DONE is terminal.
const (
	StatePending     State = "PENDING"
	StateRunning     State = "RUNNING"
	StateAggregating State = "AGGREGATING"
	StateDone        State = "DONE"
)

// SnapshotProvider supplies the rule snapshot a validation runs against.
// *rules.Registry implements it.
type SnapshotProvider interface {
	Snapshot() *rules.Snapshot
}

// Recorder observes rule executions and completed validations.
type Recorder interface {
	RuleEvaluated(o *rules.Outcome, elapsed time.Duration)
	ValidationCompleted(r *Result, elapsed time.Duration)
}

// Options tune a single validation. Zero values fall back to the
// validator's defaults.
type Options struct {
	// Categories restricts validation to these rule categories.
	Categories []rules.Category
	// RuleIDs restricts validation to these rules.
	RuleIDs []string
	// RuleTimeout bounds a single rule evaluation.
	RuleTimeout time.Duration
	// Timeout bounds the whole validation.
	Timeout time.Duration
	// Workers caps concurrent rule evaluations.
	Workers int
}

func (o Options) withDefaults(d Options) Options {
	if len(o.Categories) == 0 {
		o.Categories = d.Categories
	}
	if len(o.RuleIDs) == 0 {
		o.RuleIDs = d.RuleIDs
	}
	o.RuleTimeout = cmp.Or(o.RuleTimeout, d.RuleTimeout, DefaultRuleTimeout)
	o.Timeout = cmp.Or(o.Timeout, d.Timeout, DefaultTimeout)
	o.Workers = cmp.Or(o.Workers, d.Workers)
	return o
}

// Validator orchestrates rule execution. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	provider SnapshotProvider
	weights  Weights
	defaults Options
	logger   *slog.Logger
	recorder Recorder
	onState  func(State)
	now      func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithWeights sets the score penalty table.
func WithWeights(w Weights) Option {
	return func(v *Validator) { v.weights = w }
}

// WithDefaults sets the options applied when a call leaves them zero.
func WithDefaults(o Options) Option {
	return func(v *Validator) { v.defaults = o }
}

// WithLogger sets the validator logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(v *Validator) { v.recorder = r }
}

// WithStateHook registers a callback invoked on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(v *Validator) { v.onState = fn }
}

// WithClock overrides the clock used for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a validator reading rules from provider.
func New(provider SnapshotProvider, opts ...Option) *Validator {
	v := &Validator{
		provider: provider,
		weights:  DefaultWeights(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate evaluates every applicable rule of the current snapshot against
// def. dctx defaults to def.Context. The snapshot is captured once, so a
// concurrent reload never mixes rule sets within one result.
//
// When ctx is cancelled no further rules are dispatched, in-flight rules run
// to completion or timeout, and ctx.Err() is returned without a result.
func (v *Validator) Validate(ctx context.Context, def *definition.Definition, dctx *definition.Context, opts Options) (*Result, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if dctx == nil {
		dctx = &def.Context
	}
	snap := v.provider.Snapshot()
	if snap == nil {
		return nil, ErrNoRules
	}

	start := time.Now()
	opts = opts.withDefaults(v.defaults)
	v.transition(StatePending)

	selected := snap.Rules(rules.Filter{
		Categories:  opts.Categories,
		IDs:         opts.RuleIDs,
		Ontological: def.Category,
	})

	v.transition(StateRunning)
	outcomes, incomplete := v.run(ctx, selected, def, dctx, opts)
	if err := ctx.Err(); err != nil {
		v.logger.Debug("Validation cancelled", "term", def.Term, "error", err)
		return nil, err
	}

	v.transition(StateAggregating)
	slices.SortFunc(outcomes, func(a, b rules.Outcome) int {
		switch {
		case rules.Less(a.Category, a.RuleID, b.Category, b.RuleID):
			return -1
		case rules.Less(b.Category, b.RuleID, a.Category, a.RuleID):
			return 1
		}
		return 0
	})

	validated := def.Clone()
	validated.Context = dctx.Clone()
	result := &Result{
		Definition:     validated,
		Score:          ComputeScore(outcomes, v.weights),
		Passed:         Gate(outcomes),
		Incomplete:     incomplete,
		Outcomes:       outcomes,
		Suggestions:    Suggestions(outcomes),
		RuleSetVersion: snap.Version,
		ComputedAt:     v.now().UTC(),
	}
	v.transition(StateDone)

	elapsed := time.Since(start)
	if v.recorder != nil {
		v.recorder.ValidationCompleted(result, elapsed)
	}
	v.logger.Debug("Validation completed",
		"term", def.Term,
		"rules", len(outcomes),
		"score", result.Score,
		"passed", result.Passed,
		"incomplete", result.Incomplete,
		"rule_set_version", result.RuleSetVersion,
		"elapsed", elapsed)
	return result, nil
}

func (v *Validator) transition(s State) {
	if v.onState != nil {
		v.onState(s)
	}
}

// verdict is what one rule slot produced.
type verdict int

const (
	verdictNone verdict = iota // never dispatched
	verdictDone
	verdictBudget // overall budget expired while running
)

// run executes rules on a bounded pool. Every rule yields exactly one
// outcome; rules not executed within the overall budget are skipped and
// mark the result incomplete.
func (v *Validator) run(ctx context.Context, rs []rules.Rule, def *definition.Definition, dctx *definition.Context, opts Options) ([]rules.Outcome, bool) {
	if len(rs) == 0 {
		return []rules.Outcome{}, false
	}

	// The budget is independent of ctx: cancellation discards the result,
	// the budget degrades it.
	budget, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	workers := min(len(rs), 2*runtime.NumCPU())
	if opts.Workers > 0 {
		workers = min(workers, opts.Workers)
	}

	specs := make([]rules.RuleSpec, len(rs))
	for i, r := range rs {
		specs[i] = r.Spec()
	}
	outcomes := make([]rules.Outcome, len(rs))
	verdicts := make([]verdict, len(rs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, r := range rs {
		if ctx.Err() != nil || budget.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil || budget.Err() != nil {
				return nil
			}
			var settled <-chan struct{}
			outcomes[i], verdicts[i], settled = v.evaluate(budget, r, specs[i], def, dctx, opts.RuleTimeout)
			// An overrunning rule keeps its worker slot until it returns or
			// the budget expires; no rule is dispatched after that.
			select {
			case <-settled:
			case <-budget.Done():
			}
			return nil
		})
	}
	_ = g.Wait()

	incomplete := false
	for i := range outcomes {
		switch verdicts[i] {
		case verdictNone:
			outcomes[i] = rules.Skip(specs[i], "niet uitgevoerd: tijdsbudget van de validatie verstreken", nil)
			incomplete = true
		case verdictBudget:
			incomplete = true
		}
	}
	return outcomes, incomplete
}

type evaluation struct {
	outcome rules.Outcome
	err     error
}

// evaluate runs one rule with panic containment and the per-rule timeout.
// A rule that overruns keeps running in its own goroutine; its late result
// is discarded. The returned channel is closed when that goroutine returns.
func (v *Validator) evaluate(budget context.Context, r rules.Rule, spec rules.RuleSpec, def *definition.Definition, dctx *definition.Context, timeout time.Duration) (rules.Outcome, verdict, <-chan struct{}) {
	start := time.Now()
	done := make(chan evaluation, 1)
	settled := make(chan struct{})
	go func() {
		defer close(settled)
		defer func() {
			if p := recover(); p != nil {
				done <- evaluation{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		o, err := r.Evaluate(def, dctx)
		done <- evaluation{outcome: o, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		out rules.Outcome
		vd  = verdictDone
	)
	select {
	case res := <-done:
		if res.err != nil {
			v.logger.Warn("Rule execution failed", "rule_id", spec.ID, "error", res.err)
			out = rules.ExecutionError(spec, res.err)
		} else {
			out = conform(res.outcome, spec)
		}
	case <-timer.C:
		v.logger.Warn("Rule timed out", "rule_id", spec.ID, "timeout", timeout)
		out = rules.Skip(spec, fmt.Sprintf("overgeslagen: regel overschreed tijdslimiet van %s", timeout), nil)
	case <-budget.Done():
		out = rules.Skip(spec, "overgeslagen: tijdsbudget van de validatie verstreken", nil)
		vd = verdictBudget
	}

	if v.recorder != nil {
		v.recorder.RuleEvaluated(&out, time.Since(start))
	}
	return out, vd, settled
}

// conform pins the outcome identity to the rule's spec so a misbehaving rule
// cannot report under another id or an unknown severity.
func conform(o rules.Outcome, spec rules.RuleSpec) rules.Outcome {
	o.RuleID = spec.ID
	o.Category = spec.Category
	if _, err := rules.ParseSeverity(string(o.Severity)); err != nil {
		o.Severity = spec.Severity
	}
	if o.Passed {
		o.Skipped = false
	}
	return o
}
