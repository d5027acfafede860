package rules

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Registry owns the active rule snapshot. Reads are lock-free; loads are
// serialized and publish a new snapshot only after it is fully built and
// validated.
type Registry struct {
	active atomic.Pointer[Snapshot]

	mu      sync.Mutex // serializes writers
	source  Source
	version uint64

	logger *slog.Logger
	hooks  []ReloadHook
	now    func() time.Time
}

// ReloadHook observes every load attempt. snap is nil when err is set.
type ReloadHook func(snap *Snapshot, err error)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReloadHook registers a hook called after every load attempt.
func WithReloadHook(h ReloadHook) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, h)
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry. Until the first successful Load
// every selection returns no rules.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load parses, validates and builds the rules from src and makes them the
// active snapshot. On error the previous snapshot stays active.
func (r *Registry) Load(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(src)
}

// Reload is Load under the name used by management callers.
func (r *Registry) Reload(src Source) error {
	return r.Load(src)
}

// ReloadRules rebuilds the snapshot from the most recently loaded source.
func (r *Registry) ReloadRules() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source == nil {
		return ErrNoSource
	}
	return r.loadLocked(r.source)
}

func (r *Registry) loadLocked(src Source) error {
	snap, err := r.build(src)
	r.notify(snap, err)
	if err != nil {
		r.logger.Warn("Rule load rejected, keeping active snapshot",
			"source", src.Name(),
			"active_version", r.activeVersion(),
			"error", err)
		return err
	}

	r.version = snap.Version
	r.source = src
	r.active.Store(snap)

	r.logger.Info("Rule snapshot activated",
		"source", src.Name(),
		"version", snap.Version,
		"rules", snap.Len())
	return nil
}

func (r *Registry) build(src Source) (*Snapshot, error) {
	specs, err := src.Specs()
	if err != nil {
		return nil, withSource(err, src.Name())
	}
	built, err := BuildAll(specs)
	if err != nil {
		return nil, withSource(err, src.Name())
	}
	snap, err := NewSnapshot(r.version+1, src.Name(), built)
	if err != nil {
		return nil, withSource(err, src.Name())
	}
	snap.LoadedAt = r.now()
	return snap, nil
}

func (r *Registry) notify(snap *Snapshot, err error) {
	for _, h := range r.hooks {
		h(snap, err)
	}
}

func (r *Registry) activeVersion() uint64 {
	if s := r.active.Load(); s != nil {
		return s.Version
	}
	return 0
}

// Snapshot returns the active snapshot, or nil before the first load.
func (r *Registry) Snapshot() *Snapshot {
	return r.active.Load()
}

// Install activates a snapshot built outside the registry, e.g. one that
// mixes custom Rule implementations with built-in kinds. The version is
// reassigned so versions stay monotonic.
func (r *Registry) Install(rs []Rule, source string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := NewSnapshot(r.version+1, source, rs)
	if err != nil {
		err = withSource(err, source)
		r.notify(nil, err)
		return nil, err
	}
	snap.LoadedAt = r.now()
	r.notify(snap, nil)
	r.version = snap.Version
	r.active.Store(snap)
	return snap, nil
}

// GetRules returns the active, enabled rules matching f.
func (r *Registry) GetRules(f Filter) []Rule {
	return r.active.Load().Rules(f)
}

// Catalog returns the descriptors of the active snapshot.
func (r *Registry) Catalog() []RuleSpec {
	return r.active.Load().Catalog()
}
