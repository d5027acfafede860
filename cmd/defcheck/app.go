package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/c360studio/defcheck/config"
	"github.com/c360studio/defcheck/metrics"
	definitionvalidator "github.com/c360studio/defcheck/processor/definition-validator"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/storage"
	"github.com/c360studio/defcheck/validation"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// App is the service that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Rules and validation
	registry  *rules.Registry
	metrics   *metrics.Metrics
	watcher   *rules.Watcher
	history   *storage.History
	component *definitionvalidator.Component

	// Metrics endpoint
	metricsServer *http.Server
	metricsAddr   net.Addr
}

// NewApp creates a new application instance and loads the initial rule set.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New(nil)
	registry := rules.NewRegistry(
		rules.WithLogger(logger),
		rules.WithReloadHook(m.ObserveReload))
	if err := registry.Load(cfg.RuleSource()); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
	}, nil
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	// Start NATS (embedded or connect to external)
	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	if a.cfg.NATS.History {
		history, err := a.openHistory(ctx)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		a.history = history
	}

	validator := validation.New(a.registry,
		validation.WithWeights(a.cfg.Weights()),
		validation.WithDefaults(a.cfg.ValidationOptions()),
		validation.WithLogger(a.logger),
		validation.WithRecorder(a.metrics))

	component, err := definitionvalidator.NewComponent(
		definitionvalidator.Config{SubjectPrefix: a.cfg.NATS.SubjectPrefix},
		definitionvalidator.Dependencies{
			Conn:      a.natsConn,
			Registry:  a.registry,
			Validator: validator,
			History:   a.history,
			Logger:    a.logger,
		})
	if err != nil {
		return fmt.Errorf("create definition-validator: %w", err)
	}
	if err := component.Start(ctx); err != nil {
		return fmt.Errorf("start definition-validator: %w", err)
	}
	a.component = component

	if a.cfg.Rules.Watch {
		src, ok := a.cfg.RuleSource().(rules.DirSource)
		if !ok {
			return fmt.Errorf("rule watching requires a rules directory")
		}
		w, err := rules.NewWatcher(a.registry, src, a.cfg.Rules.Debounce, a.logger)
		if err != nil {
			return fmt.Errorf("create rule watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return fmt.Errorf("start rule watcher: %w", err)
		}
		a.watcher = w
	}

	if a.cfg.Metrics.Addr != "" {
		if err := a.startMetrics(); err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
	}

	a.logger.Info("defcheck serving",
		"subject_prefix", a.cfg.NATS.SubjectPrefix,
		"nats_url", a.natsConn.ConnectedUrl(),
		"rule_set_version", a.registry.Snapshot().Version,
		"history", a.history != nil,
		"watch", a.watcher != nil)
	return nil
}

func (a *App) startNATS() error {
	if a.cfg.NATS.URL != "" {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  a.cfg.NATS.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL(), nats.Name(appName))
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

// openHistory opens the configured history backend. The memory store
// serves brokers without JetStream and loses its records on exit.
func (a *App) openHistory(ctx context.Context) (*storage.History, error) {
	if a.cfg.NATS.HistoryStore == config.HistoryStoreMemory {
		a.logger.Warn("Validation history kept in memory only")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewStore(ctx, a.js, a.cfg.NATS.HistoryBucket, a.cfg.NATS.HistoryTTL)
}

func (a *App) startMetrics() error {
	ln, err := net.Listen("tcp", a.cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	a.metricsAddr = ln.Addr()
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics endpoint failed", "error", err)
		}
	}()
	a.logger.Info("Metrics endpoint listening", "addr", a.metricsAddr.String())
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Failed to stop rule watcher", "error", err)
		}
	}

	if a.component != nil {
		if err := a.component.Stop(timeout); err != nil {
			a.logger.Warn("Failed to stop definition-validator", "error", err)
		}
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics endpoint", "error", err)
		}
		cancel()
	}

	// Close NATS connection
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
