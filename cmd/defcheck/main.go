// Package main provides the defcheck binary entry point.
// Defcheck validates term definitions against a hot-reloadable rule set,
// either once from the command line or as a NATS request/reply service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360studio/defcheck/config"
	"github.com/c360studio/defcheck/definition"
	"github.com/c360studio/defcheck/export"
	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "defcheck"
)

// Process exit codes.
const (
	exitPassed = 0
	exitFailed = 1
	exitError  = 2
)

// exitCodeError carries a process exit code out of a command. A nil err exits
// silently.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitError)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code. Usage and
// configuration errors exit with 2, like internal failures.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return exitPassed
	}
	var ee *exitCodeError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Definition validation engine",
		Long: `Defcheck validates term definitions against a modular rule set.

It provides:
- One-shot validation of a definition file with a score and suggestions
- A catalog of the active rules, exportable as a rule file
- A NATS service with hot-reloadable rules, result history and metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		validateCmd(opts),
		rulesCmd(opts),
		serveCmd(opts),
		configCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// setup loads the layered configuration and installs the default logger.
// --log-level wins over the configured level.
func (o *globalOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	bootLevel, err := config.ParseLevel(o.logLevel)
	if err != nil {
		return nil, nil, err
	}
	boot := newLogger(cmd.ErrOrStderr(), bootLevel)

	cfg, err := config.NewLoader(boot).Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	levelName := cfg.Log.Level
	if o.logLevel != "" {
		levelName = o.logLevel
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func validateCmd(g *globalOptions) *cobra.Command {
	var (
		definitionPath string
		contextPath    string
		rulesDir       string
		timeoutMs      int
		format         string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a definition file",
		Long: `Validate one definition against the active rule set and print the result.

Exit status is 0 when the definition passes, 1 when at least one BLOCKING
rule failed and 2 on input, configuration or internal errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return &exitCodeError{code: exitError, err: err}
			}
			if rulesDir != "" {
				cfg.Rules.Dir = rulesDir
			}
			if timeoutMs < 0 {
				return &exitCodeError{code: exitError, err: fmt.Errorf("--timeout-ms must be non-negative")}
			}
			if timeoutMs > 0 {
				cfg.Validation.Timeout = time.Duration(timeoutMs) * time.Millisecond
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return &exitCodeError{code: exitError, err: err}
			}
			if info, _ := export.GetFormatInfo(f); !info.Results {
				return &exitCodeError{code: exitError, err: fmt.Errorf("%w: %s results", export.ErrUnsupported, f)}
			}

			result, err := runValidate(cmd.Context(), cfg, logger, definitionPath, contextPath)
			if err != nil {
				return &exitCodeError{code: exitError, err: err}
			}
			if err := export.WriteResult(cmd.OutOrStdout(), result, f); err != nil {
				return &exitCodeError{code: exitError, err: err}
			}
			if !result.Passed {
				return &exitCodeError{code: exitFailed}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&definitionPath, "definition", "d", "", "Definition file (JSON or YAML)")
	cmd.Flags().StringVar(&contextPath, "context", "", "Context file replacing the definition's context")
	cmd.Flags().StringVarP(&rulesDir, "rules", "r", "", "Rule directory (default: built-in catalog)")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "Overall validation budget in milliseconds")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "Output format (json, text)")
	_ = cmd.MarkFlagRequired("definition")

	return cmd
}

// runValidate loads the inputs and the rule set and validates once.
func runValidate(ctx context.Context, cfg *config.Config, logger *slog.Logger, definitionPath, contextPath string) (*validation.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	def, err := definition.LoadFile(definitionPath)
	if err != nil {
		return nil, err
	}
	var dctx *definition.Context
	if contextPath != "" {
		if dctx, err = definition.LoadContextFile(contextPath); err != nil {
			return nil, err
		}
	}

	registry, err := ruleRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	v := validation.New(registry,
		validation.WithWeights(cfg.Weights()),
		validation.WithDefaults(cfg.ValidationOptions()),
		validation.WithLogger(logger))
	if ctx == nil {
		ctx = context.Background()
	}
	return v.Validate(ctx, def, dctx, validation.Options{})
}

// ruleRegistry returns the process-wide registry for the built-in catalog
// and a freshly loaded one for a rules directory.
func ruleRegistry(cfg *config.Config, logger *slog.Logger) (*rules.Registry, error) {
	if cfg.Rules.Dir == "" {
		return rules.Global(), nil
	}
	registry := rules.NewRegistry(rules.WithLogger(logger))
	if err := registry.Load(cfg.RuleSource()); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return registry, nil
}

func rulesCmd(g *globalOptions) *cobra.Command {
	var (
		rulesDir string
		category string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the rule catalog",
		Long: `Print the descriptors of the active rule set.

The yaml format writes a rule file that can be edited and loaded with --rules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if rulesDir != "" {
				cfg.Rules.Dir = rulesDir
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			registry, err := ruleRegistry(cfg, logger)
			if err != nil {
				return err
			}

			specs := registry.Catalog()
			if category != "" {
				cat, err := rules.ParseCategory(category)
				if err != nil {
					return err
				}
				filtered := specs[:0]
				for _, s := range specs {
					if s.Category == cat {
						filtered = append(filtered, s)
					}
				}
				specs = filtered
			}
			return export.WriteCatalog(cmd.OutOrStdout(), specs, f)
		},
	}

	cmd.Flags().StringVarP(&rulesDir, "rules", "r", "", "Rule directory (default: built-in catalog)")
	cmd.Flags().StringVar(&category, "category", "", "Only list rules of this category")
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatText), "Output format (json, text, yaml)")

	return cmd
}

func serveCmd(g *globalOptions) *cobra.Command {
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve validation requests over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if rulesDir != "" {
				cfg.Rules.Dir = rulesDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			// Setup signal handling
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				app.Shutdown(5 * time.Second)
				return err
			}

			// Block until shutdown signal
			<-ctx.Done()
			logger.Info("Received shutdown signal")
			app.Shutdown(10 * time.Second)
			return nil
		},
	}

	cmd.Flags().StringVarP(&rulesDir, "rules", "r", "", "Rule directory (default: built-in catalog)")

	return cmd
}

func configCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := config.ParseLevel(g.logLevel)
			if err != nil {
				return err
			}
			path, err := config.NewLoader(newLogger(cmd.ErrOrStderr(), level)).EnsureUserConfig()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.setup(cmd)
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	})

	return cmd
}
