package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/telemetry"
)

// rootOptions are the persistent flags shared by all commands.
type rootOptions struct {
	env           string
	logLevel      string
	logFormat     string
	traceExporter string
	otlpEndpoint  string

	version string
	tel     *telemetry.Telemetry
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	opts := &rootOptions{version: version}
	rootCmd := newRootCommand(opts, commit, buildDate)

	err := rootCmd.ExecuteContext(ctx)

	if opts.tel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ferr := opts.tel.Tracer.ForceFlush(shutdownCtx); ferr != nil {
			log.Warn().Err(ferr).Msg("Trace flush failed")
		}
		if serr := opts.tel.Shutdown(shutdownCtx); serr != nil {
			log.Warn().Err(serr).Msg("Telemetry shutdown failed")
		}
	}

	return err
}

func newRootCommand(opts *rootOptions, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo-neutron",
		Short: "Neutron server configuration resolver",
		Long: `froyo-neutron turns neutron-server parameters into a catalog of ordered
configuration directives.

Features:
  - Parameters from YAML, JSON, CUE or Starlark files
  - Platform-aware package and service names
  - Ordering and refresh graph for packages, config, db sync and service
  - Rego policy checks over every catalog
  - Config file previews and catalog diffs against a SQLite archive`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", opts.version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupTelemetry(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.env, "env", "", "telemetry preset (development, production); explicit flags override it")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); defaults to LOG_LEVEL or info")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
	flags.StringVar(&opts.traceExporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	flags.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP collector endpoint")

	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newFactsCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newVersionCommand(opts.version, commit, buildDate))

	return rootCmd
}

// setupTelemetry builds the telemetry stack from the persistent flags and
// installs it in the command context and the global logger.
func (o *rootOptions) setupTelemetry(cmd *cobra.Command) error {
	cfg, err := o.telemetryConfig(cmd)
	if err != nil {
		return err
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	o.tel = tel

	log.Logger = tel.Logger.Zerolog()
	cmd.SetContext(tel.WithContext(cmd.Context()))
	return nil
}

// telemetryConfig starts from the --env preset and applies the flags the
// user set. LOG_LEVEL sits between the preset and --log-level.
func (o *rootOptions) telemetryConfig(cmd *cobra.Command) (*telemetry.Config, error) {
	var cfg *telemetry.Config
	switch o.env {
	case "":
		cfg = telemetry.DefaultConfig()
	case "development":
		cfg = telemetry.DevelopmentConfig()
	case "production":
		cfg = telemetry.ProductionConfig()
	default:
		return nil, fmt.Errorf("invalid --env %q (must be development or production)", o.env)
	}
	cfg.ServiceVersion = o.version

	changed := cmd.Flags().Changed

	level := ""
	if changed("log-level") {
		level = o.logLevel
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level != "" {
		cfg.Logging.Level = telemetry.ParseLevel(level).String()
	}
	if changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}

	if o.env == "" || changed("trace-exporter") {
		switch o.traceExporter {
		case "", "none":
			cfg.Tracing.Enabled = false
		case "stdout", "otlp":
			cfg.Tracing.Enabled = true
			cfg.Tracing.Exporter = o.traceExporter
		default:
			return nil, fmt.Errorf("invalid --trace-exporter %q (must be none, stdout or otlp)", o.traceExporter)
		}
	}
	if changed("otlp-endpoint") {
		cfg.Tracing.Endpoint = o.otlpEndpoint
	}

	return cfg, nil
}
