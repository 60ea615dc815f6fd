package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/froyo-neutron/pkg/config"
	"github.com/openfroyo/froyo-neutron/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		flags       compileFlags
		debounce    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <params-file>...",
		Short: "Recompile parameter files when they change",
		Long: `Compile the given parameter files, then watch them and recompile each
file whenever it is saved.

Policy files and directories given with --policy are watched too; edits
are picked up without a restart. Compile failures are logged and do not
stop the watch. With --store every attempt lands in the compile history.

With --metrics-addr the Prometheus metrics are served over HTTP while
watching. Interrupt to stop.`,
		Example: `  # Watch a parameter file and archive each compile
  froyo-neutron watch neutron.yaml --store state.db

  # Also watch site policies and expose metrics
  froyo-neutron watch neutron.yaml --policy policies/ --metrics-addr :9464`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := newPipeline(ctx, &flags)
			if err != nil {
				return err
			}
			defer p.Close()

			recompile := func(ctx context.Context, source string) {
				out, err := p.compile(ctx, source, true)
				if err != nil {
					log.Error().Err(err).Str("source", source).Msg("Compile failed")
					return
				}
				event := log.Info().
					Str("source", source).
					Str("digest", out.Digest).
					Int("violations", len(out.Policy.Violations))
				if out.Record != nil {
					event = event.Str("catalog_id", out.Record.ID)
				}
				event.Msg("Compiled catalog")
			}

			for _, source := range args {
				recompile(ctx, source)
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				watcher := config.NewWatcher(log.Logger, debounce)
				return watcher.Watch(gctx, args, func(path string) {
					recompile(gctx, path)
				})
			})

			if len(flags.policyPaths) > 0 {
				g.Go(func() error {
					return p.policies.WatchPolicies(gctx, flags.policyPaths)
				})
			}

			if tel := telemetry.FromTelemetryContext(ctx); tel != nil && metricsAddr != "" {
				g.Go(func() error {
					return tel.Metrics.ServeMetrics(gctx, metricsAddr)
				})
			}

			return g.Wait()
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "wait for writes to settle before recompiling")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}
