package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCompileCommand() *cobra.Command {
	var (
		flags   compileFlags
		format  string
		reveal  bool
		archive bool
	)

	cmd := &cobra.Command{
		Use:   "compile <params-file>",
		Short: "Compile parameters into a catalog",
		Long: `Compile a neutron-server parameter file into a catalog of directives.

The parameter file may be YAML, JSON, CUE or a Starlark script. Facts are
taken from --osfamily/--processorcount, then from a "facts" mapping in the
file, then from the local machine.

The catalog is checked against the built-in and --policy policies. With
--store the catalog is archived and the attempt is recorded in the
compile history.

Secret values are printed as <redacted> unless --reveal-secrets is set.`,
		Example: `  # Compile a YAML parameter file
  froyo-neutron compile neutron.yaml

  # Override parameters and facts
  froyo-neutron compile neutron.cue --set api_workers=8 --osfamily RedHat

  # Fail on blocking policy violations and archive the result
  froyo-neutron compile neutron.yaml --policy-mode enforcing --store state.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := newPipeline(ctx, &flags)
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.compile(ctx, args[0], archive)
			if err != nil {
				return err
			}

			event := log.Info().
				Str("source", out.Source).
				Str("class", out.Catalog.Class).
				Str("digest", out.Digest).
				Int("directives", len(out.Catalog.Directives)).
				Int("violations", len(out.Policy.Violations))
			if out.Record != nil {
				event = event.Str("catalog_id", out.Record.ID)
			}
			event.Msg("Compiled catalog")

			catalog := out.Catalog.Redacted()
			if reveal {
				catalog = out.Catalog
			}
			if err := writeValue(cmd.OutOrStdout(), format, catalog); err != nil {
				return fmt.Errorf("failed to write catalog: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "o", formatJSON, "output format (json, yaml)")
	cmd.Flags().BoolVar(&reveal, "reveal-secrets", false, "print secret values in clear text")
	cmd.Flags().BoolVar(&archive, "archive", true, "archive the catalog when --store is set")

	return cmd
}
