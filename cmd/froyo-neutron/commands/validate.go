package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var flags compileFlags

	cmd := &cobra.Command{
		Use:   "validate <params-file>...",
		Short: "Validate parameter files",
		Long: `Validate one or more parameter files without printing catalogs.

Each file is loaded, resolved and checked against policies exactly as
compile does. Policy violations are reported; with --policy-mode
enforcing a blocking violation fails validation.

Exit codes: 0 valid, 2 invalid parameters, 3 denied by policy, 1 other
errors.`,
		Example: `  # Validate a single file
  froyo-neutron validate neutron.yaml

  # Validate several files against extra policies
  froyo-neutron validate site/*.yaml --policy policies/ --policy-mode enforcing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := newPipeline(ctx, &flags)
			if err != nil {
				return err
			}
			defer p.Close()

			var firstErr error
			for _, source := range args {
				out, err := p.compile(ctx, source, false)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", source, err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d directives)\n", source, len(out.Catalog.Directives))
				for _, v := range out.Policy.Violations {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", v.String())
				}
				for _, w := range out.Policy.Warnings {
					log.Warn().Str("source", source).Msg(w)
				}
			}

			return firstErr
		},
	}

	flags.register(cmd)

	return cmd
}
