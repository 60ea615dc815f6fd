package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/render"
)

func newRenderCommand() *cobra.Command {
	var (
		flags    compileFlags
		reveal   bool
		baseRoot string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "render <params-file>",
		Short: "Preview the config files of a catalog",
		Long: `Compile a parameter file and render neutron.conf and api-paste.ini as
they would look after the catalog is applied.

With --base-root the directives are merged into existing files found
below that directory, so unmanaged keys are kept. Tombstoned keys are
listed as "# key (absent)" comments.

Previews are printed to stdout, or written below --out keeping their
absolute paths. Nothing is ever written to the real /etc.`,
		Example: `  # Print the previews
  froyo-neutron render neutron.yaml

  # Merge into a copy of a host's /etc
  froyo-neutron render neutron.yaml --base-root /srv/snapshots/net1

  # Write previews to a directory
  froyo-neutron render neutron.yaml --out ./preview`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := newPipeline(ctx, &flags)
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.compile(ctx, args[0], false)
			if err != nil {
				return err
			}

			files, err := render.Render(out.Catalog, render.Options{
				RevealSecrets: reveal,
				BaseRoot:      baseRoot,
			})
			if err != nil {
				return err
			}

			if outDir != "" {
				results, err := render.Write(outDir, files)
				if err != nil {
					return err
				}
				for _, r := range results {
					log.Info().
						Str("path", r.Path).
						Int64("bytes", r.BytesWritten).
						Bool("created", r.Created).
						Str("checksum", r.Checksum).
						Msg("Wrote preview")
				}
				return nil
			}

			w := cmd.OutOrStdout()
			for i, f := range files {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "# ==> %s (%d set, %d absent)\n", f.Path, f.Set, f.Absent)
				if _, err := w.Write(f.Content); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&reveal, "reveal-secrets", false, "render secret values in clear text")
	cmd.Flags().StringVar(&baseRoot, "base-root", "", "directory holding existing config files to merge into")
	cmd.Flags().StringVar(&outDir, "out", "", "write previews below this directory instead of stdout")

	return cmd
}
