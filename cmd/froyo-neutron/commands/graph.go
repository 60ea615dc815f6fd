package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

func newGraphCommand() *cobra.Command {
	var (
		flags  compileFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "graph <params-file>",
		Short: "Show the ordering graph of a catalog",
		Long: `Compile a parameter file and print the ordering graph of its directives.

Formats:
  - dot:    Graphviz DOT, one cluster per level, refresh edges in red
  - levels: directives grouped by level, one level per line
  - json:   nodes, edges, roots and levels`,
		Example: `  # Render the graph with Graphviz
  froyo-neutron graph neutron.yaml | dot -Tsvg > neutron.svg

  # Show the apply levels
  froyo-neutron graph neutron.yaml --format levels`,
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

			builder := engine.NewGraphBuilder()
			graph, err := builder.BuildGraph(out.Catalog)
			if err != nil {
				return err
			}
			if err := builder.ValidateGraph(graph); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch format {
			case "dot":
				_, err = fmt.Fprint(w, builder.ToDOT())
			case "levels":
				for level, ids := range builder.GetLevels() {
					if _, err = fmt.Fprintf(w, "%d: %s\n", level, strings.Join(ids, ", ")); err != nil {
						break
					}
				}
			case formatJSON:
				err = writeValue(w, formatJSON, graph)
			default:
				return fmt.Errorf("unsupported format %q (must be dot, levels or json)", format)
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "o", "dot", "output format (dot, levels, json)")

	return cmd
}
