package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/telemetry"
)

func newDiffCommand() *cobra.Command {
	var (
		flags   compileFlags
		against string
		format  string
		archive bool
	)

	cmd := &cobra.Command{
		Use:   "diff <params-file>",
		Short: "Compare a catalog with an archived one",
		Long: `Compile a parameter file and compare the result with an archived catalog.

By default the comparison is against the latest catalog archived for the
same parameter file; --against picks a specific catalog ID. The diff
lists added, removed and modified directives, the directives refreshed
through subscribe/notify relations, and the execs that would run.

Secret values are compared through their digests and never printed.`,
		Example: `  # Diff against the last archived compile of this file
  froyo-neutron diff neutron.yaml --store state.db

  # Diff against a specific catalog and archive the new one
  froyo-neutron diff neutron.yaml --store state.db --against 6f1c... --archive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if flags.storePath == "" {
				return engine.NewPermanentError("diff requires --store", nil).
					WithCode(engine.ErrCodeInvalidInput)
			}

			p, err := newPipeline(ctx, &flags)
			if err != nil {
				return err
			}
			defer p.Close()

			var prev *engine.CatalogRecord
			if against != "" {
				prev, err = p.store.GetCatalog(ctx, against)
			} else {
				prev, err = p.store.LatestCatalog(ctx, args[0])
				if engine.HasCode(err, engine.ErrCodeNotFound) {
					log.Info().Str("source", args[0]).Msg("No archived catalog, diffing against an empty one")
					prev, err = nil, nil
				}
			}
			if err != nil {
				return err
			}

			out, err := p.compile(ctx, args[0], archive)
			if err != nil {
				return err
			}

			var prevCatalog *engine.Catalog
			if prev != nil {
				prevCatalog = prev.Catalog
			}
			changes := engine.PlanChanges(prevCatalog, out.Catalog.Sealed())

			if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
				tel.Metrics.AddRefreshes(len(changes.Refreshes))
			}

			if format != "text" {
				return writeValue(cmd.OutOrStdout(), format, changes)
			}
			printChangeSet(cmd.OutOrStdout(), changes)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&against, "against", "", "archived catalog ID to compare with")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&archive, "archive", false, "archive the new catalog after diffing")

	return cmd
}

func printChangeSet(w io.Writer, cs *engine.ChangeSet) {
	if cs.IsEmpty() {
		fmt.Fprintln(w, "No changes.")
		return
	}

	symbols := map[engine.ChangeAction]string{
		engine.ChangeActionAdd:    "+",
		engine.ChangeActionRemove: "-",
		engine.ChangeActionModify: "~",
	}
	for _, c := range cs.Changes {
		switch c.Action {
		case engine.ChangeActionModify:
			fmt.Fprintf(w, "%s %s: %s => %s\n", symbols[c.Action], c.Ref, c.Before, c.After)
		case engine.ChangeActionAdd:
			fmt.Fprintf(w, "%s %s: %s\n", symbols[c.Action], c.Ref, c.After)
		default:
			fmt.Fprintf(w, "%s %s: %s\n", symbols[c.Action], c.Ref, c.Before)
		}
	}

	for _, r := range cs.Refreshes {
		fmt.Fprintf(w, "! refresh %s (via %v)\n", r.Target, r.Causes)
	}
	for _, ref := range cs.Execs {
		fmt.Fprintf(w, "> run %s\n", ref)
	}

	fmt.Fprintf(w, "\n%d change(s), %d refresh(es), %d exec(s)\n",
		len(cs.Changes), len(cs.Refreshes), len(cs.Execs))
}
