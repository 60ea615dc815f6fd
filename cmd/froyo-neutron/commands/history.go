package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
	"github.com/openfroyo/froyo-neutron/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the catalog archive",
		Long: `Inspect the SQLite catalog archive written by compile --store.

The archive keeps every archived catalog, with secrets sealed, and an
append-only log of compile attempts including failures.`,
	}

	cmd.PersistentFlags().StringVar(&storePath, "store", "froyo-neutron.db", "SQLite catalog archive path")

	cmd.AddCommand(newHistoryEventsCommand(&storePath))
	cmd.AddCommand(newHistoryCatalogsCommand(&storePath))
	cmd.AddCommand(newHistoryShowCommand(&storePath))
	cmd.AddCommand(newHistoryRemoveCommand(&storePath))

	return cmd
}

// withStore opens the archive at path for the duration of fn.
func withStore(ctx context.Context, path string, fn func(stores.Store) error) error {
	store, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.HealthCheck(ctx); err != nil {
		return err
	}
	return fn(store)
}

func newHistoryEventsCommand(storePath *string) *cobra.Command {
	var (
		source string
		limit  int
		offset int
		format string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List compile attempts",
		Long: `List recorded compile attempts, newest first.

Each event shows its result (success, validation_failed, policy_denied or
error), the offending parameter for validation failures and the archived
catalog ID for successful compiles.`,
		Example: `  # Show the last 20 compile attempts
  froyo-neutron history events --store state.db

  # Show attempts for one parameter file
  froyo-neutron history events --source neutron.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *storePath, func(store stores.Store) error {
				var filter *string
				if source != "" {
					filter = &source
				}
				events, err := store.ListCompileEvents(cmd.Context(), filter, limit, offset)
				if err != nil {
					return err
				}

				if format != "text" {
					return writeValue(cmd.OutOrStdout(), format, events)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTIME\tRESULT\tSOURCE\tDETAIL")
				for _, e := range events {
					detail := ""
					switch {
					case e.CatalogID != nil:
						detail = *e.CatalogID
					case e.Parameter != nil:
						detail = *e.Parameter
					case e.Message != nil:
						detail = *e.Message
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
						e.ID, e.Timestamp.Format(time.RFC3339), e.Result, e.Source, detail)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only show attempts for this parameter file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of events to skip")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format (text, json, yaml)")

	return cmd
}

func newHistoryCatalogsCommand(storePath *string) *cobra.Command {
	var (
		limit  int
		offset int
		format string
	)

	cmd := &cobra.Command{
		Use:     "catalogs",
		Short:   "List archived catalogs",
		Example: `  froyo-neutron history catalogs --store state.db --limit 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *storePath, func(store stores.Store) error {
				records, err := store.ListCatalogs(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}

				if format != "text" {
					return writeValue(cmd.OutOrStdout(), format, records)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCREATED\tOSFAMILY\tDIRECTIVES\tDIGEST\tSOURCE")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						r.ID, r.CreatedAt.Format(time.RFC3339), r.OSFamily, r.DirectiveCount, r.Digest, r.Source)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of catalogs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of catalogs to skip")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format (text, json, yaml)")

	return cmd
}

func newHistoryShowCommand(storePath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "show <catalog-id>",
		Short:   "Print an archived catalog",
		Example: `  froyo-neutron history show 6f1c2a9e-... --format yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *storePath, func(store stores.Store) error {
				record, err := store.GetCatalog(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeValue(cmd.OutOrStdout(), format, record)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatJSON, "output format (json, yaml)")

	return cmd
}

func newHistoryRemoveCommand(storePath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <catalog-id>...",
		Short:   "Delete archived catalogs",
		Example: `  froyo-neutron history rm 6f1c2a9e-...`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *storePath, func(store stores.Store) error {
				for _, id := range args {
					if err := store.DeleteCatalog(cmd.Context(), id); err != nil {
						if engine.HasCode(err, engine.ErrCodeNotFound) {
							log.Warn().Str("catalog_id", id).Msg("Catalog not found")
							continue
						}
						return err
					}
					log.Info().Str("catalog_id", id).Msg("Deleted catalog")
				}
				return nil
			})
		},
	}

	return cmd
}
