package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect catalog policies",
		Long: `Inspect the Rego policies every catalog is checked against.

Built-in policies:
  - secret-values: sensitive keys must be marked secret
  - refreshonly-exec: execs only run on refresh
  - package-ordering: services come after their package
  - exec-trigger: refreshonly execs need a trigger`,
	}

	cmd.AddCommand(newPolicyListCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	var (
		paths  []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in and custom policies",
		Example: `  # List built-in policies
  froyo-neutron policy list

  # Include site policies
  froyo-neutron policy list --policy policies/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pe, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if err := pe.LoadPolicies(cmd.Context(), paths); err != nil {
				return err
			}

			policies := pe.ListPolicies()
			if format != "text" {
				return writeValue(cmd.OutOrStdout(), format, policies)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tBUILTIN\tENABLED\tDESCRIPTION")
			for _, p := range policies {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", p.Name, p.Severity, p.Builtin, p.Enabled, p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&paths, "policy", nil, "additional .rego policy files or directories")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format (text, json, yaml)")

	return cmd
}
