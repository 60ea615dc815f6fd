package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/froyo-neutron/pkg/engine"
)

func newFactsCommand() *cobra.Command {
	var (
		osRelease string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Show the facts of this machine",
		Long: `Discover the facts compile would use on this machine.

Facts:
  - osfamily: derived from ID and ID_LIKE in os-release
  - processorcount: the number of usable CPUs`,
		Example: `  # Show local facts
  froyo-neutron facts

  # Read a different os-release file
  froyo-neutron facts --os-release /srv/snapshots/net1/etc/os-release -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := engine.DiscoverLocalFacts(osRelease)
			if err != nil {
				return err
			}
			return writeValue(cmd.OutOrStdout(), format, facts)
		},
	}

	cmd.Flags().StringVar(&osRelease, "os-release", engine.DefaultOSReleasePath, "os-release file to read")
	cmd.Flags().StringVarP(&format, "format", "o", formatJSON, "output format (json, yaml)")

	return cmd
}
