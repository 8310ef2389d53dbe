package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarceloManteigass/EpanetAPI/core/network"
	"github.com/MarceloManteigass/EpanetAPI/infra/hydraulics"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Network related commands",
}

var networkLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the pumps and tanks of the configured network",
	RunE:  runNetworkLs,
}

func init() {
	networkCmd.AddCommand(networkLsCmd)
	rootCmd.AddCommand(networkCmd)
}

func runNetworkLs(cmd *cobra.Command, args []string) error {
	cfg, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()
	topo, err := network.LoadTopology(hydraulics.NewToolkit(nil), cfg.Network.InpFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, id := range topo.Pumps {
		fmt.Fprintf(out, "pump\t%s\n", id)
	}
	for _, id := range topo.Tanks {
		fmt.Fprintf(out, "tank\t%s\n", id)
	}
	return nil
}
