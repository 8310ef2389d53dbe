package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MarceloManteigass/EpanetAPI/core/optimizer"
	"github.com/MarceloManteigass/EpanetAPI/pkg/export"
)

var schedulePath string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the network once with a schedule file",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&schedulePath, "schedule", "", "schedule file (yaml or json)")
	_ = simulateCmd.MarkFlagRequired("schedule")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := export.ReadScheduleFile(schedulePath)
	if err != nil {
		return fmt.Errorf("read schedule: %w", err)
	}
	svc, closeSvc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	res, err := svc.Simulate(ctx, sched)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "energy %.3f kWh, final level %.3f m, objective %.4f\n",
		res.TotalEnergy(), res.FinalLevel(), optimizer.EnergyPerStoredWater(res))
	return nil
}
