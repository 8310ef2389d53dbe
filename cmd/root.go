package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MarceloManteigass/EpanetAPI/app"
	"github.com/MarceloManteigass/EpanetAPI/config"
	coremon "github.com/MarceloManteigass/EpanetAPI/core/monitoring"
	"github.com/MarceloManteigass/EpanetAPI/infra/logger"
	"github.com/MarceloManteigass/EpanetAPI/infra/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "epanet-opt",
	Short: "Pump schedule optimizer for water distribution networks",
	Long: "Searches the hourly on/off schedule of every pump that minimizes the energy\n" +
		"spent per unit of water stored, replays the best schedule and publishes it.",
	RunE:         runOptimize,
	SilenceUsage: true,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Train, evaluate and publish the best schedule",
	RunE:  runOptimize,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(optimizeCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration and sets up logging and error
// monitoring. The returned func flushes pending monitoring events.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, nil, err
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	return cfg, func() { coremon.Flush(2 * time.Second) }, nil
}

func newService(ctx context.Context) (*app.Service, func(), error) {
	cfg, flush, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.New(cfg)
	if err != nil {
		coremon.CaptureException(err, map[string]string{"module": "cmd", "stage": "setup"})
		flush()
		return nil, nil, err
	}
	svc.Start(ctx)
	return svc, func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
		flush()
	}, nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer coremon.Recover()

	svc, closeSvc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	rep, err := svc.Optimize(ctx)
	if rep != nil {
		out := cmd.OutOrStdout()
		s := rep.Summary
		fmt.Fprintf(out, "run %s: %d trials (%d failed), best objective %.4f at iteration %d\n",
			s.RunID, s.Completed+s.Failed, s.Failed, s.BestObjective, s.BestIteration)
		if len(rep.Results.Pumps) > 0 {
			fmt.Fprintf(out, "energy %.3f kWh, final level %.3f m\n",
				rep.Results.TotalEnergy(), rep.Results.FinalLevel())
		}
		for _, d := range rep.Deliveries {
			fmt.Fprintf(out, "pump %s: command %s acknowledged=%t\n", d.PumpID, d.CommandID, d.Acknowledged)
		}
	}
	return err
}
