package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MarceloManteigass/EpanetAPI/core/trials"
)

var (
	trialsRunID    string
	trialsImproved bool
	trialsSince    time.Duration
)

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "Trial audit log commands",
}

var trialsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded trials",
	RunE:  runTrialsLs,
}

func init() {
	trialsLsCmd.Flags().StringVar(&trialsRunID, "run", "", "only trials of this training run")
	trialsLsCmd.Flags().BoolVar(&trialsImproved, "improved", false, "only trials that improved the best objective")
	trialsLsCmd.Flags().DurationVar(&trialsSince, "since", 0, "only trials newer than this duration")
	trialsCmd.AddCommand(trialsLsCmd)
	rootCmd.AddCommand(trialsCmd)
}

func runTrialsLs(cmd *cobra.Command, args []string) error {
	cfg, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()
	store, err := trials.NewStore(cfg.Trials)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := trials.Query{RunID: trialsRunID, ImprovedOnly: trialsImproved}
	if trialsSince > 0 {
		q.Start = time.Now().Add(-trialsSince)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range recs {
		line := fmt.Sprintf("%s\t%s\t%d\t%.4f\t%.3f\t%.3f", r.Timestamp.Format(time.RFC3339), r.RunID,
			r.Iteration, r.Objective, r.TotalEnergy, r.FinalLevel)
		if r.Improved {
			line += "\timproved"
		}
		if r.Error != "" {
			line += "\terror: " + r.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
