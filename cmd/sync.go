package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/braxsimmons/Cliopa/internal/pipeline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one call sync",
	Long:  "Extracts recent Five9 recordings, skips calls already synced, fetches transcripts, creates missing agents, stores the calls and audits every call with enough transcript.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSync(ctx, modeSync)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		rescan, _ := cmd.Flags().GetBool("rescan")

		sum, err := env.Pipeline.Run(ctx, pipeline.RunOptions{
			Limit:         limit,
			LookbackHours: lookback,
			Rescan:        rescan,
		})
		if sum != nil {
			formatSummary(os.Stdout, sum)
		}
		return err
	},
}

func init() {
	syncCmd.Flags().Int("limit", 0, "max fresh calls to process (0 = all)")
	syncCmd.Flags().Int("lookback-hours", 0, "extraction window in hours (default from config)")
	syncCmd.Flags().Bool("rescan", false, "also audit stored calls that have no report yet")
	rootCmd.AddCommand(syncCmd)
}
