package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit stored calls that have a transcript but no report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSync(ctx, modeAudit)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.Sync.RescanLimit
		}

		sum, err := env.Pipeline.Audit(ctx, limit)
		if sum != nil {
			formatSummary(os.Stdout, sum)
		}
		return err
	},
}

func init() {
	auditCmd.Flags().Int("limit", 0, "max calls to audit (default sync.rescan_limit)")
	rootCmd.AddCommand(auditCmd)
}
