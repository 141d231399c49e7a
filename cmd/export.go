package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/export"
	"github.com/braxsimmons/Cliopa/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export report cards to an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		filter := store.ReportFilter{Limit: limit}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}
		reports, err := st.ListReports(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "export: list reports")
		}
		agents, err := st.ListAgents(ctx)
		if err != nil {
			return eris.Wrap(err, "export: list agents")
		}

		if err := export.NewWorkbook(agents).Save(out, reports); err != nil {
			return err
		}
		zap.L().Info("reports exported", zap.String("path", out), zap.Int("reports", len(reports)))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "reports.xlsx", "output workbook path")
	exportCmd.Flags().Duration("since", 7*24*time.Hour, "only reports newer than this (0 = all)")
	exportCmd.Flags().Int("limit", 5000, "max reports to export")
	rootCmd.AddCommand(exportCmd)
}
