package main

import (
	"github.com/spf13/cobra"

	"github.com/braxsimmons/Cliopa/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Register the recurring sync schedule with Temporal",
	Long:  "Creates the interval schedule that starts the sync workflow. Overlapping runs are skipped. An existing schedule is left unchanged.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := scheduler.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		return scheduler.EnsureSchedule(cmd.Context(), c.ScheduleClient(), cfg.Temporal)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
