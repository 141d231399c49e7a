package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/scheduler"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Host the scheduled sync workflow on Temporal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initSync(cmd.Context(), modeSync)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := scheduler.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		w := scheduler.NewWorker(c, cfg.Temporal.TaskQueue, env.Pipeline)
		zap.L().Info("starting temporal worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "temporal worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
