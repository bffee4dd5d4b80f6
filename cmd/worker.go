package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/workflows"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the pipeline worker",
	Long:  "Runs the durable workflow worker that executes discovery, query generation, scans, citation analysis, memos and citation loops.",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		acts, err := initActivities(e)
		if err != nil {
			return err
		}

		w := workflows.NewWorker(e.temporal, cfg.Temporal.TaskQueue, acts)
		zap.L().Info("worker starting",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
