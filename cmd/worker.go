package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intelbrief/internal/worker"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			lock := worker.NewRunLock(a.redis, a.cfg.Scheduler.LockTTL)
			runner, err := worker.NewRunner(a.orch, a.cfg.Scheduler.Cron, lock, nil)
			if err != nil {
				return err
			}
			if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
