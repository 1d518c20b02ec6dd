package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/syncvault/pkg/app"
	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage"
)

// drainPoll 等待复制队列清空的轮询间隔.
const drainPoll = 200 * time.Millisecond

var (
	dryRun bool

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "run one reconciliation sweep and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg := configs.GetConfig()

			mgr, err := storage.Open(ctx, cfg, storage.WithoutMQ())
			if err != nil {
				return err
			}
			defer mgr.Close()

			svcs := app.NewServices(cfg, mgr)

			rep, runErr := svcs.Reconciler.Run(ctx, service.RunOptions{DryRun: dryRun, Trigger: service.TriggerCLI})
			if rep != nil {
				if err := printJSON(cmd, rep); err != nil {
					return err
				}
			}

			return runErr
		},
	}

	requeueCmd = &cobra.Command{
		Use:   "requeue",
		Short: "replicate records whose remote copy is still missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cfg := configs.GetConfig()

			mgr, err := storage.Open(ctx, cfg, storage.WithoutMQ())
			if err != nil {
				return err
			}
			defer mgr.Close()

			repl := app.NewServices(cfg, mgr).Replicator
			repl.Start(ctx)
			defer repl.Stop()

			res, err := repl.Requeue(ctx)
			if err != nil {
				return err
			}

			// 等待本次入队的任务全部处理完
			ticker := time.NewTicker(drainPoll)
			defer ticker.Stop()

			for {
				st := repl.Stats()
				if done := st.Succeeded + st.Failed + st.Skipped; st.Depth == 0 && done >= uint64(res.Enqueued) {
					return printJSON(cmd, map[string]any{"requeue": res, "replication": st})
				}

				select {
				case <-ctx.Done():
					return errors.Join(ctx.Err(), printJSON(cmd, map[string]any{"requeue": res, "replication": repl.Stats()}))
				case <-ticker.C:
				}
			}
		},
	}
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

func registerMaintenanceCommands() {
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(requeueCmd)
}
