// Package jobs 负责注册业务定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/log"
	"github.com/yeisme/syncvault/pkg/scheduler"
)

// Reconciler 对账入口.
type Reconciler interface {
	Run(ctx context.Context, opts service.RunOptions) (*service.Report, error)
}

// Requeuer 重新入队入口.
type Requeuer interface {
	Requeue(ctx context.Context) (service.RequeueResult, error)
}

// RegisterCronJobs 按配置注册：
//   - reconcile.cron 执行对账与孤儿回收
//   - replication.requeue_cron 重新投递长时间未复制的记录
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, cfg *configs.AppConfig, rec Reconciler, rq Requeuer) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	l := log.Component("jobs")

	if cfg.Reconcile.Enabled {
		dryRun := cfg.Reconcile.DryRun

		err := sched.AddCron(ctx, JobReconcile, cfg.Reconcile.Cron, func(ctx context.Context) error {
			_, err := rec.Run(ctx, service.RunOptions{DryRun: dryRun, Trigger: service.TriggerSchedule})

			return err
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", JobReconcile, err)
		}
	} else {
		l.Warn().Msg("scheduled reconciliation disabled")
	}

	if cfg.Replication.RequeueEnabled {
		err := sched.AddCron(ctx, JobRequeue, cfg.Replication.RequeueCron, func(ctx context.Context) error {
			_, err := rq.Requeue(ctx)

			return err
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", JobRequeue, err)
		}
	}

	return nil
}
