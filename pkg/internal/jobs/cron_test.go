package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/scheduler"
)

type fakeReconciler struct {
	runs   atomic.Int32
	dryRun atomic.Bool
}

func (f *fakeReconciler) Run(_ context.Context, opts service.RunOptions) (*service.Report, error) {
	f.runs.Add(1)
	f.dryRun.Store(opts.DryRun)

	return &service.Report{DryRun: opts.DryRun, Trigger: opts.Trigger}, nil
}

type fakeRequeuer struct{ runs atomic.Int32 }

func (f *fakeRequeuer) Requeue(context.Context) (service.RequeueResult, error) {
	f.runs.Add(1)

	return service.RequeueResult{}, nil
}

func TestRegisterCronJobs(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	cfg := configs.Default()
	cfg.Reconcile.Enabled = true
	cfg.Reconcile.DryRun = true
	cfg.Replication.RequeueEnabled = true

	rec := &fakeReconciler{}
	rq := &fakeRequeuer{}

	require.NoError(t, RegisterCronJobs(context.Background(), sched, cfg, rec, rq))

	infos := sched.GetJobInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, JobReconcile, infos[0].Name)
	assert.Equal(t, cfg.Reconcile.Cron, infos[0].CronExpr)
	assert.Equal(t, JobRequeue, infos[1].Name)

	sched.Start()
	require.NoError(t, sched.RunNow(JobReconcile))
	require.NoError(t, sched.RunNow(JobRequeue))

	assert.Eventually(t, func() bool {
		return rec.runs.Load() == 1 && rq.runs.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, rec.dryRun.Load())
}

func TestRegisterCronJobsDisabled(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	cfg := configs.Default()
	cfg.Reconcile.Enabled = false
	cfg.Replication.RequeueEnabled = false

	require.NoError(t, RegisterCronJobs(context.Background(), sched, cfg, &fakeReconciler{}, &fakeRequeuer{}))
	assert.Empty(t, sched.GetJobInfos())

	assert.Error(t, RegisterCronJobs(context.Background(), nil, cfg, nil, nil))
}
