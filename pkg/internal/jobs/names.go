package jobs

// 任务名称常量.
const (
	JobReconcile = "reconcile.sweep"
	JobRequeue   = "replication.requeue"
)
