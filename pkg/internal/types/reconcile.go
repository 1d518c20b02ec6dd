package types

// ReconcileRequest 手动触发对账的参数.
type ReconcileRequest struct {
	DryRun bool `form:"dry_run"`
}
