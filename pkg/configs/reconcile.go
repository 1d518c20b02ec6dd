package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultReconcileCron        = "0 1 * * *" // 每天 01:00
	DefaultGraceWindow          = time.Hour
	DefaultReconcileOpTimeout   = 30 * time.Second
	DefaultMetadataTimeout      = 2 * time.Minute
	DefaultReconcileRunTimeout  = time.Hour
	DefaultReconcileReportTTL   = 7 * 24 * time.Hour
	DefaultReconcileReportLimit = 100 // 报告中最多保留的明细条数
)

// ReconcileConfig 对账与孤儿清理配置.
type ReconcileConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"    rule:"cron"`
	// GraceWindow 比宽限期更新的文件与对象不会被删除，必须覆盖复制最坏耗时
	GraceWindow     time.Duration `mapstructure:"grace_window"     rule:"gt=0"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"       rule:"gt=0"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout" rule:"gt=0"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"      rule:"gt=0"`
	DryRun          bool          `mapstructure:"dry_run"`
	ReportTTL       time.Duration `mapstructure:"report_ttl"`
	ReportLimit     int           `mapstructure:"report_limit"     rule:"min=0"`
}

func (c *ReconcileConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.cron", DefaultReconcileCron)
	v.SetDefault("reconcile.grace_window", DefaultGraceWindow)
	v.SetDefault("reconcile.op_timeout", DefaultReconcileOpTimeout)
	v.SetDefault("reconcile.metadata_timeout", DefaultMetadataTimeout)
	v.SetDefault("reconcile.run_timeout", DefaultReconcileRunTimeout)
	v.SetDefault("reconcile.dry_run", false)
	v.SetDefault("reconcile.report_ttl", DefaultReconcileReportTTL)
	v.SetDefault("reconcile.report_limit", DefaultReconcileReportLimit)
}
