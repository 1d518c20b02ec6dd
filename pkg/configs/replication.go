package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultReplicationWorkers     = 4
	DefaultReplicationQueueSize   = 1024
	DefaultReplicationTimeout     = 60 * time.Second
	DefaultReplicationMaxAttempts = 3
	DefaultReplicationBackoff     = time.Second
	DefaultReplicationMaxBackoff  = 30 * time.Second
	DefaultRequeueAfter           = 10 * time.Minute
	DefaultRequeueCron            = "*/10 * * * *"
	DefaultMaxRequeues            = 5
	DefaultRequeueBatch           = 500
)

// ReplicationConfig 异步复制配置.
type ReplicationConfig struct {
	Workers        int           `mapstructure:"workers"         rule:"min=1,max=256"`
	QueueSize      int           `mapstructure:"queue_size"      rule:"min=1"`
	Timeout        time.Duration `mapstructure:"timeout"         rule:"gt=0"` // 单次上传超时
	MaxAttempts    int           `mapstructure:"max_attempts"    rule:"min=1,max=20"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" rule:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"     rule:"gt=0"`

	// 补偿扫描：remote_url 仍为空且早于 RequeueAfter 的记录重新入队
	RequeueEnabled bool          `mapstructure:"requeue_enabled"`
	RequeueAfter   time.Duration `mapstructure:"requeue_after"   rule:"gt=0"`
	RequeueCron    string        `mapstructure:"requeue_cron"    rule:"cron"`
	MaxRequeues    int           `mapstructure:"max_requeues"    rule:"min=1"`
	RequeueBatch   int           `mapstructure:"requeue_batch"   rule:"min=1"`
}

// WorstCase 单个复制任务的最长耗时估计：每次尝试都超时并且每次等待都达到上限.
func (c *ReplicationConfig) WorstCase() time.Duration {
	if c.MaxAttempts <= 0 {
		return c.Timeout
	}

	return c.Timeout*time.Duration(c.MaxAttempts) + c.MaxBackoff*time.Duration(c.MaxAttempts-1)
}

func (c *ReplicationConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("replication.workers", DefaultReplicationWorkers)
	v.SetDefault("replication.queue_size", DefaultReplicationQueueSize)
	v.SetDefault("replication.timeout", DefaultReplicationTimeout)
	v.SetDefault("replication.max_attempts", DefaultReplicationMaxAttempts)
	v.SetDefault("replication.initial_backoff", DefaultReplicationBackoff)
	v.SetDefault("replication.max_backoff", DefaultReplicationMaxBackoff)
	v.SetDefault("replication.requeue_enabled", true)
	v.SetDefault("replication.requeue_after", DefaultRequeueAfter)
	v.SetDefault("replication.requeue_cron", DefaultRequeueCron)
	v.SetDefault("replication.max_requeues", DefaultMaxRequeues)
	v.SetDefault("replication.requeue_batch", DefaultRequeueBatch)
}
