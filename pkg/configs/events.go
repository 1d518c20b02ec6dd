package configs

import "github.com/spf13/viper"

// EventsConfig 控制生命周期事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled bool              `mapstructure:"enabled"` // 总开关
	File    FileEventsConfig  `mapstructure:"file"`
	Sweep   SweepEventsConfig `mapstructure:"sweep"`
}

// FileEventsConfig 文件生命周期事件开关。
type FileEventsConfig struct {
	Stored            bool `mapstructure:"stored"`
	Replicated        bool `mapstructure:"replicated"`
	ReplicationFailed bool `mapstructure:"replication_failed"`
	Deleted           bool `mapstructure:"deleted"`
}

// SweepEventsConfig 对账相关事件开关。
type SweepEventsConfig struct {
	OrphanRemoved bool `mapstructure:"orphan_removed"`
	Inconsistent  bool `mapstructure:"inconsistent"`
	Completed     bool `mapstructure:"completed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.file.stored", true)
	v.SetDefault("events.file.replicated", true)
	v.SetDefault("events.file.replication_failed", true)
	v.SetDefault("events.file.deleted", true)

	// 每个孤儿一条事件，量可能很大，默认关闭
	v.SetDefault("events.sweep.orphan_removed", false)
	v.SetDefault("events.sweep.inconsistent", true)
	v.SetDefault("events.sweep.completed", true)
}
