// Package configs 管理应用程序配置，包括Metrics的配置信息.
//
// Example:
//
//	config := configs.GetConfig()
//	metricsConfig := config.Metrics
//	if metricsConfig.Enabled {
//		// 初始化Metrics
//	}
package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // 是否启用Metrics
	Namespace      string `mapstructure:"namespace"`       // 指标名前缀
	ServiceName    string `mapstructure:"service_name"`    // 服务名称
	ServiceVersion string `mapstructure:"service_version"` // 服务版本
	// Endpoint 独立指标服务监听地址，为空时挂载到主 HTTP 服务
	Endpoint        string            `mapstructure:"endpoint"`
	Path            string            `mapstructure:"path"`
	RuntimeMetrics  bool              `mapstructure:"runtime_metrics"`  // 是否收集运行时指标
	DBMetrics       bool              `mapstructure:"db_metrics"`       // 是否通过 gorm 插件采集连接池指标
	RefreshInterval time.Duration     `mapstructure:"refresh_interval"` // gorm 插件刷新周期
	Labels          map[string]string `mapstructure:"labels"`           // 默认标签
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "syncvault")
	v.SetDefault("metrics.service_name", "syncvault")
	v.SetDefault("metrics.service_version", AppVersion)
	v.SetDefault("metrics.endpoint", ":9090")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.db_metrics", true)
	v.SetDefault("metrics.refresh_interval", "15s")
	v.SetDefault("metrics.labels", map[string]string{
		"service": "syncvault",
	})
}
