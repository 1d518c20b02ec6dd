// Package configs 管理应用程序配置，包括数据库、本地存储、对象存储、复制与对账任务的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing reconcile config:
//
//	config := configs.GetConfig()
//	grace := config.Reconcile.GraceWindow
//	fmt.Println("grace window:", grace)
//
// 环境变量使用 SYNCVAULT_ 前缀，层级用下划线分隔，例如 SYNCVAULT_DB_TYPE=pg.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/syncvault/pkg/rule"
)

// AppVersion 当前应用版本.
const AppVersion = "0.3.0"

// EnvPrefix 环境变量前缀.
const EnvPrefix = "SYNCVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // 服务器端口、超时、调试开关
		DB             DBConfig             `mapstructure:"db"`              // 元数据库
		S3             S3Config             `mapstructure:"s3"`              // 远端对象存储
		Storage        StorageConfig        `mapstructure:"storage"`         // 本地文件存储
		Replication    ReplicationConfig    `mapstructure:"replication"`     // 异步复制
		Reconcile      ReconcileConfig      `mapstructure:"reconcile"`       // 孤儿清理
		MQ             MQConfig             `mapstructure:"mq"`              // 事件总线
		Events         EventsConfig         `mapstructure:"events"`          // 事件开关
		KV             KVConfig             `mapstructure:"kv"`              // 键值存储
		Log            LogConfig            `mapstructure:"log"`             // 日志
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // 指标
		Tracing        TracingConfig        `mapstructure:"tracing"`         // 链路追踪
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // HTTP 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // HTTP 熔断
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	mu       sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// path 可以是文件或目录；目录下找不到配置文件时只使用默认值与环境变量.
func InitConfig(path string) error {
	v, cfg, err := load(path)
	if err != nil {
		return err
	}

	mu.Lock()
	appViper = v
	globalConfig = *cfg
	mu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Load 读取并校验配置但不修改全局实例，CLI 子命令与测试使用.
func Load(path string) (*AppConfig, error) {
	_, cfg, err := load(path)

	return cfg, err
}

func load(path string) (*viper.Viper, *AppConfig, error) {
	v := viper.New()
	// 设置默认值
	setAllDefaults(v)

	explicitFile := false

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		v.SetConfigFile(path)

		explicitFile = true
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				explicitFile = true

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return v, &cfg, nil
}

// Default 返回只包含默认值的配置.
func Default() *AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	// 默认值均为合法类型，不会解析失败
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.S3.setDefaults(v)
	cfg.Storage.setDefaults(v)
	cfg.Replication.setDefaults(v)
	cfg.Reconcile.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v, "circuit_breaker")
}

// Validate 按 rule 标签校验配置，并检查跨字段约束.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 宽限期必须覆盖复制任务最坏耗时，否则对账可能删除正在复制中的对象
	if worst := c.Replication.WorstCase(); c.Reconcile.GraceWindow < worst {
		return fmt.Errorf("invalid config: reconcile.grace_window %s is shorter than replication worst case %s",
			c.Reconcile.GraceWindow, worst)
	}

	return nil
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Ignoring reloaded config: %v\n", err)

			return
		}

		mu.Lock()
		globalConfig = cfg
		mu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回全局 viper 实例，未初始化时为 nil.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()

	return appViper
}
