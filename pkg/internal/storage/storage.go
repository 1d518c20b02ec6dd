// Package storage 聚合文件服务所需的全部存储资源：元数据库、本地块存储、远端对象存储、KV 与事件总线.
//
// Example:
//
//	mgr, err := storage.Open(ctx, cfg, storage.WithRegisterer(reg))
//	if err != nil {
//		// 处理错误
//	}
//	defer mgr.Close()
//
//	rec, err := mgr.DB.GetByUID(ctx, uid)
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/syncvault/pkg/configs"
	dbc "github.com/yeisme/syncvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/syncvault/pkg/internal/storage/kv"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	mqc "github.com/yeisme/syncvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/syncvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/syncvault/pkg/log"
)

// Manager 聚合所有存储资源，由调用方显式创建并注入.
type Manager struct {
	DB    *dbc.Client
	S3    *s3c.Client
	Local *local.Store
	KV    *kvc.Client
	MQ    *mqc.Client

	dbCfg configs.DBConfig
}

// Option 调整 Open 行为.
type Option func(*openOptions)

type openOptions struct {
	registerer prometheus.Registerer
	metrics    configs.MetricsConfig
	skipMQ     bool
}

// WithRegisterer 启用事件总线与数据库指标.
func WithRegisterer(reg prometheus.Registerer, cfg configs.MetricsConfig) Option {
	return func(o *openOptions) {
		o.registerer = reg
		o.metrics = cfg
	}
}

// WithoutMQ 不连接事件总线，供一次性 CLI 命令使用.
func WithoutMQ() Option {
	return func(o *openOptions) { o.skipMQ = true }
}

// Open 按配置创建所有存储客户端；任一失败时关闭已创建的资源.
func Open(ctx context.Context, cfg *configs.AppConfig, opts ...Option) (m *Manager, err error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := nlog.Component("storage")
	m = &Manager{dbCfg: cfg.DB}

	defer func() {
		if err != nil {
			_ = m.Close()
			m = nil
		}
	}()

	var dbOpts []dbc.Option
	if o.registerer != nil && o.metrics.DBMetrics {
		dbOpts = append(dbOpts, dbc.WithMetrics(o.metrics.RefreshInterval))
	}

	if m.DB, err = dbc.New(ctx, &cfg.DB, dbOpts...); err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	if cfg.DB.AutoMigrate {
		if err = m.DB.AutoMigrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate metadata store: %w", err)
		}
	}

	if m.Local, err = local.New(&cfg.Storage); err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	if m.S3, err = s3c.New(&cfg.S3); err != nil {
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	// 远端不可用不阻止启动：上传只依赖本地，复制会在恢复后重新入队
	if cfg.S3.CreateBucket {
		if e := m.S3.EnsureBucket(ctx); e != nil {
			log.Warn().Err(e).Str("bucket", m.S3.Bucket()).Msg("ensure bucket failed")
		}
	}

	if m.KV, err = kvc.New(ctx, &cfg.KV); err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}

	if !o.skipMQ {
		var mqOpts []mqc.Option
		if o.registerer != nil {
			mqOpts = append(mqOpts, mqc.WithMetrics(o.registerer, o.metrics.Namespace))
		}

		if m.MQ, err = mqc.New(ctx, &cfg.MQ, mqOpts...); err != nil {
			return nil, fmt.Errorf("open event bus: %w", err)
		}
	}

	log.Info().
		Str("db", string(cfg.DB.Type)).
		Str("local_root", m.Local.Root()).
		Str("bucket", m.S3.Bucket()).
		Str("kv", string(m.KV.Type())).
		Bool("mq", m.MQ != nil).
		Msg("storage manager initialized")

	return m, nil
}

// OpenScopedDB 为单次任务打开独立的数据库连接，调用方负责关闭.
func (m *Manager) OpenScopedDB(ctx context.Context) (*dbc.Client, error) {
	cfg := m.dbCfg

	return dbc.New(ctx, &cfg, dbc.WithName("scoped"))
}

// Close 依次关闭所有已打开的资源.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
