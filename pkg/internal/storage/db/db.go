// Package db 处理元数据库连接与文件记录的读写.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/model"
	nlog "github.com/yeisme/syncvault/pkg/log"
)

// DialectorFactory 定义创建 dialector 的函数类型.
type DialectorFactory func(dsn string) gorm.Dialector

// dialectorFactories 存储数据库类型到 dialector 工厂的映射.
var dialectorFactories = map[configs.DBType]DialectorFactory{}

// RegisterDialectorFactory 注册数据库 dialector 工厂函数.
func RegisterDialectorFactory(dbType configs.DBType, factory DialectorFactory) {
	dialectorFactories[dbType] = factory
}

// GetRegisteredDBTypes 返回已注册的数据库类型列表（有序）.
func GetRegisteredDBTypes() []configs.DBType {
	types := make([]configs.DBType, 0, len(dialectorFactories))
	for dbType := range dialectorFactories {
		types = append(types, dbType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB

	opTimeout time.Duration
}

// Option 调整 Client 的构造参数.
type Option func(*options)

type options struct {
	metrics         bool
	refreshInterval time.Duration
	logLevel        logger.LogLevel
	name            string
}

// WithMetrics 注册 gorm prometheus 插件，同一进程只应对主连接开启.
func WithMetrics(refresh time.Duration) Option {
	return func(o *options) {
		o.metrics = true
		o.refreshInterval = refresh
	}
}

// WithLogLevel 设置 gorm 日志级别.
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *options) { o.logLevel = level }
}

// WithName 设置日志中的连接名称.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New 按配置打开数据库连接；调用方负责 Close.
func New(ctx context.Context, cfg *configs.DBConfig, opts ...Option) (*Client, error) {
	o := options{logLevel: logger.Warn, name: "main"}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := cfg.GetDSN()
	if dsn == "" {
		return nil, fmt.Errorf("failed to generate DSN for database type: %s", cfg.Type)
	}

	factory, exists := dialectorFactories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	l := nlog.Component("db")

	gormLogger := logger.New(
		&l,
		logger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  o.logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(factory(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 && cfg.Type == configs.SQLite {
		// SQLite 单写者，串行化连接避免 SQLITE_BUSY
		maxOpen = 1
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeoutOrDefault(cfg.OpTimeout))
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{DB: gdb, opTimeout: opTimeoutOrDefault(cfg.OpTimeout)}

	if o.metrics {
		if err := client.RegisterGORMMetrics(cfg.Database, o.refreshInterval); err != nil {
			_ = client.Close()

			return nil, fmt.Errorf("failed to register GORM metrics: %w", err)
		}
	}

	l.Debug().
		Str("conn", o.name).
		Str("type", cfg.GetDBType()).
		Str("database", cfg.Database).
		Msg("数据库连接成功")

	return client, nil
}

func opTimeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return configs.DefaultDBOpTimeout
	}

	return d
}

// GetDB 返回 GORM DB 实例.
func (c *Client) GetDB() *gorm.DB {
	return c.DB
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}

	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Ping 检查连接可用性.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// AutoMigrate 创建或升级表结构.
func (c *Client) AutoMigrate(ctx context.Context) error {
	if err := c.WithContext(ctx).AutoMigrate(&model.FileRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

// Tables 列出当前库中的表.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return c.WithContext(ctx).Migrator().GetTables()
}

// PoolStats 返回连接池状态.
func (c *Client) PoolStats() (sql.DBStats, error) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return sql.DBStats{}, err
	}

	return sqlDB.Stats(), nil
}

// withTimeout 为单次数据库操作设置超时.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// RegisterGORMMetrics 注册GORM连接池指标.
func (c *Client) RegisterGORMMetrics(dbName string, refresh time.Duration) error {
	interval := uint32(refresh / time.Second)
	if interval == 0 {
		interval = defaultGORMMetricsRefreshInterval
	}

	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: interval,
		StartServer:     false, // 指标由 pkg/metrics 统一暴露
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}

const defaultGORMMetricsRefreshInterval = 15 // 秒

// ErrNotFound 记录不存在.
var ErrNotFound = errors.New("record not found")
