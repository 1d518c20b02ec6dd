// Package app 提供应用程序的初始化、启动与优雅退出.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/syncvault/pkg/api"
	"github.com/yeisme/syncvault/pkg/configs"
	ctxPkg "github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/internal/jobs"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage"
	"github.com/yeisme/syncvault/pkg/log"
	"github.com/yeisme/syncvault/pkg/metrics"
	"github.com/yeisme/syncvault/pkg/middleware"
	"github.com/yeisme/syncvault/pkg/queue"
	"github.com/yeisme/syncvault/pkg/scheduler"
	"github.com/yeisme/syncvault/pkg/tracing"
)

// App 持有 HTTP 引擎与所有后台组件.
type App struct {
	Engine *gin.Engine

	config     *configs.AppConfig
	manager    *storage.Manager
	services   *ctxPkg.Services
	scheduler  *scheduler.Scheduler
	metricsSrv *http.Server
	log        zerolog.Logger
}

// NewApp 加载配置并初始化全部组件；失败时释放已创建的资源.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, err
	}

	return New(ctx, configs.GetConfig())
}

// New 使用给定配置初始化应用.
func New(ctx context.Context, cfg *configs.AppConfig) (a *App, err error) {
	log.Setup(cfg.Log, cfg.Server.Debug)

	l := log.Component("app")

	if err = metrics.Init(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if err = tracing.InitTracer(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	var opts []storage.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, storage.WithRegisterer(metrics.GetRegistry(), cfg.Metrics))
	}

	manager, err := storage.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = manager.Close()
		}
	}()

	svcs := NewServices(cfg, manager)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if err = jobs.RegisterCronJobs(ctx, sched, cfg, svcs.Reconciler, svcs.Replicator); err != nil {
		_ = sched.Stop()

		return nil, err
	}

	a = &App{
		config:    cfg,
		manager:   manager,
		services:  svcs,
		scheduler: sched,
		log:       l,
	}
	a.Engine = a.newEngine(ctx)

	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())

		a.metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Endpoint,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
		}
	}

	return a, nil
}

// NewServices 基于存储管理器装配业务服务；事件总线未打开时不发布事件.
func NewServices(cfg *configs.AppConfig, manager *storage.Manager) *ctxPkg.Services {
	var emitter *queue.Emitter
	if manager.MQ != nil {
		emitter = queue.NewEmitter(manager.MQ.Publisher(), cfg.Events, cfg.MQ.PublishWait)
	}

	repl := service.NewReplicator(cfg.Replication, manager.DB, manager.Local, manager.S3, emitter, nil)

	opener := func(ctx context.Context) (service.ScopedRecords, error) {
		c, err := manager.OpenScopedDB(ctx)
		if err != nil {
			return nil, err
		}

		return c, nil
	}

	return &ctxPkg.Services{
		Files:      service.NewFileService(manager.DB, manager.Local, manager.S3, repl, emitter),
		Replicator: repl,
		Reconciler: service.NewReconciler(cfg.Reconcile, opener, manager.Local, manager.S3, manager.KV, emitter, nil),
	}
}

func (a *App) newEngine(ctx context.Context) *gin.Engine {
	cfg := a.config

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	// multipart 由上传处理器流式读取，这里只限制其他表单解析
	engine.MaxMultipartMemory = 8 << 20

	handlers := []gin.HandlerFunc{
		gin.Recovery(),
		middleware.GinLoggerMiddleware(cfg.Metrics.Path),
		middleware.CORSMiddleware(cfg.Server),
		middleware.TracingMiddleware(),
	}

	if cfg.Metrics.Enabled {
		handlers = append(handlers, middleware.PrometheusMiddleware())
	}

	handlers = append(handlers,
		middleware.RateLimitMiddleware(ctx, cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.GzipMiddleware(cfg.Metrics.Path),
		middleware.StorageMiddleware(a.manager),
		middleware.ServicesMiddleware(a.services),
		middleware.SchedulerMiddleware(a.scheduler),
	)

	engine.Use(handlers...)
	api.RegisterGroup(engine, cfg)

	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint == "" {
		engine.GET(cfg.Metrics.Path, metrics.GinHandler())
	}

	return engine
}

// Run 启动 HTTP 服务、复制 worker 与调度器，ctx 结束后优雅退出.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	a.services.Replicator.Start(ctx)
	a.scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	if a.metricsSrv != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.metricsSrv.Addr).Msg("metrics server listening")

			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Server.GetShutdownTimeout())
		defer cancel()

		return a.shutdown(sctx, srv)
	})

	return g.Wait()
}

// shutdown 依次停止接收请求、调度器、复制 worker，最后关闭存储.
// 队列中未执行的复制任务被放弃，由重新入队扫描补偿.
func (a *App) shutdown(ctx context.Context, srv *http.Server) error {
	start := time.Now()

	a.log.Info().Msg("shutting down")

	var errs []error

	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
	}

	if err := a.scheduler.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}

	a.services.Replicator.Stop()

	if err := tracing.ShutdownTracer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}

	if err := a.manager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	err := errors.Join(errs...)
	a.log.Info().Err(err).Dur("elapsed", time.Since(start)).Msg("shutdown complete")

	return err
}
