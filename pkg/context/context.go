// Package context 把存储管理器、业务服务与追踪信息挂到上下文上，方便在请求链路与后台任务中传递.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage"
	dbc "github.com/yeisme/syncvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/syncvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/syncvault/pkg/internal/storage/mq"
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return storage.WithManager(ctx, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	return storage.ManagerFromContext(ctx)
}

// GetDBClient 从 context 中获取 DB 客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.DB
	}

	return nil
}

// GetMQClient 从 context 中获取 MQ 客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.MQ
	}

	return nil
}

// GetKVClient 从 context 中获取 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.KV
	}

	return nil
}

// Services 请求处理需要的业务服务.
type Services struct {
	Files      *service.FileService
	Replicator *service.Replicator
	Reconciler *service.Reconciler
}

type servicesKey struct{}

// WithServices 将业务服务存储到 context 中.
func WithServices(ctx context.Context, svcs *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, svcs)
}

// GetServices 从 context 中获取业务服务.
func GetServices(ctx context.Context) *Services {
	if svcs, ok := ctx.Value(servicesKey{}).(*Services); ok {
		return svcs
	}

	return nil
}

// GetFileService 从 context 中获取文件服务.
func GetFileService(ctx context.Context) *service.FileService {
	if svcs := GetServices(ctx); svcs != nil {
		return svcs.Files
	}

	return nil
}

// GetReplicator 从 context 中获取复制器.
func GetReplicator(ctx context.Context) *service.Replicator {
	if svcs := GetServices(ctx); svcs != nil {
		return svcs.Replicator
	}

	return nil
}

// GetReconciler 从 context 中获取对账器.
func GetReconciler(ctx context.Context) *service.Reconciler {
	if svcs := GetServices(ctx); svcs != nil {
		return svcs.Reconciler
	}

	return nil
}

// WithTraceContext 为 logger 附加当前 span 的 trace_id / span_id.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}

	return logger.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
}
