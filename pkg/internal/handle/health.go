package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/internal/types"
)

const healthTimeout = 2 * time.Second

func healthy(c *gin.Context, component string, detail any) {
	c.JSON(http.StatusOK, types.HealthResponse{Component: component, Status: "ok", Detail: detail})
}

func unhealthy(c *gin.Context, component string, msg string) {
	c.JSON(http.StatusServiceUnavailable, types.HealthResponse{Component: component, Status: "unhealthy", Error: msg})
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/v1/health/db [get]
func HealthDB(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil || mgr.DB == nil {
		unhealthy(c, "db", "db client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := mgr.DB.Ping(ctx); err != nil {
		unhealthy(c, "db", err.Error())
		return
	}

	var detail any
	if stats, err := mgr.DB.PoolStats(); err == nil {
		detail = gin.H{"open_connections": stats.OpenConnections, "in_use": stats.InUse, "idle": stats.Idle}
	}

	healthy(c, "db", detail)
}

// HealthS3 远端对象存储健康检查.
//
//	@Summary	对象存储健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/v1/health/s3 [get]
func HealthS3(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil || mgr.S3 == nil {
		unhealthy(c, "s3", "s3 client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := mgr.S3.HealthCheck(ctx); err != nil {
		unhealthy(c, "s3", err.Error())
		return
	}

	healthy(c, "s3", gin.H{"bucket": mgr.S3.Bucket(), "breaker": mgr.S3.BreakerState()})
}

// HealthLocal 本地存储健康检查.
//
//	@Summary	本地存储健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/v1/health/local [get]
func HealthLocal(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil || mgr.Local == nil {
		unhealthy(c, "local", "local store not initialized")
		return
	}

	if err := mgr.Local.Ping(); err != nil {
		unhealthy(c, "local", err.Error())
		return
	}

	healthy(c, "local", gin.H{"root": mgr.Local.Root()})
}

// HealthMQ 消息队列健康检查.
//
//	@Summary	事件总线健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	types.HealthResponse
//	@Failure	503	{object}	types.HealthResponse
//	@Router		/api/v1/health/mq [get]
func HealthMQ(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil || mgr.MQ == nil {
		unhealthy(c, "mq", "mq client not initialized")
		return
	}

	if err := mgr.MQ.HealthCheck(c.Request.Context()); err != nil {
		unhealthy(c, "mq", err.Error())
		return
	}

	healthy(c, "mq", gin.H{"type": mgr.MQ.Type()})
}
