// Package api 汇总 HTTP 路由分组.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/router"
)

// APIPrefix 运维接口前缀.
const APIPrefix = "/api/v1"

// RegisterGroup 注册文件与运维路由到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine, cfg *configs.AppConfig) *gin.Engine {
	router.RegisterFileRoutes(e.Group("/files"), cfg.Server.MaxUploadBytes())

	v1 := e.Group(APIPrefix)
	router.RegisterHealthCheckRoute(v1)
	router.RegisterMaintenanceRoutes(v1)
	router.RegisterSchedulerRoutes(v1)
	router.RegisterStatsRoutes(v1)

	router.RegisterSwaggerRoute(e, cfg.Server)

	return e
}
