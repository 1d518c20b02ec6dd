package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/syncvault/pkg/internal/handle"
)

// RegisterMaintenanceRoutes 注册对账与复制运维路由.
func RegisterMaintenanceRoutes(g *gin.RouterGroup) {
	g.POST("/reconcile", handle.RunReconcile)
	g.GET("/reconcile/last", handle.LastReconcile)

	g.POST("/replication/requeue", handle.RequeueReplication)
	g.GET("/replication/stats", handle.ReplicationStats)
}
