package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/syncvault/pkg/internal/handle"
)

// RegisterStatsRoutes 注册统计路由.
func RegisterStatsRoutes(g *gin.RouterGroup) {
	g.GET("/stats/files", handle.FilesStats)
}
