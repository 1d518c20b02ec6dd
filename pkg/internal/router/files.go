// Package router 管理路由配置，把路径与 pkg/internal/handle 中的处理器绑定到 gin 引擎.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/syncvault/pkg/internal/handle"
	"github.com/yeisme/syncvault/pkg/middleware"
)

// RegisterFileRoutes 注册文件路由（假定上层传入 e.Group("/files")）：
//
//	POST   /upload         -> UploadFile（请求体受 maxUpload 限制）
//	GET    /               -> ListFiles
//	GET    /:uid           -> GetFile
//	GET    /:uid/download  -> DownloadFile
//	DELETE /:uid           -> DeleteFile
func RegisterFileRoutes(g *gin.RouterGroup, maxUpload int64) {
	g.POST("/upload", middleware.BodyLimitMiddleware(maxUpload), handle.UploadFile)
	g.GET("", handle.ListFiles)
	g.GET("/:uid", handle.GetFile)
	g.GET("/:uid/download", handle.DownloadFile)
	g.DELETE("/:uid", handle.DeleteFile)
}
