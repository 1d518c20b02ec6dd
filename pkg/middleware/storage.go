package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/internal/storage"
)

// StorageMiddleware 将存储管理器注入到请求 context 中.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ServicesMiddleware 将业务服务注入到请求 context 中.
func ServicesMiddleware(svcs *context.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithServices(c.Request.Context(), svcs)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
