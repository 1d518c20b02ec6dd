// Package handle 提供HTTP请求处理器的实现，依赖由中间件注入到请求 context.
package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultHandler 未实现的接口.
func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
}

// unavailable 依赖未注入时返回 503.
func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " not initialized"})
}
