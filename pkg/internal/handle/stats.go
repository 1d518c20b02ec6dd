package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/syncvault/pkg/context"
)

// FilesStats 文件数量、容量与复制状态统计.
//
//	@Summary	文件统计
//	@Tags		统计
//	@Produce	json
//	@Success	200	{object}	db.FileStats
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/v1/stats/files [get]
func FilesStats(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil {
		unavailable(c, "db client")
		return
	}

	stats, err := dbc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
