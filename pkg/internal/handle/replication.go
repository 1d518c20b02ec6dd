package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/log"
)

// RequeueReplication 把长时间未复制的记录重新投递到复制队列.
//
//	@Summary	重新投递未复制记录
//	@Tags		复制
//	@Produce	json
//	@Success	200	{object}	service.RequeueResult
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/v1/replication/requeue [post]
func RequeueReplication(c *gin.Context) {
	repl := ctxPkg.GetReplicator(c.Request.Context())
	if repl == nil {
		unavailable(c, "replicator")
		return
	}

	res, err := repl.Requeue(c.Request.Context())
	if err != nil {
		l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("replication"))
		l.Error().Err(err).Msg("requeue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": res})

		return
	}

	c.JSON(http.StatusOK, res)
}

// ReplicationStats 复制队列状态.
//
//	@Summary	复制队列状态
//	@Tags		复制
//	@Produce	json
//	@Success	200	{object}	service.ReplicationStats
//	@Router		/api/v1/replication/stats [get]
func ReplicationStats(c *gin.Context) {
	repl := ctxPkg.GetReplicator(c.Request.Context())
	if repl == nil {
		unavailable(c, "replicator")
		return
	}

	c.JSON(http.StatusOK, repl.Stats())
}
