package handle

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/syncvault/pkg/context"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/types"
	"github.com/yeisme/syncvault/pkg/log"
)

// RunReconcile 手动触发一次对账；已有同类对账在运行时等待并返回它的报告.
// 客户端断开不会中断对账，运行时长受 reconcile.run_timeout 约束.
//
//	@Summary	触发对账
//	@Tags		对账
//	@Produce	json
//	@Param		dry_run	query		bool	false	"只统计不删除"
//	@Success	200		{object}	service.Report
//	@Failure	500		{object}	types.ErrorResponse
//	@Router		/api/v1/reconcile [post]
func RunReconcile(c *gin.Context) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), log.Component("reconcile"))

	rec := ctxPkg.GetReconciler(c.Request.Context())
	if rec == nil {
		unavailable(c, "reconciler")
		return
	}

	var req types.ReconcileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := rec.Run(context.WithoutCancel(c.Request.Context()), service.RunOptions{
		DryRun:  req.DryRun,
		Trigger: service.TriggerManual,
	})
	if err != nil {
		l.Error().Err(err).Msg("manual reconciliation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": rep})

		return
	}

	c.JSON(http.StatusOK, rep)
}

// LastReconcile 返回最近一次对账报告.
//
//	@Summary	最近一次对账报告
//	@Tags		对账
//	@Produce	json
//	@Success	200	{object}	service.Report
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/v1/reconcile/last [get]
func LastReconcile(c *gin.Context) {
	rec := ctxPkg.GetReconciler(c.Request.Context())
	if rec == nil {
		unavailable(c, "reconciler")
		return
	}

	rep, err := rec.LastReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation report yet"})
		return
	}

	c.JSON(http.StatusOK, rep)
}
