package controller

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gear_sync_v1_202509/internal/repository"
	"gear_sync_v1_202509/internal/service"
)

// SyncController 跨平台同步控制器
type SyncController struct {
	orchestrator *service.Orchestrator
	reconciler   *service.Reconciler
	syncEvents   repository.SyncEventRepository
}

// NewSyncController 创建同步控制器
func NewSyncController(
	orchestrator *service.Orchestrator,
	reconciler *service.Reconciler,
	syncEvents repository.SyncEventRepository,
) *SyncController {
	return &SyncController{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		syncEvents:   syncEvents,
	}
}

// ==================== Handler 实现 ====================

// SyncAll 全平台同步
// @Summary 手动触发全平台同步（侦测 + 回放）
// @Tags Sync
// @Param max_concurrent query int false "并发上限 (1-10)"
// @Param platforms query string false "逗号分隔的平台名，缺省为全部"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Failure 500 {object} map[string]interface{} "所有平台全部失败"
// @Router /api/sync/all [post]
func (c *SyncController) SyncAll(ctx *gin.Context) {
	maxConcurrent := 0
	if s := ctx.Query("max_concurrent"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			ctx.JSON(400, gin.H{"code": 400, "message": "无效的 max_concurrent"})
			return
		}
		maxConcurrent = n
	}

	var platforms []string
	if s := ctx.Query("platforms"); s != "" {
		platforms = splitComma(s)
	}
	// 缺省只同步实际注册了客户端的平台；配置里关掉的平台不算失败
	if len(platforms) == 0 {
		platforms = c.orchestrator.Platforms()
	}

	c.runSync(ctx, platforms, maxConcurrent)
}

// SyncPlatform 单平台同步
// @Summary 手动触发单平台同步（侦测 + 回放）
// @Tags Sync
// @Param platform path string true "平台名"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/sync/{platform} [post]
func (c *SyncController) SyncPlatform(ctx *gin.Context) {
	platform := ctx.Param("platform")
	if platform == "" {
		ctx.JSON(400, gin.H{"code": 400, "message": "缺少平台名"})
		return
	}
	c.runSync(ctx, []string{platform}, 1)
}

// runSync 执行侦测后紧跟回放；仅在所有平台全部失败时返回 500
func (c *SyncController) runSync(ctx *gin.Context, platforms []string, maxConcurrent int) {
	report, err := c.orchestrator.Run(ctx.Request.Context(), platforms, maxConcurrent)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	recon, err := c.reconciler.Reconcile(ctx.Request.Context(), report.SyncRunID)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": "侦测完成但回放失败: " + err.Error(), "data": report})
		return
	}

	payload := gin.H{
		"sync":      report,
		"reconcile": recon,
	}

	// 部分平台失败仍是 200：调用方按 status 字段判断
	if report.AllFailed() {
		ctx.JSON(500, gin.H{"code": 500, "message": "所有平台同步失败", "data": payload})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": "同步完成", "data": payload})
}

// GetRun 查询一次同步的执行记录
// @Summary 查询同步执行记录与事件日志
// @Tags Sync
// @Param run_id path string true "同步批次 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/sync/runs/{run_id} [get]
func (c *SyncController) GetRun(ctx *gin.Context) {
	runID := ctx.Param("run_id")

	run, err := c.syncEvents.GetRun(ctx.Request.Context(), runID)
	if err != nil {
		ctx.JSON(404, gin.H{"code": 404, "message": "同步记录不存在"})
		return
	}

	events, err := c.syncEvents.ListByRun(ctx.Request.Context(), run.RunID)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"run":    run,
			"events": events,
		},
	})
}

// ==================== 工具函数 ====================

func parseID(ctx *gin.Context, key string) int64 {
	idStr := ctx.Param(key)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 ID"})
		return 0
	}
	return id
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
