package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"gear_sync_v1_202509/internal/service"
)

// ==================== ListingSyncTask 跨平台同步任务 ====================

// ListingSyncTask 周期性执行两段式同步：
// 先并发侦测全平台漂移，再串行回放事件日志
type ListingSyncTask struct {
	orchestrator *service.Orchestrator
	reconciler   *service.Reconciler
	cron         *cron.Cron

	interval      time.Duration
	maxConcurrent int
	platforms     []string
}

// NewListingSyncTask 创建同步任务
func NewListingSyncTask(orchestrator *service.Orchestrator, reconciler *service.Reconciler) *ListingSyncTask {
	return &ListingSyncTask{
		orchestrator:  orchestrator,
		reconciler:    reconciler,
		cron:          cron.New(cron.WithSeconds()),
		interval:      30 * time.Minute,
		maxConcurrent: 3,
	}
}

// SetOptions 设置执行参数；platforms 为空时覆盖全部已注册平台
func (t *ListingSyncTask) SetOptions(interval time.Duration, maxConcurrent int, platforms []string) {
	if interval > 0 {
		t.interval = interval
	}
	t.maxConcurrent = maxConcurrent
	t.platforms = platforms
}

// Start 启动定时任务
func (t *ListingSyncTask) Start() {
	// 首次执行（延迟 15 秒，等平台客户端就绪）
	go func() {
		time.Sleep(15 * time.Second)
		t.runOnce()
	}()

	_, err := t.cron.AddFunc(everySpec(t.interval), func() {
		t.runOnce()
	})
	if err != nil {
		log.Printf("[ListingSyncTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Printf("[ListingSyncTask] 已启动 (每 %s)", t.interval)
}

// Stop 停止任务
func (t *ListingSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[ListingSyncTask] 已停止")
}

// runOnce 一轮完整的 detect + reconcile
func (t *ListingSyncTask) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	log.Println("[ListingSyncTask] 开始跨平台同步...")

	platforms := t.platforms
	if len(platforms) == 0 {
		platforms = t.orchestrator.Platforms()
	}

	report, err := t.orchestrator.Run(ctx, platforms, t.maxConcurrent)
	if err != nil {
		log.Printf("[ListingSyncTask] 侦测阶段失败: %v", err)
		return
	}
	log.Printf("[ListingSyncTask] 侦测完成: run=%s status=%s", report.SyncRunID, report.Status)

	recon, err := t.reconciler.Reconcile(ctx, report.SyncRunID)
	if err != nil {
		log.Printf("[ListingSyncTask] 回放阶段失败: %v", err)
		return
	}
	log.Printf("[ListingSyncTask] 回放完成: 应用 %d, 跳过 %d, 冲突 %d, 错误 %d",
		recon.Applied, recon.Skipped, recon.Conflicts, recon.Errors)
}

// SyncNow 立即触发一轮同步
func (t *ListingSyncTask) SyncNow() {
	go t.runOnce()
}

// everySpec duration -> cron 六段表达式（分钟粒度）
func everySpec(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes >= 60 {
		return "0 0 */1 * * *"
	}
	return fmt.Sprintf("0 */%d * * * *", minutes)
}
