package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"gear_sync_v1_202509/internal/service"
)

// ==================== StaleRefreshTask 陈旧上架刷新任务 ====================

// StaleRefreshTask 每日凌晨扫描超龄上架并重建
// 凌晨执行：刷新会短暂下架商品，挑流量低谷时段
type StaleRefreshTask struct {
	lifecycle *service.LifecycleService
	cron      *cron.Cron

	staleAfter time.Duration
}

// NewStaleRefreshTask 创建刷新任务
func NewStaleRefreshTask(lifecycle *service.LifecycleService) *StaleRefreshTask {
	return &StaleRefreshTask{
		lifecycle:  lifecycle,
		cron:       cron.New(cron.WithSeconds()),
		staleAfter: 45 * 24 * time.Hour,
	}
}

// SetStaleAfter 设置超龄阈值
func (t *StaleRefreshTask) SetStaleAfter(d time.Duration) {
	if d > 0 {
		t.staleAfter = d
	}
}

// Start 启动定时任务（每天 03:30）
func (t *StaleRefreshTask) Start() {
	_, err := t.cron.AddFunc("0 30 3 * * *", func() {
		t.runOnce()
	})
	if err != nil {
		log.Printf("[StaleRefreshTask] 定时任务启动失败: %v", err)
		return
	}

	t.cron.Start()
	log.Printf("[StaleRefreshTask] 已启动 (每天 03:30, 阈值 %s)", t.staleAfter)
}

// Stop 停止任务
func (t *StaleRefreshTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[StaleRefreshTask] 已停止")
}

func (t *StaleRefreshTask) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Minute)
	defer cancel()

	log.Println("[StaleRefreshTask] 开始扫描陈旧上架...")
	refreshed, failed, err := t.lifecycle.RefreshStale(ctx, t.staleAfter)
	if err != nil {
		log.Printf("[StaleRefreshTask] 扫描失败: %v", err)
		return
	}
	log.Printf("[StaleRefreshTask] 完成: 刷新 %d 个商品, 失败 %d", refreshed, failed)
}

// RefreshNow 立即触发一轮刷新
func (t *StaleRefreshTask) RefreshNow() {
	go t.runOnce()
}
