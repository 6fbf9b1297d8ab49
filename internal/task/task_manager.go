package task

import (
	"log"
	"time"

	"gear_sync_v1_202509/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台定时任务
// 管理范围：跨平台同步、陈旧上架刷新
type TaskManager struct {
	syncTask    *ListingSyncTask
	refreshTask *StaleRefreshTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Orchestrator *service.Orchestrator
	Reconciler   *service.Reconciler
	Lifecycle    *service.LifecycleService
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 跨平台同步
	SyncEnabled       bool
	SyncInterval      time.Duration
	SyncMaxConcurrent int
	SyncPlatforms     []string

	// 陈旧刷新
	RefreshEnabled   bool
	RefreshStaleDays int
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		SyncEnabled:       true,
		SyncInterval:      30 * time.Minute,
		SyncMaxConcurrent: 3,

		RefreshEnabled:   true,
		RefreshStaleDays: 45,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	if cfg.SyncEnabled && deps.Orchestrator != nil && deps.Reconciler != nil {
		tm.syncTask = NewListingSyncTask(deps.Orchestrator, deps.Reconciler)
		tm.syncTask.SetOptions(cfg.SyncInterval, cfg.SyncMaxConcurrent, cfg.SyncPlatforms)
	}

	if cfg.RefreshEnabled && deps.Lifecycle != nil {
		tm.refreshTask = NewStaleRefreshTask(deps.Lifecycle)
		tm.refreshTask.SetStaleAfter(time.Duration(cfg.RefreshStaleDays) * 24 * time.Hour)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.syncTask != nil {
		tm.syncTask.Start()
	}
	if tm.refreshTask != nil {
		tm.refreshTask.Start()
	}

	log.Println("[TaskManager] 后台任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.syncTask != nil {
		tm.syncTask.Stop()
	}
	if tm.refreshTask != nil {
		tm.refreshTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerSync 触发一轮跨平台同步
func (tm *TaskManager) TriggerSync() error {
	if tm.syncTask == nil {
		return ErrTaskDisabled
	}
	tm.syncTask.SyncNow()
	return nil
}

// TriggerRefresh 触发一轮陈旧刷新
func (tm *TaskManager) TriggerRefresh() error {
	if tm.refreshTask == nil {
		return ErrTaskDisabled
	}
	tm.refreshTask.RefreshNow()
	return nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"sync":    tm.syncTask != nil,
		"refresh": tm.refreshTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
