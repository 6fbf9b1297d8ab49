package task

import (
	"errors"
	"testing"
	"time"
)

// ==================== TaskManager 测试 ====================

func TestTaskManager_AllDisabled(t *testing.T) {
	tm := NewTaskManager(&TaskManagerDeps{}, &TaskManagerConfig{
		SyncEnabled:    false,
		RefreshEnabled: false,
	})

	status := tm.Status()
	if status["sync"] {
		t.Error("sync 任务不应启用")
	}
	if status["refresh"] {
		t.Error("refresh 任务不应启用")
	}

	if err := tm.TriggerSync(); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("TriggerSync 应返回 ErrTaskDisabled，实际 %v", err)
	}
	if err := tm.TriggerRefresh(); !errors.Is(err, ErrTaskDisabled) {
		t.Errorf("TriggerRefresh 应返回 ErrTaskDisabled，实际 %v", err)
	}
}

func TestTaskManager_MissingDepsKeepsTaskOff(t *testing.T) {
	// 配置启用但依赖缺失时任务保持关闭，不应 panic
	tm := NewTaskManager(&TaskManagerDeps{}, DefaultConfig())

	status := tm.Status()
	if status["sync"] {
		t.Error("缺少编排依赖时 sync 任务不应启用")
	}
	if status["refresh"] {
		t.Error("缺少生命周期依赖时 refresh 任务不应启用")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.SyncEnabled || !cfg.RefreshEnabled {
		t.Error("默认配置应启用全部任务")
	}
	if cfg.SyncInterval != 30*time.Minute {
		t.Errorf("默认同步间隔 = %s, want 30m", cfg.SyncInterval)
	}
	if cfg.SyncMaxConcurrent != 3 {
		t.Errorf("默认并发 = %d, want 3", cfg.SyncMaxConcurrent)
	}
	if cfg.RefreshStaleDays != 45 {
		t.Errorf("默认 stale 天数 = %d, want 45", cfg.RefreshStaleDays)
	}
}

// ==================== cron 表达式 ====================

func TestEverySpec(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"30 秒取下限 1 分钟", 30 * time.Second, "0 */1 * * * *"},
		{"5 分钟", 5 * time.Minute, "0 */5 * * * *"},
		{"30 分钟", 30 * time.Minute, "0 */30 * * * *"},
		{"60 分钟封顶为每小时", 60 * time.Minute, "0 0 */1 * * *"},
		{"2 小时同样封顶", 2 * time.Hour, "0 0 */1 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := everySpec(tt.d); got != tt.want {
				t.Errorf("everySpec(%s) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

// ==================== SetOptions ====================

func TestListingSyncTask_SetOptions(t *testing.T) {
	task := NewListingSyncTask(nil, nil)

	task.SetOptions(10*time.Minute, 5, []string{"reverb"})
	if task.interval != 10*time.Minute {
		t.Errorf("interval = %s, want 10m", task.interval)
	}
	if task.maxConcurrent != 5 {
		t.Errorf("maxConcurrent = %d, want 5", task.maxConcurrent)
	}
	if len(task.platforms) != 1 || task.platforms[0] != "reverb" {
		t.Errorf("platforms = %v, want [reverb]", task.platforms)
	}

	// 非法间隔保持原值
	task.SetOptions(0, 3, nil)
	if task.interval != 10*time.Minute {
		t.Errorf("零间隔不应覆盖原值，实际 %s", task.interval)
	}
}

func TestStaleRefreshTask_SetStaleAfter(t *testing.T) {
	task := NewStaleRefreshTask(nil)

	task.SetStaleAfter(30 * 24 * time.Hour)
	if task.staleAfter != 30*24*time.Hour {
		t.Errorf("staleAfter = %s, want 720h", task.staleAfter)
	}

	// 非法阈值保持原值
	task.SetStaleAfter(0)
	if task.staleAfter != 30*24*time.Hour {
		t.Errorf("零阈值不应覆盖原值，实际 %s", task.staleAfter)
	}
}
