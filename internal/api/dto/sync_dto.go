package dto

import "time"

// ==================== 同步报告 ====================

// PlatformResult 单平台检测结果
type PlatformResult struct {
	Platform   string `json:"platform"`
	Success    bool   `json:"success"`
	Attempts   int    `json:"attempts"`
	EventCount int    `json:"event_count"`
	Message    string `json:"message,omitempty"`
}

// SyncReport 一次编排运行的聚合报告
type SyncReport struct {
	SyncRunID  string           `json:"sync_run_id"`
	Status     string           `json:"status"` // success / partial_success / error
	Results    []PlatformResult `json:"results"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// AllFailed 是否全军覆没（HTTP 层据此决定状态码）
func (r *SyncReport) AllFailed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Success {
			return false
		}
	}
	return true
}

// ==================== 对账报告 ====================

// ReconcileReport 单次对账的增量报告
type ReconcileReport struct {
	SyncRunID string `json:"sync_run_id"`
	Applied   int    `json:"applied"`
	Skipped   int    `json:"skipped"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
}

// ==================== 生命周期报告 ====================

// LifecycleResult 单平台的 relist / refresh 结果
type LifecycleResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	OldID    string `json:"old_id,omitempty"`
	NewID    string `json:"new_id,omitempty"`
}

// LifecycleReport 跨平台生命周期操作的聚合结果
type LifecycleReport struct {
	Status  string            `json:"status"` // success / partial / error / warning
	Message string            `json:"message,omitempty"`
	Results []LifecycleResult `json:"platform_results"`
}

// ==================== 图库报告 ====================

// GalleryDrift 单平台图库偏差（三方计数对比）
type GalleryDrift struct {
	Platform       string `json:"platform"`
	LiveCount      int    `json:"live_count"`
	StoredCount    int    `json:"stored_count"`
	CanonicalCount int    `json:"canonical_count"`
	NeedsFix       bool   `json:"needs_fix"`
	Reason         string `json:"reason"` // in_sync / platform_drift / stale_cache / error
}

// GalleryFixResult 单平台图库修复结果
type GalleryFixResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Action   string `json:"action"` // pushed / snapshot_refreshed
	Message  string `json:"message,omitempty"`
}
