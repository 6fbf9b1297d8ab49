package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ==================== 同步运行 ====================

// RunStatus 一次编排运行的总体结果
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial_success"
	RunStatusError   RunStatus = "error"
)

// SyncRun 一次编排检测的运行记录
type SyncRun struct {
	BaseModel

	RunID     string         `gorm:"size:64;uniqueIndex;not null" json:"run_id"`
	Status    RunStatus      `gorm:"size:30;index" json:"status"`
	Platforms pq.StringArray `gorm:"type:text[]" json:"platforms"`

	Succeeded int `gorm:"default:0" json:"succeeded"`
	Failed    int `gorm:"default:0" json:"failed"`
	Events    int `gorm:"default:0" json:"events"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// ==================== 同步事件 ====================

// EventChangeType 检测到的偏差类别
type EventChangeType string

const (
	ChangeNewListing     EventChangeType = "new_listing"
	ChangePrice          EventChangeType = "price"
	ChangeStatus         EventChangeType = "status"
	ChangeRemovedListing EventChangeType = "removed_listing"
	ChangeTitle          EventChangeType = "title"
	ChangeDescription    EventChangeType = "description"
)

// EventStatus 事件处理状态
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusError     EventStatus = "error"
)

// SyncEvent 不可变的偏差检测记录
// 由 Poller 追加写入，Reconciler 消费；除 status/notes 外永不修改
type SyncEvent struct {
	BaseModel

	SyncRunID    string `gorm:"size:64;index;not null" json:"sync_run_id"`
	PlatformName string `gorm:"size:30;index;not null" json:"platform_name"`

	ProductID  *int64 `gorm:"index" json:"product_id"`
	ExternalID string `gorm:"size:100;index" json:"external_id"`

	ChangeType EventChangeType `gorm:"size:30;index;not null" json:"change_type"`
	// ChangeData 旧/新快照 {"old": ..., "new": ...}
	ChangeData datatypes.JSON `gorm:"type:jsonb" json:"change_data"`

	Status     EventStatus `gorm:"size:20;index;default:'pending'" json:"status"`
	DetectedAt time.Time   `gorm:"index;not null" json:"detected_at"`
	Notes      string      `gorm:"type:text" json:"notes"`
}

func (SyncEvent) TableName() string {
	return "sync_events"
}

// StatusChangeData 状态类事件的快照载荷
type StatusChangeData struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ==================== 状态映射 ====================

// StatusMapping 管理配置的 (平台, 原始状态) -> 中央状态 查找表
// 运行时只读；未命中时调用方必须按未映射处理，不允许猜测
type StatusMapping struct {
	BaseModel

	PlatformName  string        `gorm:"size:30;not null;uniqueIndex:idx_platform_raw" json:"platform_name"`
	RawStatus     string        `gorm:"size:50;not null;uniqueIndex:idx_platform_raw" json:"raw_status"`
	CentralStatus CentralStatus `gorm:"size:20;not null" json:"central_status"`
}

func (StatusMapping) TableName() string {
	return "status_mappings"
}

// ==================== 分类映射 ====================

// CategoryMapping 跨平台分类对照表（只读查找）
type CategoryMapping struct {
	BaseModel

	SourcePlatform string `gorm:"size:30;not null;uniqueIndex:idx_category_triplet" json:"source_platform"`
	SourceCategory string `gorm:"size:100;not null;uniqueIndex:idx_category_triplet" json:"source_category"`
	TargetPlatform string `gorm:"size:30;not null;uniqueIndex:idx_category_triplet" json:"target_platform"`
	TargetCategory string `gorm:"size:100;not null" json:"target_category"`
}

func (CategoryMapping) TableName() string {
	return "category_mappings"
}
