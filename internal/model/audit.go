package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ==================== 审计事件 ====================

// AuditKind 审计事件类别（带标签联合，替代散落的 JSON 字典键）
type AuditKind string

const (
	AuditKindRelist  AuditKind = "relist"
	AuditKindRefresh AuditKind = "refresh"
)

// AuditEvent 记录在孤儿化 detail 行上的结构化审计条目
// Payload 依 Kind 反序列化为 RelistAudit / RefreshAudit
type AuditEvent struct {
	Kind      AuditKind       `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// RelistAudit relist 流程的前向指针：旧行指向顶替它的新 external_id
type RelistAudit struct {
	PlatformName  string `json:"platform_name"`
	LinkID        int64  `json:"link_id"`
	OldExternalID string `json:"old_external_id"`
	NewExternalID string `json:"new_external_id"`
}

// RefreshAudit stale refresh 流程的审计块
type RefreshAudit struct {
	Reason        string `json:"reason"`
	ProductID     int64  `json:"product_id"`
	SKU           string `json:"sku"`
	OldExternalID string `json:"old_external_id"`
	NewExternalID string `json:"new_external_id"`
}

// NewAuditEvent 构造审计条目，payload 为任一类型化载荷
func NewAuditEvent(kind AuditKind, payload interface{}) (AuditEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AuditEvent{}, fmt.Errorf("序列化审计载荷失败: %w", err)
	}
	return AuditEvent{
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// AppendAudit 在既有审计列上追加一条（列为空时新建数组）
func AppendAudit(existing datatypes.JSON, ev AuditEvent) (datatypes.JSON, error) {
	var events []AuditEvent
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &events); err != nil {
			return nil, fmt.Errorf("解析既有审计列失败: %w", err)
		}
	}
	events = append(events, ev)
	out, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

// ParseAudit 读取审计列
func ParseAudit(col datatypes.JSON) ([]AuditEvent, error) {
	if len(col) == 0 {
		return nil, nil
	}
	var events []AuditEvent
	if err := json.Unmarshal(col, &events); err != nil {
		return nil, err
	}
	return events, nil
}
