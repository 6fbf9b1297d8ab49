package notify

import (
	"context"
	"log"
	"time"
)

// ==================== 通知事件 ====================

// EventType 广播事件类别
type EventType string

const (
	EventSyncStarted      EventType = "sync_started"
	EventSyncCompleted    EventType = "sync_completed"
	EventSyncAllCompleted EventType = "sync_all_completed"
)

// Notification 发给运维侧的广播载荷
type Notification struct {
	Type      EventType `json:"type"`
	Platform  string    `json:"platform,omitempty"`
	Status    string    `json:"status"`
	SyncRunID string    `json:"sync_run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier 通知出口（fire-and-forget：失败只记日志，绝不影响同步流程）
type Notifier interface {
	Notify(ctx context.Context, n Notification)
	Close() error
}

// ==================== 日志通知器 ====================

// LogNotifier 未配置 AMQP 时的兜底实现
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) {
	log.Printf("[Notify] type=%s platform=%s status=%s run=%s",
		msg.Type, msg.Platform, msg.Status, msg.SyncRunID)
}

func (n *LogNotifier) Close() error { return nil }
