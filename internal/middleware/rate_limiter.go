package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== SyncRateLimiter 同步限流器 ====================

// SyncRateLimiter 手动触发限流器
// 防止用户频繁触发同步 / relist 打爆平台 API 配额
type SyncRateLimiter struct {
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// 全局限流器实例
var globalLimiter = &SyncRateLimiter{}

// GetLimiter 获取全局限流器
func GetLimiter() *SyncRateLimiter {
	return globalLimiter
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时顺带更新最后执行时间
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(entry.lastTime)

	if elapsed < interval {
		return CheckResult{
			Allowed:    false,
			RetryAfter: interval - elapsed,
		}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== Key 生成工具 ====================

// SyncType 操作类型
type SyncType string

const (
	SyncTypeDetect  SyncType = "detect"
	SyncTypeRelist  SyncType = "relist"
	SyncTypeRefresh SyncType = "refresh"
	SyncTypeGallery SyncType = "gallery"
)

// 默认冷却间隔
var defaultIntervals = map[SyncType]time.Duration{
	SyncTypeDetect:  1 * time.Minute,
	SyncTypeRelist:  10 * time.Second,
	SyncTypeRefresh: 1 * time.Minute,
	SyncTypeGallery: 10 * time.Second,
}

// GetInterval 获取操作类型的默认冷却间隔
func GetInterval(syncType SyncType) time.Duration {
	if d, ok := defaultIntervals[syncType]; ok {
		return d
	}
	return 30 * time.Second
}

// PlatformSyncKey 生成平台级 Key
func PlatformSyncKey(platform string, syncType SyncType) string {
	return fmt.Sprintf("platform:%s:%s", platform, syncType)
}

// ProductSyncKey 生成商品级 Key
func ProductSyncKey(productID int64, syncType SyncType) string {
	return fmt.Sprintf("product:%d:%s", productID, syncType)
}

// GlobalSyncKey 生成全局 Key
func GlobalSyncKey(syncType SyncType) string {
	return fmt.Sprintf("global:%s", syncType)
}
