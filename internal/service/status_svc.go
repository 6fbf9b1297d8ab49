package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== 映射缺口 ====================

// MappingGapError 词表未收录的平台状态词
// 对应事件必须隔离（status=error + 说明），严禁猜测
type MappingGapError struct {
	Platform  string
	RawStatus string
}

func (e *MappingGapError) Error() string {
	return fmt.Sprintf("无法映射平台状态 %s/%q，已隔离", e.Platform, e.RawStatus)
}

// ==================== StatusMapper 状态映射服务 ====================

// StatusMapper (平台, 原始状态) -> 中央状态 的只读查找
// 未命中时返回 not-ok，调用方必须按未映射处理，严禁回退默认值
type StatusMapper struct {
	mu    sync.RWMutex
	table map[string]model.CentralStatus
}

// NewStatusMapper 从数据库装载映射表
func NewStatusMapper(ctx context.Context, repo repository.StatusMappingRepository) (*StatusMapper, error) {
	m := &StatusMapper{table: map[string]model.CentralStatus{}}
	if err := m.Reload(ctx, repo); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload 重新装载（管理侧改表后调用；运行时组件只读）
func (m *StatusMapper) Reload(ctx context.Context, repo repository.StatusMappingRepository) error {
	mappings, err := repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("装载状态映射表失败: %w", err)
	}

	table := make(map[string]model.CentralStatus, len(mappings))
	for _, mp := range mappings {
		table[mappingKey(mp.PlatformName, mp.RawStatus)] = mp.CentralStatus
	}

	m.mu.Lock()
	m.table = table
	m.mu.Unlock()
	return nil
}

// Map 状态查找；大小写与首尾空白均被归一化
func (m *StatusMapper) Map(platform, rawStatus string) (model.CentralStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.table[mappingKey(platform, rawStatus)]
	return cs, ok
}

func mappingKey(platform, raw string) string {
	return strings.ToLower(strings.TrimSpace(platform)) + "|" + strings.ToLower(strings.TrimSpace(raw))
}

// ==================== 默认映射 ====================

// DefaultStatusMappings 各平台原始状态词表的初始配置
// 启动时 Upsert 入库；后续由管理侧维护
func DefaultStatusMappings() []model.StatusMapping {
	entries := []struct {
		platform string
		raw      string
		central  model.CentralStatus
	}{
		// Reverb
		{model.PlatformReverb, "draft", model.CentralStatusDraft},
		{model.PlatformReverb, "live", model.CentralStatusActive},
		{model.PlatformReverb, "sold", model.CentralStatusSold},
		{model.PlatformReverb, "ended", model.CentralStatusArchived},
		{model.PlatformReverb, "suspended", model.CentralStatusArchived},
		// eBay
		{model.PlatformEbay, "active", model.CentralStatusActive},
		{model.PlatformEbay, "completed", model.CentralStatusSold},
		{model.PlatformEbay, "ended", model.CentralStatusArchived},
		// Shopify
		{model.PlatformShopify, "draft", model.CentralStatusDraft},
		{model.PlatformShopify, "active", model.CentralStatusActive},
		{model.PlatformShopify, "archived", model.CentralStatusArchived},
		// Vintage & Rare
		{model.PlatformVR, "pending", model.CentralStatusDraft},
		{model.PlatformVR, "active", model.CentralStatusActive},
		{model.PlatformVR, "sold", model.CentralStatusSold},
		{model.PlatformVR, "removed", model.CentralStatusArchived},
	}

	mappings := make([]model.StatusMapping, 0, len(entries))
	for _, e := range entries {
		mappings = append(mappings, model.StatusMapping{
			PlatformName:  e.platform,
			RawStatus:     e.raw,
			CentralStatus: e.central,
		})
	}
	return mappings
}
