package model

// ==================== 平台常量 ====================

// 支持的四个外部市场
const (
	PlatformEbay    = "ebay"
	PlatformReverb  = "reverb"
	PlatformShopify = "shopify"
	PlatformVR      = "vintageandrare"
)

// AllPlatforms 返回全部平台名（固定顺序，便于遍历和测试）
func AllPlatforms() []string {
	return []string{PlatformEbay, PlatformReverb, PlatformShopify, PlatformVR}
}

// ==================== 中央状态 ====================

// CentralStatus 商品的唯一权威生命周期状态
// 由各平台状态经 StatusMapping 折叠得出
type CentralStatus string

const (
	CentralStatusDraft    CentralStatus = "DRAFT"
	CentralStatusActive   CentralStatus = "ACTIVE"
	CentralStatusSold     CentralStatus = "SOLD"
	CentralStatusArchived CentralStatus = "ARCHIVED"
)

// centralPrecedence 冲突消解优先级，数值越小优先级越高
// 任一平台确认售出即强制 SOLD，哪怕其他平台仍显示在售
var centralPrecedence = map[CentralStatus]int{
	CentralStatusSold:     0,
	CentralStatusActive:   1,
	CentralStatusDraft:    2,
	CentralStatusArchived: 3,
}

// ResolveCentralStatus 将多平台状态折叠为一个中央状态（纯函数）
// 所有需要跨平台收敛状态的流程都必须走这里，不允许各自内联优先级规则
func ResolveCentralStatus(statuses []CentralStatus) (CentralStatus, bool) {
	best := CentralStatus("")
	found := false
	for _, s := range statuses {
		p, ok := centralPrecedence[s]
		if !ok {
			continue
		}
		if !found || p < centralPrecedence[best] {
			best = s
			found = true
		}
	}
	return best, found
}

// ==================== 平台侧状态 ====================

// ListingStatus PlatformLink 面向平台的状态
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusEnded     ListingStatus = "ended"
	ListingStatusRefreshed ListingStatus = "refreshed"
	ListingStatusError     ListingStatus = "error"
)

// ListingStatusFor 中央状态对应的平台侧展示状态
func ListingStatusFor(cs CentralStatus) ListingStatus {
	switch cs {
	case CentralStatusSold:
		return ListingStatusSold
	case CentralStatusActive:
		return ListingStatusActive
	case CentralStatusDraft:
		return ListingStatusDraft
	case CentralStatusArchived:
		return ListingStatusEnded
	default:
		return ListingStatusError
	}
}

// CentralStatusFor 平台侧状态回推中央状态（用于未发生变更的链路参与折叠）
func CentralStatusFor(ls ListingStatus) (CentralStatus, bool) {
	switch ls {
	case ListingStatusSold:
		return CentralStatusSold, true
	case ListingStatusActive, ListingStatusRefreshed:
		return CentralStatusActive, true
	case ListingStatusDraft:
		return CentralStatusDraft, true
	case ListingStatusEnded:
		return CentralStatusArchived, true
	default:
		return "", false
	}
}

// ==================== 同步状态 ====================

// LinkSyncStatus PlatformLink 的本地同步状态
type LinkSyncStatus string

const (
	LinkSyncPending LinkSyncStatus = "pending"
	LinkSyncSynced  LinkSyncStatus = "synced"
	LinkSyncFailed  LinkSyncStatus = "failed"
)
