package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// PlatformLink 商品与单个外部市场的连接记录
// ProductID 为 NULL 表示已孤儿化：只作审计留存，永远不得重新挂回任何商品
type PlatformLink struct {
	BaseModel

	// --- 关联 ---
	ProductID *int64   `gorm:"index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`

	// --- 平台身份 ---
	PlatformName string `gorm:"size:30;not null;index:idx_platform_external" json:"platform_name"`
	// ExternalID 挂接期间在同一平台内唯一；孤儿化后该约束不再约束新行
	ExternalID string `gorm:"size:100;index:idx_platform_external" json:"external_id"`
	URL        string `gorm:"size:512" json:"url"`

	// --- 状态 ---
	Status ListingStatus `gorm:"size:20;index;default:'draft'" json:"status"`
	// RemoteStatus 上次观测到的平台原始状态词（Poller 只读取，Reconciler 负责推进）
	RemoteStatus string         `gorm:"size:50" json:"remote_status"`
	SyncStatus   LinkSyncStatus `gorm:"size:20;default:'pending'" json:"sync_status"`
	LastSync     *time.Time     `json:"last_sync"`

	// --- 审计/扩展 ---
	PlatformData datatypes.JSON `gorm:"type:jsonb" json:"platform_data,omitempty"`
}

func (PlatformLink) TableName() string {
	return "platform_links"
}

// Attached 是否仍挂接在商品上
func (l *PlatformLink) Attached() bool {
	return l.ProductID != nil
}

// PlatformListingDetail 平台专属的完整上架载荷
// 挂接的 PlatformLink 恰有一条 live 行；孤儿化的旧行永久留存供追溯
type PlatformListingDetail struct {
	BaseModel

	// PlatformID 指向 platform_links.id；孤儿化时清空
	PlatformID *int64        `gorm:"index" json:"platform_id"`
	Link       *PlatformLink `gorm:"foreignKey:PlatformID" json:"-"`

	PlatformName string `gorm:"size:30;not null;index" json:"platform_name"`
	ExternalID   string `gorm:"size:100;index" json:"external_id"`

	// --- 上架内容 ---
	SKU          string         `gorm:"size:100;index" json:"sku"`
	Title        string         `gorm:"size:255" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Price        float64        `gorm:"default:0" json:"price"`
	CurrencyCode string         `gorm:"size:5" json:"currency_code"`
	CategoryID   string         `gorm:"size:100" json:"category_id"`
	ListingType  string         `gorm:"size:50" json:"listing_type"`
	Images       pq.StringArray `gorm:"type:text[]" json:"images"`

	Status ListingStatus `gorm:"size:20;index;default:'draft'" json:"status"`

	// --- 审计轨迹 ---
	// []AuditEvent 序列化；每次孤儿化前必须先追加对应的审计条目
	Audit datatypes.JSON `gorm:"type:jsonb" json:"audit,omitempty"`
}

func (PlatformListingDetail) TableName() string {
	return "platform_listing_details"
}
