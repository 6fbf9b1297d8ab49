package model

// Product 中央商品记录（唯一权威数据源）
type Product struct {
	BaseModel

	// --- 商品身份 ---
	// SKU 在 relist / stale refresh 流程中可变（版本号后缀），但任意时刻全局唯一
	SKU   string `gorm:"size:100;uniqueIndex;not null" json:"sku"`
	Brand string `gorm:"size:100;index" json:"brand"`
	Model string `gorm:"size:100" json:"model"`

	// --- 价格 ---
	BasePrice    float64 `gorm:"default:0" json:"base_price"`
	CurrencyCode string  `gorm:"size:5;default:'USD'" json:"currency_code"`

	// --- 状态 ---
	// 必须始终可由未孤儿化的 PlatformLink 经 ResolveCentralStatus 推导出来
	Status CentralStatus `gorm:"size:20;index;default:'DRAFT'" json:"status"`

	// --- 描述 ---
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	// --- 关联关系 ---
	Links  []PlatformLink `gorm:"foreignKey:ProductID" json:"links,omitempty"`
	Images []ProductImage `gorm:"foreignKey:ProductID" json:"images,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// ProductImage 中央图库（gallery 对账的 canonical 一侧）
type ProductImage struct {
	BaseModel

	ProductID int64    `gorm:"index;not null" json:"product_id"`
	Product   *Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	// --- 资源地址 ---
	URL       string `gorm:"size:512;not null" json:"url"`
	LocalPath string `gorm:"size:255" json:"local_path"`

	Rank   int `gorm:"default:99" json:"rank"`
	Height int `gorm:"default:0" json:"height"`
	Width  int `gorm:"default:0" json:"width"`
}

func (ProductImage) TableName() string {
	return "product_images"
}
