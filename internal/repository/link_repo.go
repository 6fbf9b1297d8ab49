package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/model"
)

// ==================== 接口定义 ====================

// PlatformLinkRepository 平台链接仓储接口
// 同时管理 PlatformLink 与其专属 detail 行，保证孤儿化动作的原子性
type PlatformLinkRepository interface {
	// 链接 CRUD
	Create(ctx context.Context, link *model.PlatformLink) error
	GetByID(ctx context.Context, id int64) (*model.PlatformLink, error)
	GetByExternalID(ctx context.Context, platform, externalID string) (*model.PlatformLink, error)
	ListByProduct(ctx context.Context, productID int64) ([]model.PlatformLink, error)
	ListAttachedByPlatform(ctx context.Context, platform string) ([]model.PlatformLink, error)
	Update(ctx context.Context, link *model.PlatformLink) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 孤儿化：断开商品关联，保留为纯审计行
	Orphan(ctx context.Context, id int64) error

	// Detail 行
	CreateDetail(ctx context.Context, detail *model.PlatformListingDetail) error
	GetLiveDetail(ctx context.Context, linkID int64) (*model.PlatformListingDetail, error)
	UpdateDetail(ctx context.Context, detail *model.PlatformListingDetail) error
	// OrphanDetail 清空 platform_id、落终态、追加审计块，一条语句内完成
	OrphanDetail(ctx context.Context, detailID int64, status model.ListingStatus, audit model.AuditEvent) error

	// stale refresh 的筛选：指定平台上挂接、且 live detail 行早于 before 创建的链接
	// 年龄以 detail 行计：刷新会重建 detail，计龄随之归零
	ListStale(ctx context.Context, platforms []string, before time.Time) ([]model.PlatformLink, error)

	// 事务
	WithTx(tx *gorm.DB) PlatformLinkRepository
	Transaction(ctx context.Context, fn func(txRepo PlatformLinkRepository) error) error
}

// ==================== 仓储实现 ====================

type linkRepo struct {
	db *gorm.DB
}

// NewPlatformLinkRepository 创建平台链接仓储
func NewPlatformLinkRepository(db *gorm.DB) PlatformLinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) Create(ctx context.Context, link *model.PlatformLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepo) GetByID(ctx context.Context, id int64) (*model.PlatformLink, error) {
	var link model.PlatformLink
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepo) GetByExternalID(ctx context.Context, platform, externalID string) (*model.PlatformLink, error) {
	var link model.PlatformLink
	err := r.db.WithContext(ctx).
		Where("platform_name = ? AND external_id = ? AND product_id IS NOT NULL", platform, externalID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepo) ListByProduct(ctx context.Context, productID int64) ([]model.PlatformLink, error) {
	var links []model.PlatformLink
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("platform_name ASC").
		Find(&links).Error
	return links, err
}

func (r *linkRepo) ListAttachedByPlatform(ctx context.Context, platform string) ([]model.PlatformLink, error) {
	var links []model.PlatformLink
	err := r.db.WithContext(ctx).
		Where("platform_name = ? AND product_id IS NOT NULL", platform).
		Find(&links).Error
	return links, err
}

func (r *linkRepo) Update(ctx context.Context, link *model.PlatformLink) error {
	return r.db.WithContext(ctx).Save(link).Error
}

func (r *linkRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.PlatformLink{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *linkRepo) Orphan(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.PlatformLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"product_id": nil,
			"status":     model.ListingStatusEnded,
		}).Error
}

func (r *linkRepo) CreateDetail(ctx context.Context, detail *model.PlatformListingDetail) error {
	return r.db.WithContext(ctx).Create(detail).Error
}

func (r *linkRepo) GetLiveDetail(ctx context.Context, linkID int64) (*model.PlatformListingDetail, error) {
	var detail model.PlatformListingDetail
	err := r.db.WithContext(ctx).
		Where("platform_id = ?", linkID).
		First(&detail).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *linkRepo) UpdateDetail(ctx context.Context, detail *model.PlatformListingDetail) error {
	return r.db.WithContext(ctx).Save(detail).Error
}

func (r *linkRepo) OrphanDetail(ctx context.Context, detailID int64, status model.ListingStatus, audit model.AuditEvent) error {
	var detail model.PlatformListingDetail
	if err := r.db.WithContext(ctx).First(&detail, detailID).Error; err != nil {
		return err
	}

	newAudit, err := model.AppendAudit(detail.Audit, audit)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Model(&model.PlatformListingDetail{}).
		Where("id = ?", detailID).
		Updates(map[string]interface{}{
			"platform_id": nil,
			"status":      status,
			"audit":       newAudit,
		}).Error
}

func (r *linkRepo) ListStale(ctx context.Context, platforms []string, before time.Time) ([]model.PlatformLink, error) {
	var links []model.PlatformLink
	err := r.db.WithContext(ctx).
		Model(&model.PlatformLink{}).
		Select("platform_links.*").
		Joins("JOIN platform_listing_details d ON d.platform_id = platform_links.id AND d.deleted_at IS NULL").
		Where("platform_links.platform_name IN ? AND platform_links.product_id IS NOT NULL", platforms).
		Where("platform_links.status IN ?", []model.ListingStatus{model.ListingStatusActive, model.ListingStatusRefreshed}).
		Where("d.created_at < ?", before).
		Find(&links).Error
	return links, err
}

func (r *linkRepo) WithTx(tx *gorm.DB) PlatformLinkRepository {
	return &linkRepo{db: tx}
}

func (r *linkRepo) Transaction(ctx context.Context, fn func(txRepo PlatformLinkRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
