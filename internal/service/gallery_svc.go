package service

import (
	"context"
	"fmt"
	"log"

	"github.com/lib/pq"

	"gear_sync_v1_202509/internal/api/dto"
	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== GalleryService 图库对账 ====================

// 漂移原因
const (
	GalleryInSync        = "in_sync"        // 三方计数一致
	GalleryPlatformDrift = "platform_drift" // 平台实际图数偏离中央图库
	GalleryStaleCache    = "stale_cache"    // 平台没漂、本地快照陈旧
	GalleryCheckError    = "error"          // 平台查询失败，无法判定
)

// GalleryService 比对每个平台的图库三方计数：
// 平台实际 / 本地快照 / 中央图库
// 检测与修复严格分离：Detect 只读，ApplyFix 仅在显式调用时重推
type GalleryService struct {
	products repository.ProductRepository
	links    repository.PlatformLinkRepository
	registry *platform.Registry
}

// NewGalleryService 创建图库对账服务
func NewGalleryService(
	products repository.ProductRepository,
	links repository.PlatformLinkRepository,
	registry *platform.Registry,
) *GalleryService {
	return &GalleryService{products: products, links: links, registry: registry}
}

// Detect 逐平台产出漂移报告；任何写操作都不发生
func (s *GalleryService) Detect(ctx context.Context, productID int64) ([]dto.GalleryDrift, error) {
	images, err := s.products.GetImages(ctx, productID)
	if err != nil {
		return nil, err
	}
	canonical := len(images)

	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var drifts []dto.GalleryDrift
	for i := range links {
		link := links[i]
		if !link.Attached() || link.ExternalID == "" {
			continue
		}
		drifts = append(drifts, s.checkPlatform(ctx, &link, canonical))
	}
	return drifts, nil
}

func (s *GalleryService) checkPlatform(ctx context.Context, link *model.PlatformLink, canonical int) dto.GalleryDrift {
	drift := dto.GalleryDrift{Platform: link.PlatformName, CanonicalCount: canonical}

	if detail, err := s.links.GetLiveDetail(ctx, link.ID); err == nil {
		drift.StoredCount = len(detail.Images)
	}

	client, ok := s.registry.Get(link.PlatformName)
	if !ok {
		drift.Reason = GalleryCheckError
		return drift
	}

	remote, err := client.GetListing(ctx, link.ExternalID)
	if err != nil {
		log.Printf("[Gallery] 平台 %s 查询失败: %v", link.PlatformName, err)
		drift.Reason = GalleryCheckError
		return drift
	}
	drift.LiveCount = len(remote.ImageURLs)

	switch {
	case drift.LiveCount == canonical && drift.StoredCount == canonical:
		drift.Reason = GalleryInSync
	case drift.LiveCount != canonical:
		drift.Reason = GalleryPlatformDrift
		drift.NeedsFix = true
	default:
		// 平台与中央一致，只有本地快照过期
		drift.Reason = GalleryStaleCache
		drift.NeedsFix = true
	}
	return drift
}

// ApplyFix 把中央图库重推到所有漂移平台，并刷新各自本地快照
// 先走一轮只读检测：已对齐的平台零出站调用；逐平台隔离，互不拖累
func (s *GalleryService) ApplyFix(ctx context.Context, productID int64) ([]dto.GalleryFixResult, error) {
	drifts, err := s.Detect(ctx, productID)
	if err != nil {
		return nil, err
	}

	images, err := s.products.GetImages(ctx, productID)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}

	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	byPlatform := map[string]*model.PlatformLink{}
	for i := range links {
		if links[i].Attached() && links[i].ExternalID != "" {
			byPlatform[links[i].PlatformName] = &links[i]
		}
	}

	results := make([]dto.GalleryFixResult, 0, len(drifts))
	for _, d := range drifts {
		if !d.NeedsFix {
			continue
		}
		link, ok := byPlatform[d.Platform]
		if !ok {
			continue
		}
		results = append(results, s.fixPlatform(ctx, link, d, urls))
	}
	return results, nil
}

// fixPlatform 单平台修复：平台漂移重推中央图库，快照陈旧只刷本地
func (s *GalleryService) fixPlatform(ctx context.Context, link *model.PlatformLink, drift dto.GalleryDrift, urls []string) dto.GalleryFixResult {
	result := dto.GalleryFixResult{Platform: link.PlatformName}

	if drift.Reason == GalleryPlatformDrift {
		client, ok := s.registry.Get(link.PlatformName)
		if !ok {
			result.Message = fmt.Sprintf("平台客户端未注册: %s", link.PlatformName)
			return result
		}
		if err := client.UpdateListing(ctx, link.ExternalID, map[string]interface{}{"images": urls}); err != nil {
			result.Message = err.Error()
			return result
		}
		result.Action = "pushed"
	} else {
		// 平台与中央一致，只有本地快照过期
		result.Action = "snapshot_refreshed"
	}

	if detail, err := s.links.GetLiveDetail(ctx, link.ID); err == nil {
		detail.Images = pq.StringArray(urls)
		if err := s.links.UpdateDetail(ctx, detail); err != nil {
			result.Message = "远端已对齐但本地快照更新失败: " + err.Error()
			return result
		}
	}

	result.Success = true
	return result
}
