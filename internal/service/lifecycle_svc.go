package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/api/dto"
	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== 错误定义 ====================

// DataIntegrityError 本地数据不满足操作前置条件（如缺少 external_id、缺少必填字段）
// 同步抛出、按平台上报，绝不中断兄弟平台
type DataIntegrityError struct {
	Platform string
	Message  string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("[%s] 数据完整性错误: %s", e.Platform, e.Message)
}

// ==================== LifecycleService 上架生命周期服务 ====================

// refreshPlatforms stale refresh 覆盖的平台
// Shopify 刻意排除：商品 URL 保持稳定以利 SEO
var refreshPlatforms = []string{model.PlatformReverb, model.PlatformEbay, model.PlatformVR}

// LifecycleService 跨平台 relist / stale refresh 工作流
// 两个流程都要替换 external_id，同时保证平台视图与本地审计轨迹一致
type LifecycleService struct {
	db         *gorm.DB
	products   repository.ProductRepository
	links      repository.PlatformLinkRepository
	registry   *platform.Registry
	pricing    PricingService
	categories repository.CategoryMappingRepository
}

// NewLifecycleService 创建生命周期服务
func NewLifecycleService(
	db *gorm.DB,
	products repository.ProductRepository,
	links repository.PlatformLinkRepository,
	registry *platform.Registry,
	pricing PricingService,
	categories repository.CategoryMappingRepository,
) *LifecycleService {
	return &LifecycleService{
		db:         db,
		products:   products,
		links:      links,
		registry:   registry,
		pricing:    pricing,
		categories: categories,
	}
}

// ==================== Relist 重新上架 ====================

// Relist 撤销的交易后把商品重新推回各平台
// 每个平台独立尝试；任一平台成功则商品回到 ACTIVE
// 没有 external_id 的平台直接跳过，不计入失败
func (s *LifecycleService) Relist(ctx context.Context, productID int64) (*dto.LifecycleReport, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}

	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	report := &dto.LifecycleReport{Results: []dto.LifecycleResult{}}
	attempted := 0

	for i := range links {
		link := links[i]
		if !link.Attached() {
			continue
		}
		if link.ExternalID == "" {
			log.Printf("[Lifecycle] 商品 %d 平台 %s 无 external_id，跳过 relist", productID, link.PlatformName)
			continue
		}

		attempted++
		result := s.relistPlatform(ctx, product, &link)
		report.Results = append(report.Results, result)
	}

	s.finishReport(report, attempted, "没有任何平台具备 relist 条件")

	if countSuccess(report.Results) > 0 {
		if err := s.products.UpdateStatus(ctx, productID, model.CentralStatusActive); err != nil {
			return report, fmt.Errorf("更新商品状态失败: %w", err)
		}
	}
	return report, nil
}

// relistPlatform 单平台 relist；所有异常折算为结果条目
func (s *LifecycleService) relistPlatform(ctx context.Context, product *model.Product, link *model.PlatformLink) dto.LifecycleResult {
	result := dto.LifecycleResult{Platform: link.PlatformName, OldID: link.ExternalID}

	client, ok := s.registry.Get(link.PlatformName)
	if !ok {
		result.Message = "平台客户端未注册"
		return result
	}

	var err error
	switch link.PlatformName {
	case model.PlatformEbay:
		// 结构上最复杂：原生 relist 动词会签发全新 ItemID，
		// 旧 detail 行孤儿化并留下指向新 ID 的前向指针
		result, err = s.relistEbay(ctx, client, product, link)
		if err != nil {
			result.Message = err.Error()
			return result
		}
		return result
	case model.PlatformReverb:
		// 重新发布已 end 的 Reverb 上架
		err = client.UpdateListing(ctx, link.ExternalID, map[string]interface{}{"publish": true})
	case model.PlatformShopify:
		err = client.UpdateListing(ctx, link.ExternalID, map[string]interface{}{"status": "active"})
	case model.PlatformVR:
		// V&R 的 restore-from-sold
		err = client.UpdateListing(ctx, link.ExternalID, map[string]interface{}{"sold": false, "status": "active"})
	default:
		err = fmt.Errorf("未知平台: %s", link.PlatformName)
	}

	if err != nil {
		result.Message = err.Error()
		return result
	}

	if err := s.markLinkActive(ctx, link.ID, link.ExternalID, ""); err != nil {
		result.Message = "远程成功但本地更新失败: " + err.Error()
		return result
	}

	result.Success = true
	result.NewID = link.ExternalID
	result.Message = "重新上架成功"
	return result
}

// relistEbay eBay 专用流程：orphan-and-replace detail 行
func (s *LifecycleService) relistEbay(ctx context.Context, client platform.Client, product *model.Product, link *model.PlatformLink) (dto.LifecycleResult, error) {
	result := dto.LifecycleResult{Platform: link.PlatformName, OldID: link.ExternalID}

	relister, ok := client.(platform.Relister)
	if !ok {
		return result, fmt.Errorf("客户端不支持 relist 动词")
	}

	detail, err := s.links.GetLiveDetail(ctx, link.ID)
	if err != nil {
		return result, &DataIntegrityError{Platform: link.PlatformName, Message: "缺少 detail 快照，无法复制静态属性"}
	}

	newID, err := relister.Relist(ctx, link.ExternalID)
	if err != nil {
		return result, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLinks := s.links.WithTx(tx)

		audit, err := model.NewAuditEvent(model.AuditKindRelist, model.RelistAudit{
			PlatformName:  link.PlatformName,
			LinkID:        link.ID,
			OldExternalID: link.ExternalID,
			NewExternalID: newID,
		})
		if err != nil {
			return err
		}

		// 旧行孤儿化：platform_id 清空、落 ENDED、审计记录 relist 去向
		if err := txLinks.OrphanDetail(ctx, detail.ID, model.ListingStatusEnded, audit); err != nil {
			return err
		}

		// 新行复制静态属性（标题/价格/图片/策略字段）
		replacement := model.PlatformListingDetail{
			PlatformID:   &link.ID,
			PlatformName: link.PlatformName,
			ExternalID:   newID,
			SKU:          detail.SKU,
			Title:        detail.Title,
			Description:  detail.Description,
			Price:        detail.Price,
			CurrencyCode: detail.CurrencyCode,
			CategoryID:   detail.CategoryID,
			ListingType:  detail.ListingType,
			Images:       detail.Images,
			Status:       model.ListingStatusActive,
		}
		if err := txLinks.CreateDetail(ctx, &replacement); err != nil {
			return err
		}

		// 链接原地更新到新 external_id
		return txLinks.UpdateFields(ctx, link.ID, map[string]interface{}{
			"external_id":   newID,
			"status":        model.ListingStatusActive,
			"remote_status": "active",
			"sync_status":   model.LinkSyncSynced,
			"last_sync":     time.Now().UTC(),
		})
	})
	if err != nil {
		return result, fmt.Errorf("relist 远程成功但本地落库失败 (新 ID %s): %w", newID, err)
	}

	result.Success = true
	result.NewID = newID
	result.Message = "eBay relist 成功"
	return result, nil
}

// ==================== Stale Refresh 陈旧刷新 ====================

// RefreshProduct 结束陈旧上架并以全新 external_id 重建，重置平台曝光信号
// 覆盖 Reverb / eBay / V&R；Shopify 明确排除
func (s *LifecycleService) RefreshProduct(ctx context.Context, productID int64, reason string) (*dto.LifecycleReport, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}

	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	report := &dto.LifecycleReport{Results: []dto.LifecycleResult{}}
	attempted := 0

	// Reverb 要求 SKU 全局唯一：整次 refresh 使用同一个版本化 SKU
	newSKU := NextRefreshSKU(product.SKU)

	integrityErr := s.checkRefreshPreconditions(product)

	for i := range links {
		link := links[i]
		if !link.Attached() || link.ExternalID == "" {
			continue
		}
		if !isRefreshPlatform(link.PlatformName) {
			continue
		}

		attempted++
		if integrityErr != nil {
			report.Results = append(report.Results, dto.LifecycleResult{
				Platform: link.PlatformName,
				OldID:    link.ExternalID,
				Message:  integrityErr.Error(),
			})
			continue
		}

		result := s.refreshPlatform(ctx, product, &link, newSKU, reason)
		report.Results = append(report.Results, result)
	}

	s.finishReport(report, attempted, "没有任何平台具备 refresh 条件")

	if countSuccess(report.Results) > 0 {
		if err := s.products.UpdateFields(ctx, productID, map[string]interface{}{"sku": newSKU}); err != nil {
			return report, fmt.Errorf("更新商品 SKU 失败: %w", err)
		}
	}
	return report, nil
}

// RefreshStale 扫描所有超龄链接并按商品逐个刷新（供定时任务调用）
func (s *LifecycleService) RefreshStale(ctx context.Context, olderThan time.Duration) (int, int, error) {
	before := time.Now().UTC().Add(-olderThan)
	staleLinks, err := s.links.ListStale(ctx, refreshPlatforms, before)
	if err != nil {
		return 0, 0, err
	}

	productIDs := map[int64]bool{}
	for _, l := range staleLinks {
		if l.ProductID != nil {
			productIDs[*l.ProductID] = true
		}
	}

	refreshed, failed := 0, 0
	for pid := range productIDs {
		report, err := s.RefreshProduct(ctx, pid, fmt.Sprintf("stale listing (> %s)", olderThan))
		if err != nil || report.Status == "error" {
			failed++
			log.Printf("[Lifecycle] 商品 %d 刷新失败: %v", pid, err)
			continue
		}
		refreshed++
	}
	return refreshed, failed, nil
}

// refreshPlatform 单平台 end + recreate
func (s *LifecycleService) refreshPlatform(ctx context.Context, product *model.Product, link *model.PlatformLink, newSKU, reason string) dto.LifecycleResult {
	result := dto.LifecycleResult{Platform: link.PlatformName, OldID: link.ExternalID}

	client, ok := s.registry.Get(link.PlatformName)
	if !ok {
		result.Message = "平台客户端未注册"
		return result
	}

	detail, err := s.links.GetLiveDetail(ctx, link.ID)
	if err != nil {
		result.Message = (&DataIntegrityError{Platform: link.PlatformName, Message: "缺少 detail 快照"}).Error()
		return result
	}

	if err := client.EndListing(ctx, link.ExternalID); err != nil {
		result.Message = err.Error()
		return result
	}

	draft := s.buildReplacementDraft(ctx, product, detail, newSKU)
	newID, err := client.CreateListing(ctx, draft)
	if err != nil {
		result.Message = fmt.Sprintf("旧上架已结束但重建失败: %v", err)
		return result
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txLinks := s.links.WithTx(tx)

		audit, err := model.NewAuditEvent(model.AuditKindRefresh, model.RefreshAudit{
			Reason:        reason,
			ProductID:     product.ID,
			SKU:           product.SKU,
			OldExternalID: link.ExternalID,
			NewExternalID: newID,
		})
		if err != nil {
			return err
		}

		if err := txLinks.OrphanDetail(ctx, detail.ID, model.ListingStatusRefreshed, audit); err != nil {
			return err
		}

		replacement := model.PlatformListingDetail{
			PlatformID:   &link.ID,
			PlatformName: link.PlatformName,
			ExternalID:   newID,
			SKU:          newSKU,
			Title:        draft.Title,
			Description:  draft.Description,
			Price:        draft.Price,
			CurrencyCode: draft.Currency,
			CategoryID:   draft.CategoryID,
			ListingType:  detail.ListingType,
			Images:       draft.ImageURLs,
			Status:       model.ListingStatusActive,
		}
		if err := txLinks.CreateDetail(ctx, &replacement); err != nil {
			return err
		}

		return txLinks.UpdateFields(ctx, link.ID, map[string]interface{}{
			"external_id":   newID,
			"status":        model.ListingStatusRefreshed,
			"remote_status": "active",
			"sync_status":   model.LinkSyncSynced,
			"last_sync":     time.Now().UTC(),
		})
	})
	if err != nil {
		result.Message = fmt.Sprintf("重建成功但本地落库失败 (新 ID %s): %v", newID, err)
		return result
	}

	result.Success = true
	result.NewID = newID
	result.Message = "刷新成功"
	return result
}

// buildReplacementDraft 组装替换上架载荷
// 图片优先取中央图库（最富来源），价格走平台加价规则
func (s *LifecycleService) buildReplacementDraft(ctx context.Context, product *model.Product, detail *model.PlatformListingDetail, newSKU string) platform.ListingDraft {
	title := detail.Title
	if title == "" {
		title = product.Title
	}
	description := detail.Description
	if description == "" {
		description = product.Description
	}

	images := make([]string, 0, len(product.Images))
	for _, img := range product.Images {
		images = append(images, img.URL)
	}
	if len(images) == 0 {
		images = detail.Images
	}

	categoryID := detail.CategoryID
	if categoryID == "" {
		categoryID = s.fallbackCategory(ctx, product.ID, detail.PlatformName)
	}

	return platform.ListingDraft{
		SKU:         newSKU,
		Title:       title,
		Description: description,
		Price:       s.pricing.CalculatePlatformPrice(detail.PlatformName, product.BasePrice),
		Currency:    product.CurrencyCode,
		CategoryID:  categoryID,
		ListingType: detail.ListingType,
		ImageURLs:   images,
	}
}

// fallbackCategory 本平台缺分类时，借兄弟平台的分类走对照表换算
func (s *LifecycleService) fallbackCategory(ctx context.Context, productID int64, targetPlatform string) string {
	links, err := s.links.ListByProduct(ctx, productID)
	if err != nil {
		return ""
	}
	for _, l := range links {
		if l.PlatformName == targetPlatform || !l.Attached() {
			continue
		}
		sibling, err := s.links.GetLiveDetail(ctx, l.ID)
		if err != nil || sibling.CategoryID == "" {
			continue
		}
		if target, ok, err := s.categories.Lookup(ctx, l.PlatformName, sibling.CategoryID, targetPlatform); err == nil && ok {
			return target
		}
	}
	return ""
}

// checkRefreshPreconditions 重建上架的必填字段校验
func (s *LifecycleService) checkRefreshPreconditions(product *model.Product) error {
	if product.Title == "" {
		return &DataIntegrityError{Message: "商品缺少标题，无法重建上架"}
	}
	if product.BasePrice <= 0 {
		return &DataIntegrityError{Message: "商品缺少有效基准价，无法重建上架"}
	}
	return nil
}

// markLinkActive 远程操作成功后的本地状态推进
func (s *LifecycleService) markLinkActive(ctx context.Context, linkID int64, externalID, remoteStatus string) error {
	fields := map[string]interface{}{
		"status":      model.ListingStatusActive,
		"sync_status": model.LinkSyncSynced,
		"last_sync":   time.Now().UTC(),
	}
	if externalID != "" {
		fields["external_id"] = externalID
	}
	if remoteStatus != "" {
		fields["remote_status"] = remoteStatus
	}
	return s.links.UpdateFields(ctx, linkID, fields)
}

// ==================== 工具函数 ====================

var refreshSKUPattern = regexp.MustCompile(`^(.*)-R(\d+)$`)

// NextRefreshSKU 确定性 SKU 版本号
// RIFF-001 -> RIFF-001-R1 -> RIFF-001-R2，绝不叠加 -R1-R1
func NextRefreshSKU(sku string) string {
	if m := refreshSKUPattern.FindStringSubmatch(sku); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return fmt.Sprintf("%s-R%d", m[1], n+1)
		}
	}
	return sku + "-R1"
}

func isRefreshPlatform(name string) bool {
	for _, p := range refreshPlatforms {
		if p == name {
			return true
		}
	}
	return false
}

// finishReport 聚合为 success / partial / error / warning
func (s *LifecycleService) finishReport(report *dto.LifecycleReport, attempted int, warnMsg string) {
	if attempted == 0 {
		report.Status = "warning"
		report.Message = warnMsg
		return
	}

	succeeded := countSuccess(report.Results)
	switch {
	case succeeded == len(report.Results):
		report.Status = "success"
	case succeeded == 0:
		report.Status = "error"
	default:
		report.Status = "partial"
	}
	report.Message = fmt.Sprintf("%d/%d 平台成功", succeeded, len(report.Results))
}

func countSuccess(results []dto.LifecycleResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
