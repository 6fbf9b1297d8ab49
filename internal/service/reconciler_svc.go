package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/api/dto"
	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== Reconciler 对账服务 ====================

// Reconciler 消费一次运行的事件并收敛中央状态
// 幂等：已 processed 的事件重放时直接跳过
// 可恢复：失败运行已提交的事件保持提交，重试从下一条未处理事件继续
// 任何错误都不重试（重试属于编排层，且仅限传输错误）
type Reconciler struct {
	db       *gorm.DB
	events   repository.SyncEventRepository
	links    repository.PlatformLinkRepository
	products repository.ProductRepository
	mapper   *StatusMapper
}

// NewReconciler 创建对账服务
func NewReconciler(
	db *gorm.DB,
	events repository.SyncEventRepository,
	links repository.PlatformLinkRepository,
	products repository.ProductRepository,
	mapper *StatusMapper,
) *Reconciler {
	return &Reconciler{
		db:       db,
		events:   events,
		links:    links,
		products: products,
		mapper:   mapper,
	}
}

// Reconcile 按 detected_at 全序处理指定运行的事件
func (r *Reconciler) Reconcile(ctx context.Context, runID string) (*dto.ReconcileReport, error) {
	events, err := r.events.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("读取运行事件失败: %w", err)
	}

	report := &dto.ReconcileReport{SyncRunID: runID}

	for i := range events {
		ev := events[i]

		// 幂等重放：非 pending 一律跳过
		if ev.Status != model.EventStatusPending {
			report.Skipped++
			continue
		}

		if err := r.processEvent(ctx, &ev, report); err != nil {
			// 基础设施错误终止本次运行；已处理事件保持提交，重试自动续跑
			return report, fmt.Errorf("处理事件 %d 失败: %w", ev.ID, err)
		}
	}

	log.Printf("[Reconciler] 运行 %s 对账完成: applied=%d skipped=%d conflicts=%d errors=%d",
		runID, report.Applied, report.Skipped, report.Conflicts, report.Errors)
	return report, nil
}

// processEvent 单事件处理；状态与标记在同一事务内落库
func (r *Reconciler) processEvent(ctx context.Context, ev *model.SyncEvent, report *dto.ReconcileReport) error {
	switch ev.ChangeType {
	case model.ChangeStatus:
		return r.applyStatusChange(ctx, ev, report)
	case model.ChangeRemovedListing:
		return r.applyRemoval(ctx, ev, report)
	case model.ChangeNewListing:
		// 自动挂接有撞库风险，留给人工；事件仅归档
		report.Skipped++
		return r.events.MarkProcessed(ctx, ev.ID, "平台侧新上架，待人工挂接")
	case model.ChangePrice, model.ChangeTitle, model.ChangeDescription:
		return r.applyContentChange(ctx, ev, report)
	default:
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, fmt.Sprintf("未知的变更类型: %s", ev.ChangeType))
	}
}

// applyStatusChange 状态事件：映射 -> 折叠 -> 落库
func (r *Reconciler) applyStatusChange(ctx context.Context, ev *model.SyncEvent, report *dto.ReconcileReport) error {
	var change model.StatusChangeData
	if err := json.Unmarshal(ev.ChangeData, &change); err != nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "变更快照不可解析: "+err.Error())
	}

	// 两侧都必须可映射；未识别的词表严禁猜测，隔离待人工
	newCentral, ok := r.mapper.Map(ev.PlatformName, change.New)
	if !ok {
		report.Errors++
		gap := &MappingGapError{Platform: ev.PlatformName, RawStatus: change.New}
		return r.events.MarkError(ctx, ev.ID, gap.Error())
	}

	// 旧值为空表示首次观测，只映射非空侧
	if change.Old != "" {
		oldCentral, ok := r.mapper.Map(ev.PlatformName, change.Old)
		if !ok {
			report.Errors++
			gap := &MappingGapError{Platform: ev.PlatformName, RawStatus: change.Old}
			return r.events.MarkError(ctx, ev.ID, gap.Error())
		}
		// 词表不同但语义一致，属于噪音；仍要推进 remote_status 快照，
		// 否则下轮轮询会对同一原始词重复出事件
		if oldCentral == newCentral {
			report.Skipped++
			return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				txLinks := r.links.WithTx(tx)
				txEvents := r.events.WithTx(tx)

				if link, err := txLinks.GetByExternalID(ctx, ev.PlatformName, ev.ExternalID); err == nil {
					if err := txLinks.UpdateFields(ctx, link.ID, map[string]interface{}{
						"remote_status": change.New,
					}); err != nil {
						return err
					}
				}
				return txEvents.MarkProcessed(ctx, ev.ID, "映射后状态无变化")
			})
		}
	}

	if ev.ProductID == nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "状态事件缺少商品关联")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txProducts := r.products.WithTx(tx)
		txLinks := r.links.WithTx(tx)
		txEvents := r.events.WithTx(tx)

		// 行级锁串行化并发对账
		product, err := txProducts.GetByIDForUpdate(ctx, *ev.ProductID)
		if err != nil {
			return err
		}

		link, err := txLinks.GetByExternalID(ctx, ev.PlatformName, ev.ExternalID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := txLinks.UpdateFields(ctx, link.ID, map[string]interface{}{
			"status":        model.ListingStatusFor(newCentral),
			"remote_status": change.New,
			"sync_status":   model.LinkSyncSynced,
			"last_sync":     now,
		}); err != nil {
			return err
		}

		resolved, err := r.resolveProductStatus(ctx, txLinks, product.ID, link.ID, newCentral)
		if err != nil {
			return err
		}

		if resolved != product.Status {
			if err := txProducts.UpdateStatus(ctx, product.ID, resolved); err != nil {
				return err
			}
		}

		// 折叠结果与本事件不一致说明优先级压制了它（例如他处已售出）
		if resolved != newCentral {
			report.Conflicts++
		}
		report.Applied++

		return txEvents.MarkProcessed(ctx, ev.ID, string(resolved))
	})
}

// applyRemoval 平台侧下架：链接落终态，商品状态重新折叠
func (r *Reconciler) applyRemoval(ctx context.Context, ev *model.SyncEvent, report *dto.ReconcileReport) error {
	if ev.ProductID == nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "下架事件缺少商品关联")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txProducts := r.products.WithTx(tx)
		txLinks := r.links.WithTx(tx)
		txEvents := r.events.WithTx(tx)

		product, err := txProducts.GetByIDForUpdate(ctx, *ev.ProductID)
		if err != nil {
			return err
		}

		link, err := txLinks.GetByExternalID(ctx, ev.PlatformName, ev.ExternalID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := txLinks.UpdateFields(ctx, link.ID, map[string]interface{}{
			"status":        model.ListingStatusEnded,
			"remote_status": "",
			"sync_status":   model.LinkSyncSynced,
			"last_sync":     now,
		}); err != nil {
			return err
		}

		resolved, err := r.resolveProductStatus(ctx, txLinks, product.ID, link.ID, model.CentralStatusArchived)
		if err != nil {
			return err
		}
		if resolved != product.Status {
			if err := txProducts.UpdateStatus(ctx, product.ID, resolved); err != nil {
				return err
			}
		}

		report.Applied++
		return txEvents.MarkProcessed(ctx, ev.ID, string(resolved))
	})
}

// applyContentChange 价格/标题/描述漂移：刷新本地 detail 快照
func (r *Reconciler) applyContentChange(ctx context.Context, ev *model.SyncEvent, report *dto.ReconcileReport) error {
	var change model.StatusChangeData
	if err := json.Unmarshal(ev.ChangeData, &change); err != nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "变更快照不可解析: "+err.Error())
	}

	link, err := r.links.GetByExternalID(ctx, ev.PlatformName, ev.ExternalID)
	if err != nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "找不到对应链接: "+err.Error())
	}

	detail, err := r.links.GetLiveDetail(ctx, link.ID)
	if err != nil {
		report.Errors++
		return r.events.MarkError(ctx, ev.ID, "找不到 detail 快照: "+err.Error())
	}

	switch ev.ChangeType {
	case model.ChangePrice:
		var price float64
		if _, err := fmt.Sscanf(change.New, "%f", &price); err != nil {
			report.Errors++
			return r.events.MarkError(ctx, ev.ID, "价格快照不可解析: "+err.Error())
		}
		detail.Price = price
	case model.ChangeTitle:
		detail.Title = change.New
	case model.ChangeDescription:
		detail.Description = change.New
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.links.WithTx(tx).UpdateDetail(ctx, detail); err != nil {
			return err
		}
		report.Applied++
		return r.events.WithTx(tx).MarkProcessed(ctx, ev.ID, "快照已刷新")
	})
}

// resolveProductStatus 折叠商品全部挂接链路的状态
// changedLinkID 的状态以 changedCentral 为准（本事务内刚更新，避免读旧值）
func (r *Reconciler) resolveProductStatus(ctx context.Context, txLinks repository.PlatformLinkRepository,
	productID, changedLinkID int64, changedCentral model.CentralStatus) (model.CentralStatus, error) {

	links, err := txLinks.ListByProduct(ctx, productID)
	if err != nil {
		return "", err
	}

	statuses := make([]model.CentralStatus, 0, len(links))
	for _, l := range links {
		if l.ID == changedLinkID {
			statuses = append(statuses, changedCentral)
			continue
		}
		if cs, ok := model.CentralStatusFor(l.Status); ok {
			statuses = append(statuses, cs)
		}
	}

	resolved, ok := model.ResolveCentralStatus(statuses)
	if !ok {
		// 没有任何可用状态时维持现状
		product, err := r.products.GetByID(ctx, productID)
		if err != nil {
			return "", err
		}
		return product.Status, nil
	}
	return resolved, nil
}

// ==================== 私下成交推断 ====================

// InferPrivateSale 展示用的启发式：近期各平台全部下架且无任何售出观测
// 仅供展示参考，绝不回写 Product.Status
func (r *Reconciler) InferPrivateSale(ctx context.Context, productID int64, window time.Duration) (bool, error) {
	links, err := r.links.ListByProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	attachedPlatforms := map[string]bool{}
	for _, l := range links {
		if l.Attached() {
			attachedPlatforms[l.PlatformName] = false
		}
	}
	if len(attachedPlatforms) == 0 {
		return false, nil
	}

	events, err := r.events.ListRecentByProduct(ctx, productID, time.Now().UTC().Add(-window))
	if err != nil {
		return false, err
	}

	for _, ev := range events {
		switch ev.ChangeType {
		case model.ChangeRemovedListing:
			attachedPlatforms[ev.PlatformName] = true
		case model.ChangeStatus:
			var change model.StatusChangeData
			if err := json.Unmarshal(ev.ChangeData, &change); err != nil {
				continue
			}
			if cs, ok := r.mapper.Map(ev.PlatformName, change.New); ok {
				if cs == model.CentralStatusSold {
					return false, nil
				}
				if cs == model.CentralStatusArchived {
					attachedPlatforms[ev.PlatformName] = true
				}
			}
		}
	}

	for _, ended := range attachedPlatforms {
		if !ended {
			return false, nil
		}
	}
	return true, nil
}
