package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== 测试夹具 ====================

type reconcilerFixture struct {
	db       *gorm.DB
	products repository.ProductRepository
	links    repository.PlatformLinkRepository
	events   repository.SyncEventRepository
	rec      *Reconciler
}

func setupReconciler(t *testing.T) *reconcilerFixture {
	t.Helper()

	db := setupSyncTestDB(t)
	products := repository.NewProductRepository(db)
	links := repository.NewPlatformLinkRepository(db)
	events := repository.NewSyncEventRepository(db)
	statusRepo := repository.NewStatusMappingRepository(db)

	if err := statusRepo.Upsert(context.Background(), DefaultStatusMappings()); err != nil {
		t.Fatalf("播种映射表失败: %v", err)
	}
	mapper, err := NewStatusMapper(context.Background(), statusRepo)
	if err != nil {
		t.Fatalf("装载映射表失败: %v", err)
	}

	return &reconcilerFixture{
		db:       db,
		products: products,
		links:    links,
		events:   events,
		rec:      NewReconciler(db, events, links, products, mapper),
	}
}

func (f *reconcilerFixture) seedProduct(t *testing.T, sku string, status model.CentralStatus) *model.Product {
	t.Helper()
	p := &model.Product{
		SKU:          sku,
		Brand:        "Fender",
		Model:        "Jazzmaster",
		BasePrice:    1200,
		CurrencyCode: "USD",
		Status:       status,
		Title:        "1978 Fender Jazzmaster",
	}
	if err := f.products.Create(context.Background(), p); err != nil {
		t.Fatalf("建商品失败: %v", err)
	}
	return p
}

func (f *reconcilerFixture) seedLink(t *testing.T, productID int64, platformName, externalID string,
	status model.ListingStatus, remoteStatus string) *model.PlatformLink {
	t.Helper()
	l := &model.PlatformLink{
		ProductID:    &productID,
		PlatformName: platformName,
		ExternalID:   externalID,
		Status:       status,
		RemoteStatus: remoteStatus,
		SyncStatus:   model.LinkSyncSynced,
	}
	if err := f.links.Create(context.Background(), l); err != nil {
		t.Fatalf("建链接失败: %v", err)
	}
	return l
}

func statusEvent(runID, platformName, externalID string, productID int64, oldRaw, newRaw string) model.SyncEvent {
	return model.SyncEvent{
		SyncRunID:    runID,
		PlatformName: platformName,
		ProductID:    &productID,
		ExternalID:   externalID,
		ChangeType:   model.ChangeStatus,
		ChangeData:   datatypes.JSON([]byte(fmt.Sprintf(`{"old":%q,"new":%q}`, oldRaw, newRaw))),
		Status:       model.EventStatusPending,
		DetectedAt:   time.Now().UTC(),
	}
}

// ==================== 单元测试 ====================

func TestReconciler_SoldDominates(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-001", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-1", model.ListingStatusActive, "live")
	f.seedLink(t, p.ID, model.PlatformEbay, "EB-1", model.ListingStatusActive, "active")

	ev := statusEvent("run-1", model.PlatformReverb, "RV-1", p.ID, "live", "sold")
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Applied != 1 || report.Errors != 0 {
		t.Fatalf("applied=%d errors=%d", report.Applied, report.Errors)
	}

	// eBay 侧仍在售，但售出优先级压倒一切
	got, _ := f.products.GetByID(context.Background(), p.ID)
	if got.Status != model.CentralStatusSold {
		t.Errorf("商品状态 = %s, want SOLD", got.Status)
	}

	link, _ := f.links.GetByExternalID(context.Background(), model.PlatformReverb, "RV-1")
	if link.Status != model.ListingStatusSold {
		t.Errorf("链接状态 = %s, want sold", link.Status)
	}
	if link.RemoteStatus != "sold" {
		t.Errorf("原始状态快照 = %s, want sold", link.RemoteStatus)
	}
}

func TestReconciler_ConflictSuppression(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-002", model.CentralStatusSold)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-2", model.ListingStatusSold, "sold")
	f.seedLink(t, p.ID, model.PlatformEbay, "EB-2", model.ListingStatusActive, "active")

	// eBay 下架事件不能覆盖 Reverb 已售出的事实
	ev := statusEvent("run-2", model.PlatformEbay, "EB-2", p.ID, "active", "ended")
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Applied != 1 {
		t.Fatalf("applied = %d", report.Applied)
	}
	if report.Conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", report.Conflicts)
	}

	got, _ := f.products.GetByID(context.Background(), p.ID)
	if got.Status != model.CentralStatusSold {
		t.Errorf("商品状态 = %s, 不应被下架事件降级", got.Status)
	}

	// 平台侧更新照常生效
	link, _ := f.links.GetByExternalID(context.Background(), model.PlatformEbay, "EB-2")
	if link.Status != model.ListingStatusEnded {
		t.Errorf("eBay 链接状态 = %s, want ended", link.Status)
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-003", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-3", model.ListingStatusActive, "live")

	ev := statusEvent("run-3", model.PlatformReverb, "RV-3", p.ID, "live", "sold")
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	first, err := f.rec.Reconcile(context.Background(), "run-3")
	if err != nil {
		t.Fatalf("第一次 Reconcile: %v", err)
	}
	if first.Applied != 1 {
		t.Fatalf("第一次 applied = %d", first.Applied)
	}

	second, err := f.rec.Reconcile(context.Background(), "run-3")
	if err != nil {
		t.Fatalf("第二次 Reconcile: %v", err)
	}
	if second.Applied != 0 {
		t.Errorf("重放不应再次应用: applied = %d", second.Applied)
	}
	if second.Skipped != 1 {
		t.Errorf("重放应整体跳过: skipped = %d", second.Skipped)
	}
}

func TestReconciler_UnmappedStatusQuarantine(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-004", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-4", model.ListingStatusActive, "live")

	ev := statusEvent("run-4", model.PlatformReverb, "RV-4", p.ID, "live", "quantum_state")
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-4")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Errors != 1 || report.Applied != 0 {
		t.Fatalf("errors=%d applied=%d", report.Errors, report.Applied)
	}

	// 未映射状态隔离待人工，链接与商品都不许动
	link, _ := f.links.GetByExternalID(context.Background(), model.PlatformReverb, "RV-4")
	if link.Status != model.ListingStatusActive {
		t.Errorf("隔离事件不应改动链接: %s", link.Status)
	}
	got, _ := f.products.GetByID(context.Background(), p.ID)
	if got.Status != model.CentralStatusActive {
		t.Errorf("隔离事件不应改动商品: %s", got.Status)
	}

	evs, _ := f.events.ListByRun(context.Background(), "run-4")
	if evs[0].Status != model.EventStatusError {
		t.Errorf("事件状态 = %s, want error", evs[0].Status)
	}
}

func TestReconciler_NoiseSuppression(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-005", model.CentralStatusArchived)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-5", model.ListingStatusEnded, "ended")

	// ended 和 suspended 折叠后都是 ARCHIVED，是平台词表噪音
	ev := statusEvent("run-5", model.PlatformReverb, "RV-5", p.ID, "ended", "suspended")
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-5")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Applied != 0 || report.Skipped != 1 {
		t.Errorf("applied=%d skipped=%d, 噪音应跳过", report.Applied, report.Skipped)
	}

	evs, _ := f.events.ListByRun(context.Background(), "run-5")
	if evs[0].Status != model.EventStatusProcessed {
		t.Errorf("噪音事件也要归档: %s", evs[0].Status)
	}

	// 快照必须推进到新原始词，否则下轮轮询重复出同一事件
	link, err := f.links.GetByExternalID(context.Background(), model.PlatformReverb, "RV-5")
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if link.RemoteStatus != "suspended" {
		t.Errorf("remote_status = %q, want suspended", link.RemoteStatus)
	}
}

func TestReconciler_Removal(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-006", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-6", model.ListingStatusActive, "live")

	ev := model.SyncEvent{
		SyncRunID:    "run-6",
		PlatformName: model.PlatformReverb,
		ProductID:    &p.ID,
		ExternalID:   "RV-6",
		ChangeType:   model.ChangeRemovedListing,
		Status:       model.EventStatusPending,
		DetectedAt:   time.Now().UTC(),
	}
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-6")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Applied != 1 {
		t.Fatalf("applied = %d", report.Applied)
	}

	link, _ := f.links.GetByExternalID(context.Background(), model.PlatformReverb, "RV-6")
	if link.Status != model.ListingStatusEnded {
		t.Errorf("链接状态 = %s, want ended", link.Status)
	}
	got, _ := f.products.GetByID(context.Background(), p.ID)
	if got.Status != model.CentralStatusArchived {
		t.Errorf("唯一平台下架后商品应归档: %s", got.Status)
	}
}

func TestReconciler_NewListingLeftForManualAttach(t *testing.T) {
	f := setupReconciler(t)

	ev := model.SyncEvent{
		SyncRunID:    "run-7",
		PlatformName: model.PlatformReverb,
		ExternalID:   "RV-unknown",
		ChangeType:   model.ChangeNewListing,
		Status:       model.EventStatusPending,
		DetectedAt:   time.Now().UTC(),
	}
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-7")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Skipped != 1 || report.Errors != 0 {
		t.Errorf("skipped=%d errors=%d, 新上架只归档不挂接", report.Skipped, report.Errors)
	}

	evs, _ := f.events.ListByRun(context.Background(), "run-7")
	if evs[0].Status != model.EventStatusProcessed {
		t.Errorf("事件状态 = %s", evs[0].Status)
	}
}

func TestReconciler_ContentChangeRefreshesDetail(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-008", model.CentralStatusActive)
	link := f.seedLink(t, p.ID, model.PlatformReverb, "RV-8", model.ListingStatusActive, "live")

	detail := &model.PlatformListingDetail{
		PlatformID:   &link.ID,
		PlatformName: model.PlatformReverb,
		ExternalID:   "RV-8",
		SKU:          "JM-008",
		Title:        "1978 Fender Jazzmaster",
		Price:        1200,
		CurrencyCode: "USD",
		Status:       model.ListingStatusActive,
	}
	if err := f.links.CreateDetail(context.Background(), detail); err != nil {
		t.Fatalf("建 detail 失败: %v", err)
	}

	ev := model.SyncEvent{
		SyncRunID:    "run-8",
		PlatformName: model.PlatformReverb,
		ProductID:    &p.ID,
		ExternalID:   "RV-8",
		ChangeType:   model.ChangePrice,
		ChangeData:   datatypes.JSON([]byte(`{"old":"1200","new":"1350"}`)),
		Status:       model.EventStatusPending,
		DetectedAt:   time.Now().UTC(),
	}
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	report, err := f.rec.Reconcile(context.Background(), "run-8")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Applied != 1 {
		t.Fatalf("applied = %d", report.Applied)
	}

	got, _ := f.links.GetLiveDetail(context.Background(), link.ID)
	if got.Price != 1350 {
		t.Errorf("detail 价格 = %.2f, want 1350", got.Price)
	}
}

// ==================== 私下成交推断 ====================

func TestInferPrivateSale(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-009", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-9", model.ListingStatusEnded, "")
	f.seedLink(t, p.ID, model.PlatformEbay, "EB-9", model.ListingStatusEnded, "")

	mkRemoval := func(runID, platformName, extID string) model.SyncEvent {
		return model.SyncEvent{
			SyncRunID:    runID,
			PlatformName: platformName,
			ProductID:    &p.ID,
			ExternalID:   extID,
			ChangeType:   model.ChangeRemovedListing,
			Status:       model.EventStatusProcessed,
			DetectedAt:   time.Now().UTC(),
		}
	}

	events := []model.SyncEvent{
		mkRemoval("run-9", model.PlatformReverb, "RV-9"),
		mkRemoval("run-9", model.PlatformEbay, "EB-9"),
	}
	if err := f.events.CreateBatch(context.Background(), events); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	suspected, err := f.rec.InferPrivateSale(context.Background(), p.ID, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("InferPrivateSale: %v", err)
	}
	if !suspected {
		t.Error("各平台近期全部下架且无售出观测，应提示疑似私下成交")
	}
}

func TestInferPrivateSale_SoldObservationWins(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-010", model.CentralStatusSold)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-10", model.ListingStatusSold, "sold")
	f.seedLink(t, p.ID, model.PlatformEbay, "EB-10", model.ListingStatusEnded, "")

	events := []model.SyncEvent{
		statusEvent("run-10", model.PlatformReverb, "RV-10", p.ID, "live", "sold"),
		{
			SyncRunID:    "run-10",
			PlatformName: model.PlatformEbay,
			ProductID:    &p.ID,
			ExternalID:   "EB-10",
			ChangeType:   model.ChangeRemovedListing,
			Status:       model.EventStatusProcessed,
			DetectedAt:   time.Now().UTC(),
		},
	}
	if err := f.events.CreateBatch(context.Background(), events); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	suspected, err := f.rec.InferPrivateSale(context.Background(), p.ID, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("InferPrivateSale: %v", err)
	}
	if suspected {
		t.Error("存在售出观测时绝不提示私下成交")
	}
}

func TestInferPrivateSale_StillListed(t *testing.T) {
	f := setupReconciler(t)
	p := f.seedProduct(t, "JM-011", model.CentralStatusActive)
	f.seedLink(t, p.ID, model.PlatformReverb, "RV-11", model.ListingStatusActive, "live")
	f.seedLink(t, p.ID, model.PlatformEbay, "EB-11", model.ListingStatusEnded, "")

	ev := model.SyncEvent{
		SyncRunID:    "run-11",
		PlatformName: model.PlatformEbay,
		ProductID:    &p.ID,
		ExternalID:   "EB-11",
		ChangeType:   model.ChangeRemovedListing,
		Status:       model.EventStatusProcessed,
		DetectedAt:   time.Now().UTC(),
	}
	if err := f.events.CreateBatch(context.Background(), []model.SyncEvent{ev}); err != nil {
		t.Fatalf("落事件失败: %v", err)
	}

	suspected, err := f.rec.InferPrivateSale(context.Background(), p.ID, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("InferPrivateSale: %v", err)
	}
	if suspected {
		t.Error("仍有平台在售时不应提示私下成交")
	}
}
