package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/datatypes"

	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== PollerService 平台检测服务 ====================

// PollerService 拉取平台权威上架集合，与本地快照比对并落事件
// 只读组件：除事件表插入外不写任何业务表
type PollerService struct {
	links    repository.PlatformLinkRepository
	events   repository.SyncEventRepository
	registry *platform.Registry
}

// NewPollerService 创建检测服务
func NewPollerService(
	links repository.PlatformLinkRepository,
	events repository.SyncEventRepository,
	registry *platform.Registry,
) *PollerService {
	return &PollerService{
		links:    links,
		events:   events,
		registry: registry,
	}
}

// Platforms 本实例实际注册的平台名
// 配置里关掉的平台不在其中，默认全量同步以此为准
func (s *PollerService) Platforms() []string {
	return s.registry.Names()
}

// Detect 检测单个平台的偏差并写入事件日志
// 返回本次落库的事件；传输/平台错误原样上抛，由编排层分类处置
func (s *PollerService) Detect(ctx context.Context, runID, platformName string) ([]model.SyncEvent, error) {
	client, ok := s.registry.Get(platformName)
	if !ok {
		return nil, fmt.Errorf("未注册的平台: %s", platformName)
	}

	remotes, err := client.ListListings(ctx)
	if err != nil {
		return nil, err
	}

	links, err := s.links.ListAttachedByPlatform(ctx, platformName)
	if err != nil {
		return nil, fmt.Errorf("读取本地链接快照失败: %w", err)
	}

	remoteByID := make(map[string]platform.RemoteListing, len(remotes))
	for _, r := range remotes {
		remoteByID[r.ExternalID] = r
	}

	now := time.Now().UTC()
	var events []model.SyncEvent

	knownIDs := make(map[string]bool, len(links))
	for i := range links {
		link := links[i]
		if link.ExternalID == "" {
			continue
		}
		knownIDs[link.ExternalID] = true

		remote, exists := remoteByID[link.ExternalID]
		if !exists {
			events = append(events, s.newEvent(runID, platformName, &link, now,
				model.ChangeRemovedListing, link.RemoteStatus, ""))
			continue
		}

		events = append(events, s.diffListing(ctx, runID, platformName, &link, remote, now)...)
	}

	// 平台上存在但本地从未登记过的上架
	for _, remote := range remotes {
		if knownIDs[remote.ExternalID] {
			continue
		}
		ev := model.SyncEvent{
			SyncRunID:    runID,
			PlatformName: platformName,
			ExternalID:   remote.ExternalID,
			ChangeType:   model.ChangeNewListing,
			ChangeData:   mustChangeData("", remote.RawStatus),
			Status:       model.EventStatusPending,
			DetectedAt:   now,
		}
		events = append(events, ev)
	}

	if err := s.events.CreateBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("写入同步事件失败: %w", err)
	}

	if len(events) > 0 {
		log.Printf("[Poller] 平台 %s 检测到 %d 条偏差", platformName, len(events))
	}
	return events, nil
}

// diffListing 逐字段比对单条上架
func (s *PollerService) diffListing(ctx context.Context, runID, platformName string, link *model.PlatformLink, remote platform.RemoteListing, now time.Time) []model.SyncEvent {
	var events []model.SyncEvent

	if remote.RawStatus != link.RemoteStatus {
		events = append(events, s.newEvent(runID, platformName, link, now,
			model.ChangeStatus, link.RemoteStatus, remote.RawStatus))
	}

	detail, err := s.links.GetLiveDetail(ctx, link.ID)
	if err != nil {
		// 没有 detail 快照时只做状态比对
		return events
	}

	if math.Abs(remote.Price-detail.Price) > 0.009 {
		events = append(events, s.newEvent(runID, platformName, link, now,
			model.ChangePrice,
			fmt.Sprintf("%.2f", detail.Price), fmt.Sprintf("%.2f", remote.Price)))
	}
	if remote.Title != "" && remote.Title != detail.Title {
		events = append(events, s.newEvent(runID, platformName, link, now,
			model.ChangeTitle, detail.Title, remote.Title))
	}
	if remote.Description != "" && remote.Description != detail.Description {
		events = append(events, s.newEvent(runID, platformName, link, now,
			model.ChangeDescription, detail.Description, remote.Description))
	}

	return events
}

func (s *PollerService) newEvent(runID, platformName string, link *model.PlatformLink, now time.Time,
	changeType model.EventChangeType, oldVal, newVal string) model.SyncEvent {
	return model.SyncEvent{
		SyncRunID:    runID,
		PlatformName: platformName,
		ProductID:    link.ProductID,
		ExternalID:   link.ExternalID,
		ChangeType:   changeType,
		ChangeData:   mustChangeData(oldVal, newVal),
		Status:       model.EventStatusPending,
		DetectedAt:   now,
	}
}

func mustChangeData(oldVal, newVal string) datatypes.JSON {
	raw, _ := json.Marshal(model.StatusChangeData{Old: oldVal, New: newVal})
	return datatypes.JSON(raw)
}
