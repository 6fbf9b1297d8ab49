package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gear_sync_v1_202509/internal/api/dto"
	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/notify"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
)

// ==================== Orchestrator 同步编排器 ====================

const (
	// 并发上限的硬夹取范围
	minConcurrency = 1
	maxConcurrency = 10
	// 非法入参时的兜底并发
	defaultConcurrency = 3

	// 传输类错误的重试上限与首档退避
	maxDetectAttempts = 3
)

// Orchestrator 把 N 个平台的检测拆成受限批次并发执行
// 重试策略只覆盖传输类错误（1s/2s 指数退避）；其余错误零重试直接判负
type Orchestrator struct {
	poller   *PollerService
	events   repository.SyncEventRepository
	notifier notify.Notifier

	// 退避基数做成字段，测试时可缩短
	backoffBase time.Duration
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	poller *PollerService,
	events repository.SyncEventRepository,
	notifier notify.Notifier,
) *Orchestrator {
	return &Orchestrator{
		poller:      poller,
		events:      events,
		notifier:    notifier,
		backoffBase: time.Second,
	}
}

// Platforms 可同步的平台名，即注册表里实际有客户端的那些
func (o *Orchestrator) Platforms() []string {
	return o.poller.Platforms()
}

// Run 编排一次多平台检测
// 批内并发、批间串行；单平台异常绝不拖垮同批邻居
func (o *Orchestrator) Run(ctx context.Context, platforms []string, maxConcurrent int) (*dto.SyncReport, error) {
	if len(platforms) == 0 {
		return nil, fmt.Errorf("未指定任何平台")
	}

	concurrency := clampConcurrency(maxConcurrent)

	runID := uuid.NewString()
	startedAt := time.Now().UTC()

	run := &model.SyncRun{
		RunID:     runID,
		Platforms: platforms,
		StartedAt: startedAt,
	}
	if err := o.events.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}

	log.Printf("[Orchestrator] 开始运行 %s: %d 个平台, 并发 %d", runID, len(platforms), concurrency)

	results := make([]dto.PlatformResult, 0, len(platforms))
	var mu sync.Mutex

	// 批间串行，批内并发
	for start := 0; start < len(platforms); start += concurrency {
		end := start + concurrency
		if end > len(platforms) {
			end = len(platforms)
		}
		batch := platforms[start:end]

		var wg sync.WaitGroup
		for _, p := range batch {
			wg.Add(1)
			go func(platformName string) {
				defer wg.Done()

				o.broadcast(notify.EventSyncStarted, platformName, "running", runID)
				result := o.detectWithRetry(ctx, runID, platformName)
				o.broadcast(notify.EventSyncCompleted, platformName, statusWord(result.Success), runID)

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}(p)
		}
		wg.Wait()
	}

	report := o.aggregate(runID, startedAt, results)

	run.Status = model.RunStatus(report.Status)
	run.Succeeded, run.Failed, run.Events = tally(results)
	finished := report.FinishedAt
	run.FinishedAt = &finished
	if err := o.events.UpdateRun(ctx, run); err != nil {
		log.Printf("[Orchestrator] 更新运行记录失败: %v", err)
	}

	o.broadcast(notify.EventSyncAllCompleted, "", report.Status, runID)
	log.Printf("[Orchestrator] 运行 %s 结束: %s", runID, report.Status)

	return report, nil
}

// detectWithRetry 单平台检测 + 重试边界
// 传输错误最多 3 次尝试（退避 1s/2s）；其他错误第一次就终止
func (o *Orchestrator) detectWithRetry(ctx context.Context, runID, platformName string) dto.PlatformResult {
	result := dto.PlatformResult{Platform: platformName}

	var lastErr error
	for attempt := 1; attempt <= maxDetectAttempts; attempt++ {
		result.Attempts = attempt

		events, err := o.poller.Detect(ctx, runID, platformName)
		if err == nil {
			result.Success = true
			result.EventCount = len(events)
			return result
		}
		lastErr = err

		if !platform.IsRetryable(err) {
			log.Printf("[Orchestrator] 平台 %s 非传输错误，不重试: %v", platformName, err)
			break
		}
		if attempt == maxDetectAttempts {
			break
		}

		backoff := o.backoffBase << (attempt - 1) // 1s, 2s
		log.Printf("[Orchestrator] 平台 %s 第 %d 次尝试失败，%v 后重试: %v",
			platformName, attempt, backoff, err)

		select {
		case <-ctx.Done():
			result.Message = ctx.Err().Error()
			return result
		case <-time.After(backoff):
		}
	}

	result.Success = false
	if lastErr != nil {
		result.Message = lastErr.Error()
	}
	return result
}

// aggregate 汇总为 success / partial_success / error
func (o *Orchestrator) aggregate(runID string, startedAt time.Time, results []dto.PlatformResult) *dto.SyncReport {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	status := string(model.RunStatusSuccess)
	switch {
	case succeeded == 0:
		status = string(model.RunStatusError)
	case succeeded < len(results):
		status = string(model.RunStatusPartial)
	}

	return &dto.SyncReport{
		SyncRunID:  runID,
		Status:     status,
		Results:    results,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
}

// broadcast fire-and-forget 广播，不等待也不关心结果
func (o *Orchestrator) broadcast(t notify.EventType, platformName, status, runID string) {
	if o.notifier == nil {
		return
	}
	n := notify.Notification{
		Type:      t,
		Platform:  platformName,
		Status:    status,
		SyncRunID: runID,
		Timestamp: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.notifier.Notify(ctx, n)
	}()
}

// ==================== 工具函数 ====================

func clampConcurrency(n int) int {
	if n < minConcurrency || n > maxConcurrency {
		log.Printf("[Orchestrator] 非法并发参数 %d，回退默认值 %d", n, defaultConcurrency)
		return defaultConcurrency
	}
	return n
}

func statusWord(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func tally(results []dto.PlatformResult) (succeeded, failed, events int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
		events += r.EventCount
	}
	return
}
