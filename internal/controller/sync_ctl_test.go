package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/notify"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
	"gear_sync_v1_202509/internal/service"
)

// ==================== 测试模型 ====================

// sqlite 没有 text[]，运行记录表的平台列用普通文本列替代

type TestSyncRunCtl struct {
	ID         int64 `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt
	RunID      string
	Status     string
	Platforms  string
	Succeeded  int
	Failed     int
	Events     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (TestSyncRunCtl) TableName() string { return "sync_runs" }

// ==================== 测试装配 ====================

type syncCtlFixture struct {
	router *gin.Engine
}

// setupSyncCtl 只注册传入的平台客户端，模拟配置里关掉其余平台的部署
func setupSyncCtl(t *testing.T, clients ...platform.Client) *syncCtlFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&TestProductCtl{}, &TestPlatformLinkCtl{}, &TestListingDetailCtl{},
		&TestSyncEventCtl{}, &TestSyncRunCtl{}, &TestStatusMappingCtl{},
	); err != nil {
		t.Fatalf("建表失败: %v", err)
	}

	products := repository.NewProductRepository(db)
	links := repository.NewPlatformLinkRepository(db)
	events := repository.NewSyncEventRepository(db)
	statusRepo := repository.NewStatusMappingRepository(db)

	ctx := context.Background()
	if err := statusRepo.Upsert(ctx, service.DefaultStatusMappings()); err != nil {
		t.Fatalf("预置状态映射失败: %v", err)
	}
	mapper, err := service.NewStatusMapper(ctx, statusRepo)
	if err != nil {
		t.Fatalf("初始化状态映射失败: %v", err)
	}

	registry := platform.NewRegistry(clients...)
	poller := service.NewPollerService(links, events, registry)
	orchestrator := service.NewOrchestrator(poller, events, notify.NewLogNotifier())
	reconciler := service.NewReconciler(db, events, links, products, mapper)

	ctl := NewSyncController(orchestrator, reconciler, events)

	r := gin.New()
	api := r.Group("/api/sync")
	{
		api.POST("/all", ctl.SyncAll)
		api.POST("/:platform", ctl.SyncPlatform)
	}
	return &syncCtlFixture{router: r}
}

func (f *syncCtlFixture) post(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, nil)
	f.router.ServeHTTP(w, req)
	return w
}

// ==================== 全量同步缺省平台集 ====================

// 缺省全量同步只覆盖注册表里的平台
// 没注册客户端的平台不能出现在结果里，更不能被记成失败
func TestSyncAll_DefaultsToRegisteredPlatforms(t *testing.T) {
	f := setupSyncCtl(t, &stubClient{name: model.PlatformReverb})

	w := f.post("/api/sync/all")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	data := body["data"].(map[string]interface{})
	sync := data["sync"].(map[string]interface{})

	results := sync["results"].([]interface{})
	assert.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, model.PlatformReverb, first["platform"])
	assert.Equal(t, true, first["success"])
}

func TestSyncAll_ExplicitPlatformsStillHonored(t *testing.T) {
	f := setupSyncCtl(t, &stubClient{name: model.PlatformReverb})

	// 显式点名未注册平台时照常执行并如实报失败
	w := f.post("/api/sync/all?platforms=" + model.PlatformEbay)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "失败")
}
