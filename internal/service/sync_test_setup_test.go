package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gear_sync_v1_202509/internal/platform"
)

// ==================== 测试模型 ====================

// sqlite 没有 text[] / jsonb，测试表用普通文本列替代
// 列名与正式模型一致，仓储层可以直接读写

type TestProduct struct {
	ID           int64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt
	SKU          string `gorm:"column:sku"`
	Brand        string
	Model        string
	BasePrice    float64
	CurrencyCode string
	Status       string
	Title        string
	Description  string
}

func (TestProduct) TableName() string { return "products" }

type TestProductImage struct {
	ID        int64 `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
	ProductID int64
	URL       string `gorm:"column:url"`
	LocalPath string
	Rank      int
	Height    int
	Width     int
}

func (TestProductImage) TableName() string { return "product_images" }

type TestPlatformLink struct {
	ID           int64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt
	ProductID    *int64
	PlatformName string
	ExternalID   string
	URL          string `gorm:"column:url"`
	Status       string
	RemoteStatus string
	SyncStatus   string
	LastSync     *time.Time
	PlatformData string
}

func (TestPlatformLink) TableName() string { return "platform_links" }

type TestListingDetail struct {
	ID           int64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt
	PlatformID   *int64
	PlatformName string
	ExternalID   string
	SKU          string `gorm:"column:sku"`
	Title        string
	Description  string
	Price        float64
	CurrencyCode string
	CategoryID   string
	ListingType  string
	Images       string
	Status       string
	Audit        string
}

func (TestListingDetail) TableName() string { return "platform_listing_details" }

type TestSyncRun struct {
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

func (TestSyncRun) TableName() string { return "sync_runs" }

type TestSyncEvent struct {
	ID           int64 `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt
	SyncRunID    string
	PlatformName string
	ProductID    *int64
	ExternalID   string
	ChangeType   string
	ChangeData   string
	Status       string
	DetectedAt   time.Time
	Notes        string
}

func (TestSyncEvent) TableName() string { return "sync_events" }

type TestStatusMapping struct {
	ID            int64 `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt
	PlatformName  string `gorm:"uniqueIndex:idx_platform_raw"`
	RawStatus     string `gorm:"uniqueIndex:idx_platform_raw"`
	CentralStatus string
}

func (TestStatusMapping) TableName() string { return "status_mappings" }

type TestCategoryMapping struct {
	ID             int64 `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt
	SourcePlatform string `gorm:"uniqueIndex:idx_category_triplet"`
	SourceCategory string `gorm:"uniqueIndex:idx_category_triplet"`
	TargetPlatform string `gorm:"uniqueIndex:idx_category_triplet"`
	TargetCategory string
}

func (TestCategoryMapping) TableName() string { return "category_mappings" }

// ==================== 测试辅助 ====================

func setupSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(
		&TestProduct{}, &TestProductImage{},
		&TestPlatformLink{}, &TestListingDetail{},
		&TestSyncRun{}, &TestSyncEvent{},
		&TestStatusMapping{}, &TestCategoryMapping{},
	); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return db
}

// ==================== 假平台客户端 ====================

// fakeClient 可编程的平台客户端
// listings 为 ListListings 的返回；各 err 字段控制失败注入
type fakeClient struct {
	mu sync.Mutex

	name     string
	listings []platform.RemoteListing

	listErr      error
	listErrTimes int // listErr 连续生效的次数；0 表示永远生效
	listCalls    int

	updateErr error
	endErr    error
	createErr error

	relistErr error

	// 调用记录
	updated  map[string][]map[string]interface{}
	ended    []string
	created  []platform.ListingDraft
	relisted []string

	nextID int
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{
		name:    name,
		updated: map[string][]map[string]interface{}{},
		nextID:  1000,
	}
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) GetListing(ctx context.Context, externalID string) (*platform.RemoteListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.listings {
		if f.listings[i].ExternalID == externalID {
			l := f.listings[i]
			return &l, nil
		}
	}
	return nil, &platform.ProtocolError{Platform: f.name, StatusCode: 404, Message: "not found"}
}

func (f *fakeClient) ListListings(ctx context.Context) ([]platform.RemoteListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		if f.listErrTimes == 0 || f.listCalls <= f.listErrTimes {
			return nil, f.listErr
		}
	}
	out := make([]platform.RemoteListing, len(f.listings))
	copy(out, f.listings)
	return out, nil
}

func (f *fakeClient) UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated[externalID] = append(f.updated[externalID], fields)
	return nil
}

func (f *fakeClient) EndListing(ctx context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, externalID)
	return nil
}

func (f *fakeClient) CreateListing(ctx context.Context, draft platform.ListingDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, draft)
	f.nextID++
	return fmt.Sprintf("%s-new-%d", f.name, f.nextID), nil
}

// fakeRelistClient 支持原生 relist 动词
type fakeRelistClient struct {
	*fakeClient
}

func (f *fakeRelistClient) Relist(ctx context.Context, externalID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.relistErr != nil {
		return "", f.relistErr
	}
	f.relisted = append(f.relisted, externalID)
	f.nextID++
	return fmt.Sprintf("%s-relist-%d", f.name, f.nextID), nil
}
