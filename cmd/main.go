package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gear_sync_v1_202509/internal/config"
	"gear_sync_v1_202509/internal/controller"
	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/notify"
	"gear_sync_v1_202509/internal/platform"
	"gear_sync_v1_202509/internal/repository"
	"gear_sync_v1_202509/internal/router"
	"gear_sync_v1_202509/internal/service"
	"gear_sync_v1_202509/internal/task"
	"gear_sync_v1_202509/pkg/database"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("GEARSYNC_CONFIG"))
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(db, cfg)
	defer deps.Notifier.Close()

	// 4. 启动定时任务
	tm := initTasks(deps, cfg)
	defer tm.Stop()

	// 5. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Sync, deps.Controllers.Product)

	// 6. 启动服务
	startServer(r, cfg.Server.Port)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Registry    *platform.Registry
	Notifier    notify.Notifier
	Services    *Services
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Product         repository.ProductRepository
	Link            repository.PlatformLinkRepository
	SyncEvent       repository.SyncEventRepository
	StatusMapping   repository.StatusMappingRepository
	CategoryMapping repository.CategoryMappingRepository
}

// Services 服务集合
type Services struct {
	StatusMapper *service.StatusMapper
	Poller       *service.PollerService
	Orchestrator *service.Orchestrator
	Reconciler   *service.Reconciler
	Lifecycle    *service.LifecycleService
	Gallery      *service.GalleryService
	Pricing      service.PricingService
}

// Controllers 控制器集合
type Controllers struct {
	Sync    *controller.SyncController
	Product *controller.ProductController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config) *gorm.DB {
	return database.InitDB(cfg.Database.DSN,
		// Product
		&model.Product{}, &model.ProductImage{},
		// Platform
		&model.PlatformLink{}, &model.PlatformListingDetail{},
		// Sync
		&model.SyncRun{}, &model.SyncEvent{},
		// Mapping
		&model.StatusMapping{}, &model.CategoryMapping{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB, cfg *config.Config) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Product:         repository.NewProductRepository(db),
		Link:            repository.NewPlatformLinkRepository(db),
		SyncEvent:       repository.NewSyncEventRepository(db),
		StatusMapping:   repository.NewStatusMappingRepository(db),
		CategoryMapping: repository.NewCategoryMappingRepository(db),
	}

	// -------- 状态映射表（首次启动播种内置词表） --------
	seedStatusMappings(repos.StatusMapping)

	mapper, err := service.NewStatusMapper(context.Background(), repos.StatusMapping)
	if err != nil {
		log.Fatalf("状态映射表加载失败: %v", err)
	}

	// -------- 平台客户端 --------
	registry := initRegistry(cfg)

	// -------- 通知 --------
	notifier := initNotifier(cfg)

	// -------- 业务服务 --------
	services := &Services{
		StatusMapper: mapper,
		Pricing:      service.NewMarkupPricing(nil),
	}
	services.Poller = service.NewPollerService(repos.Link, repos.SyncEvent, registry)
	services.Orchestrator = service.NewOrchestrator(services.Poller, repos.SyncEvent, notifier)
	services.Reconciler = service.NewReconciler(db, repos.SyncEvent, repos.Link, repos.Product, mapper)
	services.Lifecycle = service.NewLifecycleService(db, repos.Product, repos.Link, registry, services.Pricing, repos.CategoryMapping)
	services.Gallery = service.NewGalleryService(repos.Product, repos.Link, registry)

	// -------- Controller 层 --------
	controllers := &Controllers{
		Sync:    controller.NewSyncController(services.Orchestrator, services.Reconciler, repos.SyncEvent),
		Product: controller.NewProductController(repos.Product, repos.Link, services.Lifecycle, services.Gallery, services.Reconciler),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Registry:    registry,
		Notifier:    notifier,
		Services:    services,
		Controllers: controllers,
	}
}

// initRegistry 按配置装配平台客户端
func initRegistry(cfg *config.Config) *platform.Registry {
	var clients []platform.Client

	build := func(name string, ctor func(platform.Config) platform.Client) {
		pc, ok := cfg.Platforms[name]
		if !ok || !pc.Enabled {
			log.Printf("[Main] 平台 %s 未启用，跳过", name)
			return
		}
		clients = append(clients, ctor(platform.Config{
			BaseURL: pc.BaseURL,
			Token:   pc.Token,
			Timeout: pc.Timeout(),
		}))
	}

	build(model.PlatformEbay, platform.NewEbayClient)
	build(model.PlatformReverb, platform.NewReverbClient)
	build(model.PlatformShopify, platform.NewShopifyClient)
	build(model.PlatformVR, platform.NewVRClient)

	return platform.NewRegistry(clients...)
}

// initNotifier 广播通道；AMQP 未配置时退化为日志
func initNotifier(cfg *config.Config) notify.Notifier {
	if cfg.AMQP.URL == "" {
		return notify.NewLogNotifier()
	}

	n, err := notify.NewAMQPNotifier(notify.AMQPConfig{
		URL:        cfg.AMQP.URL,
		Exchange:   cfg.AMQP.Exchange,
		Queue:      cfg.AMQP.Queue,
		RoutingKey: cfg.AMQP.RoutingKey,
	})
	if err != nil {
		log.Printf("警告: AMQP 初始化失败，退化为日志通知: %v", err)
		return notify.NewLogNotifier()
	}
	return n
}

// seedStatusMappings 把内置平台状态词表写入映射表（幂等 upsert）
func seedStatusMappings(repo repository.StatusMappingRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repo.Upsert(ctx, service.DefaultStatusMappings()); err != nil {
		log.Printf("警告: 状态映射播种失败: %v", err)
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies, cfg *config.Config) *task.TaskManager {
	tm := task.NewTaskManager(
		&task.TaskManagerDeps{
			Orchestrator: deps.Services.Orchestrator,
			Reconciler:   deps.Services.Reconciler,
			Lifecycle:    deps.Services.Lifecycle,
		},
		&task.TaskManagerConfig{
			SyncEnabled:       cfg.Sync.Enabled,
			SyncInterval:      time.Duration(cfg.Sync.IntervalMinutes) * time.Minute,
			SyncMaxConcurrent: cfg.Sync.MaxConcurrent,
			RefreshEnabled:    cfg.Refresh.Enabled,
			RefreshStaleDays:  cfg.Refresh.StaleDays,
		},
	)
	tm.Start()
	return tm
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}
