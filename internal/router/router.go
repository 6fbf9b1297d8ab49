package router

import (
	"github.com/gin-gonic/gin"

	"gear_sync_v1_202509/internal/controller"
	"gear_sync_v1_202509/internal/middleware"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	syncCtl *controller.SyncController,
	productCtl *controller.ProductController) {

	api := r.Group("/api")
	{
		// sync 跨平台同步
		sync := api.Group("/sync")
		{
			// POST /api/sync/all?max_concurrent=&platforms=
			sync.POST("/all",
				middleware.SyncRateLimit(middleware.SyncTypeDetect, 0),
				syncCtl.SyncAll)

			// GET /api/sync/runs/:run_id
			sync.GET("/runs/:run_id", syncCtl.GetRun)

			// POST /api/sync/:platform
			sync.POST("/:platform",
				middleware.SyncRateLimit(middleware.SyncTypeDetect, 0),
				syncCtl.SyncPlatform)
		}

		// product 商品与上架生命周期
		products := api.Group("/products")
		{
			products.GET("", productCtl.GetProducts)
			products.GET("/:id", productCtl.GetProduct)

			products.POST("/:id/relist",
				middleware.SyncRateLimit(middleware.SyncTypeRelist, 0),
				productCtl.Relist)

			products.POST("/:id/refresh",
				middleware.SyncRateLimit(middleware.SyncTypeRefresh, 0),
				productCtl.Refresh)

			products.GET("/:id/gallery", productCtl.CheckGallery)
			products.POST("/:id/gallery/fix",
				middleware.SyncRateLimit(middleware.SyncTypeGallery, 0),
				productCtl.FixGallery)
		}
	}
}
