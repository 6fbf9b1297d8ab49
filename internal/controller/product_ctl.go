package controller

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gear_sync_v1_202509/internal/model"
	"gear_sync_v1_202509/internal/repository"
	"gear_sync_v1_202509/internal/service"
)

// 私下成交推断窗口
const privateSaleWindow = 7 * 24 * time.Hour

// ProductController 商品控制器
type ProductController struct {
	products   repository.ProductRepository
	links      repository.PlatformLinkRepository
	lifecycle  *service.LifecycleService
	gallery    *service.GalleryService
	reconciler *service.Reconciler
}

// NewProductController 创建商品控制器
func NewProductController(
	products repository.ProductRepository,
	links repository.PlatformLinkRepository,
	lifecycle *service.LifecycleService,
	gallery *service.GalleryService,
	reconciler *service.Reconciler,
) *ProductController {
	return &ProductController{
		products:   products,
		links:      links,
		lifecycle:  lifecycle,
		gallery:    gallery,
		reconciler: reconciler,
	}
}

// ==================== Handler 实现 ====================

// GetProducts 商品列表
// @Summary 分页查询商品
// @Tags Product
// @Param status query string false "中央状态"
// @Param brand query string false "品牌"
// @Param keyword query string false "关键词 (SKU / 标题)"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} map[string]interface{}
// @Router /api/products [get]
func (c *ProductController) GetProducts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	filter := repository.ProductFilter{
		Status:   model.CentralStatus(ctx.Query("status")),
		Brand:    ctx.Query("brand"),
		Keyword:  ctx.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	}

	products, total, err := c.products.List(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"items":     products,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		},
	})
}

// GetProduct 商品详情
// @Summary 查询商品详情（含平台挂接与私下成交提示）
// @Tags Product
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/products/{id} [get]
func (c *ProductController) GetProduct(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	product, err := c.products.GetByID(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(404, gin.H{"code": 404, "message": "商品不存在"})
		return
	}

	// 仅提示，不改任何状态；最终裁定权在运营手里
	suspected, err := c.reconciler.InferPrivateSale(ctx.Request.Context(), id, privateSaleWindow)
	if err != nil {
		suspected = false
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"product":                product,
			"suspected_private_sale": suspected,
		},
	})
}

// Relist 重新上架
// @Summary 撤销交易后把商品重新推回各平台
// @Tags Product
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/products/{id}/relist [post]
func (c *ProductController) Relist(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	report, err := c.lifecycle.Relist(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": report.Message, "data": report})
}

// Refresh 刷新上架
// @Summary 结束陈旧上架并以新 ID 重建
// @Tags Product
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/products/{id}/refresh [post]
func (c *ProductController) Refresh(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	report, err := c.lifecycle.RefreshProduct(ctx.Request.Context(), id, "manual refresh")
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": report.Message, "data": report})
}

// CheckGallery 图库漂移检测
// @Summary 比对各平台图库三方计数（只读）
// @Tags Product
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/products/{id}/gallery [get]
func (c *ProductController) CheckGallery(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	drifts, err := c.gallery.Detect(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "message": "success", "data": drifts})
}

// FixGallery 图库修复
// @Summary 把中央图库重推到所有漂移平台
// @Tags Product
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/products/{id}/gallery/fix [post]
func (c *ProductController) FixGallery(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	results, err := c.gallery.ApplyFix(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	message := "图库已重推"
	if len(results) == 0 {
		message = "各平台图库均已对齐，无需修复"
	}
	ctx.JSON(200, gin.H{
		"code":    200,
		"message": message,
		"data":    gin.H{"product_id": id, "results": results},
	})
}
