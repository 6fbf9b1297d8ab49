package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 同步限流中间件 ====================

// SyncRateLimit 手动触发限流中间件
// 按平台或商品维度限流；两者都取不到时退化为全局限流
//
// 使用示例:
//
//	router.POST("/api/sync/:platform",
//	    middleware.SyncRateLimit(middleware.SyncTypeDetect, 0),
//	    syncCtl.SyncPlatform,
//	)
func SyncRateLimit(syncType SyncType, interval time.Duration) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(syncType)
	}

	return func(c *gin.Context) {
		var key string

		if platform := c.Param("platform"); platform != "" {
			key = PlatformSyncKey(platform, syncType)
		} else if idStr := c.Param("id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    400,
					"message": "无效的商品 ID",
				})
				c.Abort()
				return
			}
			key = ProductSyncKey(id, syncType)
		} else {
			key = GlobalSyncKey(syncType)
		}

		result := GetLimiter().Check(key, interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
					"sync_type":   syncType,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func formatRetryMessage(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("操作过于频繁，请 %d 秒后重试", secs)
}
