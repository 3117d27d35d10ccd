package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/mediarec/internal/handler"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// 目录摄入
		api.POST("/catalog/ingest", h.IngestCatalog)

		// 相似检索
		api.POST("/search", h.Search)
		api.GET("/media/:id/similar", h.SimilarByItem)
		api.POST("/media/batch_similar", h.BatchSimilar)

		// 个性化推荐
		api.POST("/recommend", h.Recommend)

		// 用户行为与偏好
		api.POST("/interactions", h.RecordInteraction)
		api.GET("/users/:id/preferences", h.UserPreferences)

		// 运行状态
		api.GET("/stats", h.Stats)
	}
}
