package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/mediarec/internal/model"
	"github.com/user/mediarec/internal/service"
	"github.com/user/mediarec/internal/utils"
)

// 阈值缺省哨兵值，落在 [0,1] 之外即回落配置默认值
const thresholdUnset = -1.0

// IngestRequest 批量摄入请求
type IngestRequest struct {
	Items []model.MediaItem `json:"items" binding:"required,min=1,dive"`
}

// IngestCatalog POST /api/catalog/ingest 批量摄入媒体条目
func (h *Handler) IngestCatalog(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求不合法: "+err.Error())
		return
	}

	stats, err := h.Engine.IngestCatalog(c.Request.Context(), req.Items)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedItem):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrProviderUnavailable):
			utils.Error(c, 503, err.Error())
		default:
			utils.InternalServerError(c, err.Error())
		}
		return
	}
	utils.Success(c, stats)
}

// SearchRequest 文本检索请求，top_k 与 threshold 缺省时用配置默认值
type SearchRequest struct {
	Query     string   `json:"query" binding:"required,notblank"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

// Search POST /api/search 文本相似检索
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求不合法: "+err.Error())
		return
	}

	threshold := thresholdUnset
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results := h.Engine.QueryByText(c.Request.Context(), req.Query, req.TopK, threshold)
	utils.Success(c, gin.H{
		"query":   req.Query,
		"count":   len(results),
		"results": results,
	})
}

// SimilarByItem GET /api/media/:id/similar 以此搜彼
func (h *Handler) SimilarByItem(c *gin.Context) {
	mediaID := c.Param("id")
	topK := queryInt(c, "top_k", 0)
	threshold := queryFloat(c, "threshold", thresholdUnset)

	results, err := h.Engine.QueryByItem(c.Request.Context(), mediaID, topK, threshold)
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			utils.NotFound(c, err.Error())
			return
		}
		utils.InternalServerError(c, err.Error())
		return
	}
	utils.Success(c, gin.H{
		"media_id": mediaID,
		"count":    len(results),
		"results":  results,
	})
}

// BatchSimilarRequest 批量以此搜彼请求
type BatchSimilarRequest struct {
	MediaIDs  []string `json:"media_ids" binding:"required,min=1"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

// 批量检索每个 id 的默认返回条数，小于单条检索的默认值
const batchDefaultTopK = 5

// BatchSimilar POST /api/media/batch_similar 批量以此搜彼
func (h *Handler) BatchSimilar(c *gin.Context) {
	var req BatchSimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求不合法: "+err.Error())
		return
	}
	if req.TopK <= 0 {
		req.TopK = batchDefaultTopK
	}

	threshold := thresholdUnset
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results := h.Engine.BatchQueryByItems(c.Request.Context(), req.MediaIDs, req.TopK, threshold)
	utils.Success(c, results)
}

// RecommendRequest 个性化推荐请求
type RecommendRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	Query     string   `json:"query" binding:"required,notblank"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

// Recommend POST /api/recommend 个性化推荐
func (h *Handler) Recommend(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求不合法: "+err.Error())
		return
	}

	threshold := thresholdUnset
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results := h.Engine.QueryPersonalized(c.Request.Context(), req.UserID, req.Query, req.TopK, threshold)
	utils.Success(c, gin.H{
		"user_id": req.UserID,
		"count":   len(results),
		"results": results,
	})
}

// InteractionRequest 用户行为上报请求。
// action 是开放集合，未知动作按默认系数处理；
// value 缺省为 1.0，显式传入的带符号值原样透传
type InteractionRequest struct {
	UserID   string                 `json:"user_id" binding:"required"`
	MediaID  string                 `json:"media_id" binding:"required"`
	Action   string                 `json:"action" binding:"required"`
	Value    *float64               `json:"value"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RecordInteraction POST /api/interactions 记录用户行为
func (h *Handler) RecordInteraction(c *gin.Context) {
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求不合法: "+err.Error())
		return
	}

	value := 1.0
	if req.Value != nil {
		value = *req.Value
	}

	if err := h.Engine.RecordUserAction(req.UserID, req.MediaID, req.Action, value, req.Metadata); err != nil {
		utils.InternalServerError(c, err.Error())
		return
	}
	utils.SuccessWithMessage(c, "已记录", nil)
}

// UserPreferences GET /api/users/:id/preferences 用户偏好概览
func (h *Handler) UserPreferences(c *gin.Context) {
	utils.Success(c, h.Engine.GetUserPreferenceSummary(c.Param("id")))
}

// Stats GET /api/stats 引擎运行状态
func (h *Handler) Stats(c *gin.Context) {
	utils.Success(c, h.Engine.GetStats())
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func queryFloat(c *gin.Context, key string, defaultValue float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return f
}
