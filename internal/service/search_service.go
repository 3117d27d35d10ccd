package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/mediarec/internal/model"
	"github.com/user/mediarec/internal/utils"
	"golang.org/x/sync/singleflight"
)

// SimilaritySearchEngine 相似度检索：查询缓存 → 嵌入 → 索引检索 → 阈值过滤。
// 索引实现（IVF 或全量扫描）在引擎构造时确定，检索路径不做按调用的异常兜底
type SimilaritySearchEngine struct {
	catalog  *Catalog
	embedder *EmbeddingService
	index    VectorIndex
	cache    *QueryCache
	sf       singleflight.Group // 并发相同查询只算一次
}

// NewSimilaritySearchEngine 创建检索引擎
func NewSimilaritySearchEngine(catalog *Catalog, embedder *EmbeddingService, index VectorIndex, cache *QueryCache) *SimilaritySearchEngine {
	return &SimilaritySearchEngine{
		catalog:  catalog,
		embedder: embedder,
		index:    index,
		cache:    cache,
	}
}

// Query 按文本检索最多 k 个相似条目。
// 阈值是建议性的：结果按相似度降序逐个接纳，满足阈值或数量尚不足 k 都会入选，
// 所以只要目录够大就一定返回 k 条；confidence 标记该条是否真正过了阈值。
// 空查询或空目录返回空结果，不报错
func (s *SimilaritySearchEngine) Query(ctx context.Context, text string, k int, threshold float64) ([]model.ScoredItem, error) {
	if strings.TrimSpace(text) == "" || s.catalog.Len() == 0 {
		return []model.ScoredItem{}, nil
	}

	// 缓存键 = (查询文本, K)；命中时原样返回之前算好的 rank 和 confidence
	cacheKey := fmt.Sprintf("%s:%d", utils.HashText(text), k)

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		if cached, ok := s.cache.Get(cacheKey); ok {
			return cached, nil
		}

		results, err := s.search(ctx, text, k, threshold)
		if err != nil {
			return nil, err
		}

		s.cache.Set(cacheKey, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.ScoredItem), nil
}

// search 缓存未命中时的完整检索路径
func (s *SimilaritySearchEngine) search(ctx context.Context, text string, k int, threshold float64) ([]model.ScoredItem, error) {
	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// 超额取 2k 个候选，留出阈值过滤的余量
	hits, err := s.index.Search(queryVec, k*2)
	if err != nil {
		return nil, fmt.Errorf("索引检索失败: %w", err)
	}

	results := make([]model.ScoredItem, 0, k)
	for _, hit := range hits {
		item, ok := s.catalog.ItemAt(hit.Index)
		if !ok {
			continue
		}

		if hit.Similarity >= threshold || len(results) < k {
			confidence := "low"
			if hit.Similarity >= threshold {
				confidence = "high"
			}
			results = append(results, model.ScoredItem{
				Item:       item,
				Similarity: hit.Similarity,
				Rank:       len(results) + 1,
				Confidence: confidence,
			})
		}

		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// IndexName 当前检索路径（ivf / bruteforce）
func (s *SimilaritySearchEngine) IndexName() string {
	return s.index.Name()
}

// CacheLen 查询缓存条目数
func (s *SimilaritySearchEngine) CacheLen() int {
	return s.cache.Len()
}

// CacheStats 查询缓存命中/未命中计数
func (s *SimilaritySearchEngine) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}
