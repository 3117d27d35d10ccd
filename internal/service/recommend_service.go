package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/user/mediarec/internal/config"
	"github.com/user/mediarec/internal/model"
)

// MediaRepo 媒体快照持久化能力
type MediaRepo interface {
	Append(item *model.MediaItem, embedding []float32) error
	ListAll() ([]*model.MediaRecord, error)
}

// RecommendService 推荐引擎门面：摄入、检索、个性化、用户行为统一入口。
// 查询路径对嵌入服务和索引故障做降级（记日志返回空结果），
// 摄入和行为记录路径把错误如实上抛
type RecommendService struct {
	cfg      *config.Config
	catalog  *Catalog
	embedder *EmbeddingService
	index    VectorIndex
	search   *SimilaritySearchEngine
	prefs    *PreferenceStore
	ranker   *PersonalizationRanker
	media    MediaRepo
	ingestMu sync.Mutex // 训练 + 目录追加 + 索引追加必须整体串行
}

// NewRecommendService 组装推荐引擎
func NewRecommendService(
	cfg *config.Config,
	catalog *Catalog,
	embedder *EmbeddingService,
	index VectorIndex,
	search *SimilaritySearchEngine,
	prefs *PreferenceStore,
	ranker *PersonalizationRanker,
	media MediaRepo,
) *RecommendService {
	return &RecommendService{
		cfg:      cfg,
		catalog:  catalog,
		embedder: embedder,
		index:    index,
		search:   search,
		prefs:    prefs,
		ranker:   ranker,
		media:    media,
	}
}

// IngestStats 单次摄入的结果统计
type IngestStats struct {
	Requested    int  `json:"requested"`
	Ingested     int  `json:"ingested"`
	CatalogSize  int  `json:"catalog_size"`
	IndexTrained bool `json:"index_trained"`
}

// IngestCatalog 批量摄入媒体条目。整批原子：先全部生成向量，
// 任何一条失败整批不落目录；首批摄入时顺带训练索引
func (s *RecommendService) IngestCatalog(ctx context.Context, items []model.MediaItem) (*IngestStats, error) {
	if len(items) == 0 {
		return &IngestStats{CatalogSize: s.catalog.Len(), IndexTrained: s.index.Trained()}, nil
	}

	for i := range items {
		if items[i].ID == "" || strings.TrimSpace(items[i].Title) == "" {
			return nil, fmt.Errorf("%w: 第 %d 条缺少 id 或 title", ErrMalformedItem, i)
		}
	}

	embeddings := make([][]float32, len(items))
	for i := range items {
		vec, err := s.embedder.Embed(ctx, BuildMediaText(&items[i]))
		if err != nil {
			return nil, fmt.Errorf("第 %d 条向量生成失败: %w", i, err)
		}
		embeddings[i] = vec
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if !s.index.Trained() {
		if err := s.index.Train(embeddings); err != nil {
			return nil, fmt.Errorf("索引训练失败: %w", err)
		}
		log.Printf("[RecommendService] 索引训练完成 type=%s vectors=%d", s.index.Name(), len(embeddings))
	}

	if err := s.catalog.Append(items, embeddings); err != nil {
		return nil, err
	}
	if err := s.index.Add(embeddings); err != nil {
		return nil, fmt.Errorf("索引写入失败: %w", err)
	}

	// 快照落库尽力而为，失败不影响在线服务
	for i := range items {
		if err := s.media.Append(&items[i], embeddings[i]); err != nil {
			log.Printf("[RecommendService] 媒体快照落库失败 id=%s: %v", items[i].ID, err)
		}
	}

	log.Printf("[RecommendService] 摄入完成 count=%d catalog=%d", len(items), s.catalog.Len())
	return &IngestStats{
		Requested:    len(items),
		Ingested:     len(items),
		CatalogSize:  s.catalog.Len(),
		IndexTrained: s.index.Trained(),
	}, nil
}

// RestoreFromSnapshot 启动时从数据库快照重建目录和索引
func (s *RecommendService) RestoreFromSnapshot() error {
	records, err := s.media.ListAll()
	if err != nil {
		return fmt.Errorf("读取媒体快照失败: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	var items []model.MediaItem
	var embeddings [][]float32
	for _, rec := range records {
		if rec.Embedding == nil {
			log.Printf("[RecommendService] 快照缺少向量，跳过 media=%s", rec.MediaID)
			continue
		}
		items = append(items, rec.ToItem())
		embeddings = append(embeddings, rec.Embedding.Slice())
	}
	if len(items) == 0 {
		return nil
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if err := s.index.Train(embeddings); err != nil {
		return fmt.Errorf("索引训练失败: %w", err)
	}
	if err := s.catalog.Append(items, embeddings); err != nil {
		return err
	}
	if err := s.index.Add(embeddings); err != nil {
		return fmt.Errorf("索引写入失败: %w", err)
	}

	log.Printf("[RecommendService] 快照恢复完成 catalog=%d", s.catalog.Len())
	return nil
}

// QueryByText 文本相似检索。嵌入服务或索引故障时降级为空结果
func (s *RecommendService) QueryByText(ctx context.Context, text string, k int, threshold float64) []model.ScoredItem {
	k = s.clampK(k)
	threshold = s.clampThreshold(threshold)

	results, err := s.search.Query(ctx, text, k, threshold)
	if err != nil {
		log.Printf("[RecommendService] 检索降级为空结果: %v", err)
		return []model.ScoredItem{}
	}
	return results
}

// QueryByItem 以此搜彼：用已有条目构建查询文本，结果中剔除条目自身
func (s *RecommendService) QueryByItem(ctx context.Context, mediaID string, k int, threshold float64) ([]model.ScoredItem, error) {
	item, ok := s.catalog.ItemByID(mediaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, mediaID)
	}

	k = s.clampK(k)
	threshold = s.clampThreshold(threshold)

	// 多取一个，给剔除自身留余量
	results, err := s.search.Query(ctx, BuildItemQueryText(&item), k+1, threshold)
	if err != nil {
		log.Printf("[RecommendService] 以此搜彼降级为空结果 media=%s: %v", mediaID, err)
		return []model.ScoredItem{}, nil
	}

	filtered := make([]model.ScoredItem, 0, k)
	for _, res := range results {
		if res.Item.ID == mediaID {
			continue
		}
		res.Rank = len(filtered) + 1
		filtered = append(filtered, res)
		if len(filtered) >= k {
			break
		}
	}
	return filtered, nil
}

// BatchQueryByItems 批量以此搜彼，目录中不存在的 id 对应空结果
func (s *RecommendService) BatchQueryByItems(ctx context.Context, mediaIDs []string, k int, threshold float64) map[string][]model.ScoredItem {
	out := make(map[string][]model.ScoredItem, len(mediaIDs))
	for _, id := range mediaIDs {
		results, err := s.QueryByItem(ctx, id, k, threshold)
		if err != nil {
			log.Printf("[RecommendService] 批量检索跳过 media=%s: %v", id, err)
			out[id] = []model.ScoredItem{}
			continue
		}
		out[id] = results
	}
	return out
}

// QueryPersonalized 个性化推荐：相似检索取 2k 候选，
// 按用户偏好重排后截断回 k 并重新编号
func (s *RecommendService) QueryPersonalized(ctx context.Context, userID, text string, k int, threshold float64) []model.ScoredItem {
	if strings.TrimSpace(text) == "" {
		return []model.ScoredItem{}
	}

	k = s.clampK(k)
	threshold = s.clampThreshold(threshold)

	base, err := s.search.Query(ctx, text, k*2, threshold)
	if err != nil {
		log.Printf("[RecommendService] 个性化检索降级为空结果 user=%s: %v", userID, err)
		return []model.ScoredItem{}
	}

	ranked := s.ranker.Personalize(userID, base)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RecordUserAction 记录用户行为并更新偏好，value 是带符号的交互强度
func (s *RecommendService) RecordUserAction(userID, mediaID, action string, value float64, metadata map[string]interface{}) error {
	return s.prefs.RecordInteraction(userID, mediaID, action, value, metadata)
}

// GetUserPreferenceSummary 用户偏好概览，每个维度最多 5 个取值
func (s *RecommendService) GetUserPreferenceSummary(userID string) *PreferenceSummary {
	return s.prefs.Summary(userID, 5)
}

// EngineStats 引擎运行状态
type EngineStats struct {
	CatalogSize          int    `json:"catalog_size"`
	IndexedVectors       int    `json:"indexed_vectors"`
	IndexType            string `json:"index_type"`
	IndexTrained         bool   `json:"index_trained"`
	EmbeddingCacheSize   int    `json:"embedding_cache_size"`
	EmbeddingCacheHits   int64  `json:"embedding_cache_hits"`
	EmbeddingCacheMisses int64  `json:"embedding_cache_misses"`
	QueryCacheSize       int    `json:"query_cache_size"`
	QueryCacheHits       int64  `json:"query_cache_hits"`
	QueryCacheMisses     int64  `json:"query_cache_misses"`
}

// GetStats 返回引擎运行状态
func (s *RecommendService) GetStats() *EngineStats {
	embedHits, embedMisses := s.embedder.CacheStats()
	queryHits, queryMisses := s.search.CacheStats()
	return &EngineStats{
		CatalogSize:          s.catalog.Len(),
		IndexedVectors:       s.index.Count(),
		IndexType:            s.index.Name(),
		IndexTrained:         s.index.Trained(),
		EmbeddingCacheSize:   s.embedder.CacheLen(),
		EmbeddingCacheHits:   embedHits,
		EmbeddingCacheMisses: embedMisses,
		QueryCacheSize:       s.search.CacheLen(),
		QueryCacheHits:       queryHits,
		QueryCacheMisses:     queryMisses,
	}
}

// LoadPreferences 启动时恢复偏好权重镜像
func (s *RecommendService) LoadPreferences() error {
	return s.prefs.LoadWeights()
}

// clampK 非正的 k 回落到配置默认值
func (s *RecommendService) clampK(k int) int {
	if k <= 0 {
		return s.cfg.TopK
	}
	return k
}

// clampThreshold 非法阈值（NaN 或出界）回落到配置默认值
func (s *RecommendService) clampThreshold(threshold float64) float64 {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return s.cfg.SimilarityThreshold
	}
	return threshold
}
