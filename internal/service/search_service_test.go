package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/mediarec/internal/model"
)

// newLoadedSearch 构建已摄入三个条目的检索引擎。
// 词重叠度：m1 与查询 "space adventure" 重叠 2 个词，m2 重叠 1 个，m3 为 0
func newLoadedSearch(t *testing.T) (*SimilaritySearchEngine, *tokenProvider) {
	t.Helper()

	provider := &tokenProvider{}
	embedder := NewEmbeddingService(provider, NewEmbeddingCache(100), testTimeout)
	catalog := NewCatalog()
	index := NewBruteForceIndex(testDim)

	items := []model.MediaItem{
		{ID: "m1", Title: "space adventure saga"},
		{ID: "m2", Title: "space station drama"},
		{ID: "m3", Title: "ocean documentary film"},
	}
	embeddings := make([][]float32, len(items))
	for i := range items {
		vec, err := embedder.Embed(context.Background(), BuildMediaText(&items[i]))
		require.NoError(t, err)
		embeddings[i] = vec
	}
	require.NoError(t, index.Train(embeddings))
	require.NoError(t, catalog.Append(items, embeddings))
	require.NoError(t, index.Add(embeddings))

	return NewSimilaritySearchEngine(catalog, embedder, index, NewQueryCache(100, testTTL)), provider
}

func TestSearchEngine_RankAndConfidence(t *testing.T) {
	search, _ := newLoadedSearch(t)

	results, err := search.Query(context.Background(), "space adventure", 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// m1 两词重叠，cos = 2/√6 ≈ 0.82，过阈值
	assert.Equal(t, "m1", results[0].Item.ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "high", results[0].Confidence)
	assert.InDelta(t, 0.8165, results[0].Similarity, 1e-3)

	// m2 一词重叠，cos ≈ 0.41，没过阈值但补足 k
	assert.Equal(t, "m2", results[1].Item.ID)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, "low", results[1].Confidence)
	assert.Less(t, results[1].Similarity, results[0].Similarity)
}

func TestSearchEngine_ThresholdIsAdvisory(t *testing.T) {
	search, _ := newLoadedSearch(t)

	// 阈值高到没有条目能通过，仍返回 k 条 low confidence 结果
	results, err := search.Query(context.Background(), "space adventure", 3, 0.99)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, "low", res.Confidence)
	}
}

func TestSearchEngine_QueryCacheHit(t *testing.T) {
	search, provider := newLoadedSearch(t)
	ingestCalls := provider.callCount()

	first, err := search.Query(context.Background(), "space adventure", 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ingestCalls+1, provider.callCount())

	second, err := search.Query(context.Background(), "space adventure", 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ingestCalls+1, provider.callCount(), "缓存命中不应重新生成向量")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, search.CacheLen())
}

func TestSearchEngine_CacheKeyIncludesK(t *testing.T) {
	search, _ := newLoadedSearch(t)

	a, err := search.Query(context.Background(), "space adventure", 1, 0.5)
	require.NoError(t, err)
	b, err := search.Query(context.Background(), "space adventure", 2, 0.5)
	require.NoError(t, err)

	assert.Len(t, a, 1)
	assert.Len(t, b, 2)
	assert.Equal(t, 2, search.CacheLen(), "不同 K 是不同的缓存键")
}

func TestSearchEngine_EmptyQueryReturnsEmpty(t *testing.T) {
	search, provider := newLoadedSearch(t)
	before := provider.callCount()

	results, err := search.Query(context.Background(), "   ", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, before, provider.callCount(), "空查询不应触发嵌入")
}

func TestSearchEngine_EmptyCatalogReturnsEmpty(t *testing.T) {
	provider := &tokenProvider{}
	embedder := NewEmbeddingService(provider, NewEmbeddingCache(10), testTimeout)
	search := NewSimilaritySearchEngine(NewCatalog(), embedder, NewBruteForceIndex(testDim), NewQueryCache(10, testTTL))

	results, err := search.Query(context.Background(), "anything", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEngine_ProviderFailureSurfaced(t *testing.T) {
	search, provider := newLoadedSearch(t)
	provider.fail = true

	_, err := search.Query(context.Background(), "brand new query", 2, 0.5)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 0, search.CacheLen(), "失败的查询不应进缓存")
}
