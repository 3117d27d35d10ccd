package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/user/mediarec/internal/config"
	"github.com/user/mediarec/internal/model"
)

const (
	testDim     = 32
	testTimeout = 5 * time.Second
	testTTL     = time.Hour
)

func testConfig() *config.Config {
	return &config.Config{
		TopK:                10,
		SimilarityThreshold: 0.5,
		EmbeddingCacheSize:  100,
		QueryCacheSize:      100,
		QueryCacheTTL:       testTTL,
		ProbeCount:          10,
		ListCount:           4,
		EmbeddingDim:        testDim,
		ANNEnabled:          true,
	}
}

// tokenProvider 确定性的测试嵌入：每个新词分配一个独立维度做词袋计数，
// 词重叠度越高余弦相似度越高，排序完全可预测
type tokenProvider struct {
	mu    sync.Mutex
	axes  map[string]int
	calls int
	fail  bool
}

func (p *tokenProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.fail {
		return nil, errors.New("provider down")
	}
	if p.axes == nil {
		p.axes = make(map[string]int)
	}

	vec := make([]float32, testDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,:")
		if tok == "" {
			continue
		}
		axis, ok := p.axes[tok]
		if !ok {
			axis = len(p.axes) % testDim
			p.axes[tok] = axis
		}
		vec[axis]++
	}
	return vec, nil
}

func (p *tokenProvider) Dimensions() int { return testDim }

func (p *tokenProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeInteractionRepo 内存版交互日志仓库
type fakeInteractionRepo struct {
	mu         sync.Mutex
	rows       []*model.UserInteraction
	failAppend bool
	failList   bool
}

func (r *fakeInteractionRepo) Append(it *model.UserInteraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend {
		return errors.New("db down")
	}
	r.rows = append(r.rows, it)
	return nil
}

func (r *fakeInteractionRepo) ListByUser(userID string, limit int) ([]*model.UserInteraction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList {
		return nil, errors.New("db down")
	}
	var out []*model.UserInteraction
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].UserID == userID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

func (r *fakeInteractionRepo) CountByUser(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

// fakePrefRepo 内存版偏好权重仓库，语义与数据库实现一致
type fakePrefRepo struct {
	mu   sync.Mutex
	rows map[string]float64 // "user|type|value" → weight
}

func newFakePrefRepo() *fakePrefRepo {
	return &fakePrefRepo{rows: make(map[string]float64)}
}

func (r *fakePrefRepo) ApplyDelta(userID, prefType, prefValue string, delta float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "|" + prefType + "|" + prefValue
	cur, ok := r.rows[key]
	if !ok {
		cur = 0.1
	}
	next := cur + delta
	if next < 0.1 {
		next = 0.1
	}
	r.rows[key] = next
	return next, nil
}

func (r *fakePrefRepo) ListAll() ([]*model.PreferenceWeight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PreferenceWeight
	for key, w := range r.rows {
		parts := strings.SplitN(key, "|", 3)
		out = append(out, &model.PreferenceWeight{
			UserID:          parts[0],
			PreferenceType:  parts[1],
			PreferenceValue: parts[2],
			Weight:          w,
		})
	}
	return out, nil
}

// fakeMediaRepo 内存版媒体快照仓库
type fakeMediaRepo struct {
	mu      sync.Mutex
	items   []model.MediaItem
	records []*model.MediaRecord
	failAll bool
}

func (r *fakeMediaRepo) Append(item *model.MediaItem, _ []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *item)
	return nil
}

func (r *fakeMediaRepo) ListAll() ([]*model.MediaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errors.New("db down")
	}
	return r.records, nil
}

// newTestEngine 组装一套使用内存依赖的推荐引擎
func newTestEngine(index VectorIndex) (*RecommendService, *tokenProvider, *fakeInteractionRepo, *fakePrefRepo) {
	provider := &tokenProvider{}
	catalog := NewCatalog()
	embedder := NewEmbeddingService(provider, NewEmbeddingCache(100), testTimeout)
	queryCache := NewQueryCache(100, testTTL)
	search := NewSimilaritySearchEngine(catalog, embedder, index, queryCache)
	interactions := &fakeInteractionRepo{}
	prefRepo := newFakePrefRepo()
	prefs := NewPreferenceStore(interactions, prefRepo, catalog)
	ranker := NewPersonalizationRanker(prefs)
	engine := NewRecommendService(testConfig(), catalog, embedder, index, search, prefs, ranker, &fakeMediaRepo{})
	return engine, provider, interactions, prefRepo
}
