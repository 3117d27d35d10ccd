package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/mediarec/internal/model"
)

// newTestRanker 固定"当前年份"为 2026，避免跨年后断言漂移
func newTestRanker(prefs *PreferenceStore) *PersonalizationRanker {
	r := NewPersonalizationRanker(prefs)
	r.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func emptyPrefs() *PreferenceStore {
	return NewPreferenceStore(&fakeInteractionRepo{}, newFakePrefRepo(), NewCatalog())
}

func TestRanker_RatingBonus(t *testing.T) {
	assert.InDelta(t, 0.3, ratingBonus(9.4), 1e-9)
	assert.InDelta(t, 0.3, ratingBonus(9.0), 1e-9)
	assert.InDelta(t, 0.2, ratingBonus(8.5), 1e-9)
	assert.InDelta(t, 0.1, ratingBonus(7.0), 1e-9)
	assert.InDelta(t, 0.0, ratingBonus(6.9), 1e-9)
	assert.InDelta(t, 0.0, ratingBonus(0), 1e-9)
}

func TestRanker_RecencyBonus(t *testing.T) {
	assert.InDelta(t, 0.2, recencyBonus(2026, 2026), 1e-9)
	assert.InDelta(t, 0.2, recencyBonus(2024, 2026), 1e-9)
	assert.InDelta(t, 0.1, recencyBonus(2021, 2026), 1e-9)
	assert.InDelta(t, 0.0, recencyBonus(2019, 2026), 1e-9)
	assert.InDelta(t, 0.0, recencyBonus(0, 2026), 1e-9, "未知年份不加成")
}

func TestRanker_DiversityBonusFirstOccurrence(t *testing.T) {
	ranker := newTestRanker(emptyPrefs())

	base := []model.ScoredItem{
		{Item: model.MediaItem{ID: "a", Type: "movie", Directors: []string{"Nolan"}}, Similarity: 0.9},
		{Item: model.MediaItem{ID: "b", Type: "movie", Directors: []string{"Nolan"}}, Similarity: 0.9},
		{Item: model.MediaItem{ID: "c", Type: "music", Directors: []string{"Tarantino"}}, Similarity: 0.9},
	}
	ranked := ranker.Personalize("u1", base)

	byID := make(map[string]model.ScoredItem)
	for _, r := range ranked {
		byID[r.Item.ID] = r
	}

	// 首个条目类型和导演都是首次出现：0.2 + 0.1
	assert.InDelta(t, 0.3, byID["a"].DiversityBonus, 1e-9)
	// 第二个条目类型和导演都见过了
	assert.InDelta(t, 0.0, byID["b"].DiversityBonus, 1e-9)
	// 第三个条目类型和导演都是新的
	assert.InDelta(t, 0.3, byID["c"].DiversityBonus, 1e-9)
}

func TestRanker_PreferenceBonusReordersResults(t *testing.T) {
	catalog := NewCatalog()
	require.NoError(t, catalog.Append(
		[]model.MediaItem{{ID: "m1", Title: "A", Genres: []string{"科幻"}}},
		[][]float32{{1, 0}},
	))
	prefs := NewPreferenceStore(&fakeInteractionRepo{}, newFakePrefRepo(), catalog)
	require.NoError(t, prefs.RecordInteraction("u1", "m1", "like", 1.0, nil))
	ranker := newTestRanker(prefs)

	// 两个条目相似度接近，偏好权重让科幻反超
	base := []model.ScoredItem{
		{Item: model.MediaItem{ID: "x", Genres: []string{"纪录"}}, Similarity: 0.80},
		{Item: model.MediaItem{ID: "y", Genres: []string{"科幻"}}, Similarity: 0.78},
	}
	ranked := ranker.Personalize("u1", base)

	// x: 0.80 + 0.1*0.1；y: 0.78 + 0.1*2.1
	assert.Equal(t, "y", ranked[0].Item.ID)
	assert.InDelta(t, 0.1*2.1, ranked[0].PersonalizationBonus, 1e-9)
}

func TestRanker_OnlyTopThreeActorsCounted(t *testing.T) {
	prefs := emptyPrefs()
	ranker := newTestRanker(prefs)

	item := model.MediaItem{
		ID:     "a",
		Actors: []string{"A1", "A2", "A3", "A4", "A5"},
	}
	ranked := ranker.Personalize("u1", []model.ScoredItem{{Item: item, Similarity: 0.5}})

	// 3 位主演 × 默认权重 0.1，第 4、5 位不计
	assert.InDelta(t, 0.1*(3*0.1), ranked[0].PersonalizationBonus, 1e-9)
}

func TestRanker_FinalScoreComposition(t *testing.T) {
	ranker := newTestRanker(emptyPrefs())

	item := model.MediaItem{
		ID:     "a",
		Type:   "movie",
		Genres: []string{"科幻"},
		Year:   2025,
		Rating: 9.1,
	}
	ranked := ranker.Personalize("u1", []model.ScoredItem{{Item: item, Similarity: 0.7}})
	res := ranked[0]

	assert.InDelta(t, 0.1*(0.1+0.1), res.PersonalizationBonus, 1e-9) // genre + media_type 默认权重
	assert.InDelta(t, 0.2, res.DiversityBonus, 1e-9)                 // 类型首次出现，无导演
	assert.InDelta(t, 0.3, res.RatingBonus, 1e-9)
	assert.InDelta(t, 0.2, res.RecencyBonus, 1e-9)
	assert.InDelta(t, 0.7+0.02+0.2+0.3+0.2, res.FinalScore, 1e-9)
}

func TestRanker_StableOrderOnTies(t *testing.T) {
	ranker := newTestRanker(emptyPrefs())

	// 无类型无导演无年份无评分：最终分都等于相似度，保持原有顺序
	base := []model.ScoredItem{
		{Item: model.MediaItem{ID: "a"}, Similarity: 0.5},
		{Item: model.MediaItem{ID: "b"}, Similarity: 0.5},
		{Item: model.MediaItem{ID: "c"}, Similarity: 0.5},
	}
	ranked := ranker.Personalize("u1", base)
	assert.Equal(t, "a", ranked[0].Item.ID)
	assert.Equal(t, "b", ranked[1].Item.ID)
	assert.Equal(t, "c", ranked[2].Item.ID)
}

func TestRanker_EmptyInput(t *testing.T) {
	ranker := newTestRanker(emptyPrefs())
	assert.Empty(t, ranker.Personalize("u1", nil))
}
