package service

import (
	"sort"
	"time"

	"github.com/user/mediarec/internal/model"
)

// 个性化重排的打分系数
const (
	personalizationScale = 0.1 // 偏好权重和的缩放系数

	diversityTypeBonus     = 0.2 // 类型在本批结果中首次出现
	diversityDirectorBonus = 0.1 // 导演在本批结果中首次出现

	ratingBonusHigh = 0.3 // 评分 ≥ 9
	ratingBonusMid  = 0.2 // 评分 ≥ 8
	ratingBonusLow  = 0.1 // 评分 ≥ 7

	recencyBonusNew    = 0.2 // 两年内
	recencyBonusRecent = 0.1 // 五年内

	// 个性化只看前几位主演，演员表后段噪声大
	topActorCount = 3
)

// PersonalizationRanker 在相似度基础分上叠加偏好、多样性、评分、新旧加成后重排。
// 多样性按输入顺序计算：类型或导演在更靠前的条目中出现过就不再加成
type PersonalizationRanker struct {
	prefs *PreferenceStore
	now   func() time.Time // 测试时可替换
}

// NewPersonalizationRanker 创建个性化重排器
func NewPersonalizationRanker(prefs *PreferenceStore) *PersonalizationRanker {
	return &PersonalizationRanker{
		prefs: prefs,
		now:   time.Now,
	}
}

// Personalize 按用户偏好重排结果，相同最终分保持原有相对顺序
func (r *PersonalizationRanker) Personalize(userID string, results []model.ScoredItem) []model.ScoredItem {
	if len(results) == 0 {
		return results
	}

	currentYear := r.now().Year()
	seenTypes := make(map[string]bool)
	seenDirectors := make(map[string]bool)

	ranked := make([]model.ScoredItem, len(results))
	for i, res := range results {
		item := res.Item

		res.PersonalizationBonus = personalizationScale * r.preferenceSum(userID, &item)
		res.DiversityBonus = diversityBonus(&item, seenTypes, seenDirectors)
		res.RatingBonus = ratingBonus(item.Rating)
		res.RecencyBonus = recencyBonus(item.Year, currentYear)
		res.FinalScore = res.Similarity + res.PersonalizationBonus + res.DiversityBonus + res.RatingBonus + res.RecencyBonus

		if item.Type != "" {
			seenTypes[item.Type] = true
		}
		for _, d := range item.Directors {
			seenDirectors[d] = true
		}

		ranked[i] = res
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// preferenceSum 累加条目各维度上的用户偏好权重
func (r *PersonalizationRanker) preferenceSum(userID string, item *model.MediaItem) float64 {
	var sum float64
	for _, genre := range item.Genres {
		sum += r.prefs.GetWeight(userID, "genre", genre)
	}
	for _, director := range item.Directors {
		sum += r.prefs.GetWeight(userID, "director", director)
	}
	actors := item.Actors
	if len(actors) > topActorCount {
		actors = actors[:topActorCount]
	}
	for _, actor := range actors {
		sum += r.prefs.GetWeight(userID, "actor", actor)
	}
	if item.Type != "" {
		sum += r.prefs.GetWeight(userID, "media_type", item.Type)
	}
	return sum
}

// diversityBonus 类型或导演首次出现时的多样性加成
func diversityBonus(item *model.MediaItem, seenTypes, seenDirectors map[string]bool) float64 {
	var bonus float64
	if item.Type != "" && !seenTypes[item.Type] {
		bonus += diversityTypeBonus
	}
	for _, d := range item.Directors {
		if !seenDirectors[d] {
			bonus += diversityDirectorBonus
			break
		}
	}
	return bonus
}

// ratingBonus 高分条目加成
func ratingBonus(rating float64) float64 {
	switch {
	case rating >= 9:
		return ratingBonusHigh
	case rating >= 8:
		return ratingBonusMid
	case rating >= 7:
		return ratingBonusLow
	default:
		return 0
	}
}

// recencyBonus 新近条目加成，未知年份不加成
func recencyBonus(year, currentYear int) float64 {
	if year <= 0 {
		return 0
	}
	age := currentYear - year
	switch {
	case age <= 2:
		return recencyBonusNew
	case age <= 5:
		return recencyBonusRecent
	default:
		return 0
	}
}
