package service

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/user/mediarec/internal/model"
)

// 各动作对应的权重增量系数
const (
	actionWeightLike     = 2.0
	actionWeightDownload = 1.5
	actionWeightView     = 0.5
	actionWeightDislike  = -1.0
	actionWeightDefault  = 1.0

	// 偏好权重下限，负反馈再多也只会压到 0.1
	preferenceWeightFloor = 0.1

	// 内存侧每个用户最多保留的最近交互条数
	recentInteractionLimit = 100
)

// InteractionRepo 交互日志持久化能力
type InteractionRepo interface {
	Append(it *model.UserInteraction) error
	ListByUser(userID string, limit int) ([]*model.UserInteraction, error)
	CountByUser(userID string) (int64, error)
}

// PreferenceRepo 偏好权重持久化能力
type PreferenceRepo interface {
	ApplyDelta(userID, prefType, prefValue string, delta float64) (float64, error)
	ListAll() ([]*model.PreferenceWeight, error)
}

// PreferenceStore 用户偏好：交互日志先落库，再更新内存权重镜像。
// 日志是事实来源，权重行可以通过重放日志重建；
// 日志写入失败时整次交互作废，内存不更新
type PreferenceStore struct {
	mu           sync.RWMutex
	weights      map[string]map[string]float64      // userID → "维度:取值" → 权重
	counts       map[string]int64                   // userID → 内存侧交互计数
	recent       map[string][]model.UserInteraction // userID → 最近交互（旧→新）
	interactions InteractionRepo
	prefs        PreferenceRepo
	catalog      *Catalog
}

// NewPreferenceStore 创建偏好存储
func NewPreferenceStore(interactions InteractionRepo, prefs PreferenceRepo, catalog *Catalog) *PreferenceStore {
	return &PreferenceStore{
		weights:      make(map[string]map[string]float64),
		counts:       make(map[string]int64),
		recent:       make(map[string][]model.UserInteraction),
		interactions: interactions,
		prefs:        prefs,
		catalog:      catalog,
	}
}

// actionMultiplier 动作 → 权重增量，未知动作按默认系数处理
func actionMultiplier(action string) float64 {
	switch action {
	case "like":
		return actionWeightLike
	case "download":
		return actionWeightDownload
	case "view":
		return actionWeightView
	case "dislike":
		return actionWeightDislike
	default:
		return actionWeightDefault
	}
}

// RecordInteraction 记录一次用户交互并更新偏好权重。
// value 是本次交互的带符号强度，原样入日志，权重增量 = value × 动作系数；
// 媒体不在目录中时只记日志不更新权重，不算错误
func (s *PreferenceStore) RecordInteraction(userID, mediaID, action string, value float64, metadata map[string]interface{}) error {
	metaJSON := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			log.Printf("[PreferenceStore] 交互元数据序列化失败 user=%s media=%s: %v", userID, mediaID, err)
		} else {
			metaJSON = string(b)
		}
	}

	delta := value * actionMultiplier(action)

	interaction := model.UserInteraction{
		UserID:    userID,
		MediaID:   mediaID,
		Type:      action,
		Value:     value,
		Metadata:  metaJSON,
		CreatedAt: time.Now(),
	}

	// 日志先落库，失败则整次交互作废
	if err := s.interactions.Append(&interaction); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.mu.Lock()
	s.counts[userID]++
	list := append(s.recent[userID], interaction)
	if len(list) > recentInteractionLimit {
		list = list[len(list)-recentInteractionLimit:]
	}
	s.recent[userID] = list
	s.mu.Unlock()

	item, ok := s.catalog.ItemByID(mediaID)
	if !ok {
		log.Printf("[PreferenceStore] 媒体不在目录中，跳过权重更新 user=%s media=%s action=%s", userID, mediaID, action)
		return nil
	}

	for _, genre := range item.Genres {
		s.applyDelta(userID, "genre", genre, delta)
	}
	for _, director := range item.Directors {
		s.applyDelta(userID, "director", director, delta)
	}
	if item.Album != "" {
		s.applyDelta(userID, "music_album", item.Album, delta)
	}
	if item.MusicGenre != "" {
		s.applyDelta(userID, "music_genre", item.MusicGenre, delta)
	}

	return nil
}

// applyDelta 更新单个维度权重：内存镜像立即生效，数据库尽力而为
func (s *PreferenceStore) applyDelta(userID, prefType, prefValue string, delta float64) {
	key := prefType + ":" + prefValue

	s.mu.Lock()
	userWeights, ok := s.weights[userID]
	if !ok {
		userWeights = make(map[string]float64)
		s.weights[userID] = userWeights
	}
	cur, ok := userWeights[key]
	if !ok {
		cur = preferenceWeightFloor
	}
	next := cur + delta
	if next < preferenceWeightFloor {
		next = preferenceWeightFloor
	}
	userWeights[key] = next
	s.mu.Unlock()

	if _, err := s.prefs.ApplyDelta(userID, prefType, prefValue, delta); err != nil {
		log.Printf("[PreferenceStore] 权重落库失败 user=%s %s=%s: %v", userID, prefType, prefValue, err)
	}
}

// RecentInteractions 返回用户最近的交互，新的在前。
// 优先读内存镜像（只保留最近 recentInteractionLimit 条），
// 镜像为空时回退到数据库，比如进程重启后第一次查询
func (s *PreferenceStore) RecentInteractions(userID string, limit int) []model.UserInteraction {
	if limit <= 0 {
		limit = recentInteractionLimit
	}

	s.mu.RLock()
	cached := s.recent[userID]
	s.mu.RUnlock()

	if len(cached) > 0 {
		if len(cached) > limit {
			cached = cached[len(cached)-limit:]
		}
		out := make([]model.UserInteraction, len(cached))
		for i, it := range cached {
			out[len(cached)-1-i] = it
		}
		return out
	}

	rows, err := s.interactions.ListByUser(userID, limit)
	if err != nil {
		log.Printf("[PreferenceStore] 交互历史查询失败 user=%s: %v", userID, err)
		return nil
	}
	out := make([]model.UserInteraction, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out
}

// GetWeight 查询内存镜像中的权重，没有记录时返回默认值 0.1
func (s *PreferenceStore) GetWeight(userID, prefType, prefValue string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userWeights, ok := s.weights[userID]; ok {
		if w, ok := userWeights[prefType+":"+prefValue]; ok {
			return w
		}
	}
	return preferenceWeightFloor
}

// LoadWeights 启动时从数据库恢复全部权重到内存镜像
func (s *PreferenceStore) LoadWeights() error {
	rows, err := s.prefs.ListAll()
	if err != nil {
		return fmt.Errorf("加载偏好权重失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		userWeights, ok := s.weights[row.UserID]
		if !ok {
			userWeights = make(map[string]float64)
			s.weights[row.UserID] = userWeights
		}
		userWeights[row.PreferenceType+":"+row.PreferenceValue] = row.Weight
	}
	log.Printf("[PreferenceStore] 已加载偏好权重 %d 条", len(rows))
	return nil
}

// 概览中露出的最近交互条数
const summaryRecentLimit = 10

// PreferenceSummary 用户偏好概览
type PreferenceSummary struct {
	UserID           string                     `json:"user_id"`
	InteractionCount int64                      `json:"interaction_count"`
	TopPreferences   map[string][]WeightedValue `json:"top_preferences"`     // 维度 → 权重降序取值
	RecentActions    []InteractionBrief         `json:"recent_interactions"` // 新的在前
}

// WeightedValue 带权重的偏好取值
type WeightedValue struct {
	Value  string  `json:"value"`
	Weight float64 `json:"weight"`
}

// InteractionBrief 概览中的单条交互
type InteractionBrief struct {
	MediaID   string    `json:"media_id"`
	Action    string    `json:"action"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary 汇总用户各维度权重最高的取值，每个维度最多 topN 个
func (s *PreferenceStore) Summary(userID string, topN int) *PreferenceSummary {
	count, err := s.interactions.CountByUser(userID)
	if err != nil {
		log.Printf("[PreferenceStore] 交互计数查询失败 user=%s: %v", userID, err)
		s.mu.RLock()
		count = s.counts[userID]
		s.mu.RUnlock()
	}

	recent := s.RecentInteractions(userID, summaryRecentLimit)
	briefs := make([]InteractionBrief, 0, len(recent))
	for _, it := range recent {
		briefs = append(briefs, InteractionBrief{
			MediaID:   it.MediaID,
			Action:    it.Type,
			Value:     it.Value,
			CreatedAt: it.CreatedAt,
		})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string][]WeightedValue)
	for key, w := range s.weights[userID] {
		for i := 0; i < len(key); i++ {
			if key[i] == ':' {
				prefType, prefValue := key[:i], key[i+1:]
				byType[prefType] = append(byType[prefType], WeightedValue{Value: prefValue, Weight: w})
				break
			}
		}
	}
	for prefType, values := range byType {
		sort.Slice(values, func(i, j int) bool {
			if values[i].Weight != values[j].Weight {
				return values[i].Weight > values[j].Weight
			}
			return values[i].Value < values[j].Value
		})
		if len(values) > topN {
			values = values[:topN]
		}
		byType[prefType] = values
	}

	return &PreferenceSummary{
		UserID:           userID,
		InteractionCount: count,
		TopPreferences:   byType,
		RecentActions:    briefs,
	}
}
