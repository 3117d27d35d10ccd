package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/mediarec/internal/model"
	"github.com/user/mediarec/internal/utils"
)

// EmbeddingProvider 向量嵌入能力，外部注入（Ollama、OpenAI 兼容端点或测试桩）
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EmbeddingService 嵌入管道：文本 → 缓存 → 嵌入服务。
// 嵌入服务调用不持有缓存锁，且统一套用超时
type EmbeddingService struct {
	provider EmbeddingProvider
	cache    *EmbeddingCache
	timeout  time.Duration
}

// NewEmbeddingService 创建嵌入管道
func NewEmbeddingService(provider EmbeddingProvider, cache *EmbeddingCache, timeout time.Duration) *EmbeddingService {
	return &EmbeddingService{
		provider: provider,
		cache:    cache,
		timeout:  timeout,
	}
}

// Embed 生成文本向量，相同文本命中缓存后不再调用嵌入服务
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashText(text)
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	s.cache.Set(key, vec)
	return vec, nil
}

// Dimensions 返回向量维度
func (s *EmbeddingService) Dimensions() int {
	return s.provider.Dimensions()
}

// CacheLen 当前缓存条目数
func (s *EmbeddingService) CacheLen() int {
	return s.cache.Len()
}

// CacheStats 缓存命中/未命中计数
func (s *EmbeddingService) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}

// BuildMediaText 为媒体条目构建规范文本描述，字段顺序固定，缺失字段跳过
func BuildMediaText(item *model.MediaItem) string {
	var parts []string

	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	if item.Type != "" {
		parts = append(parts, "type: "+item.Type)
	}
	if len(item.Genres) > 0 {
		parts = append(parts, "genres: "+strings.Join(item.Genres, ", "))
	}
	if item.Year > 0 {
		parts = append(parts, fmt.Sprintf("year: %d", item.Year))
	}
	if item.Rating > 0 {
		parts = append(parts, fmt.Sprintf("rating: %.1f", item.Rating))
	}
	if len(item.Directors) > 0 {
		parts = append(parts, "directors: "+strings.Join(item.Directors, ", "))
	}
	if len(item.Actors) > 0 {
		parts = append(parts, "actors: "+strings.Join(item.Actors, ", "))
	}

	return strings.Join(parts, ". ")
}

// BuildItemQueryText 从已有条目构建以此搜彼的查询文本
func BuildItemQueryText(item *model.MediaItem) string {
	var parts []string

	if item.Title != "" {
		parts = append(parts, item.Title)
	}
	if len(item.Genres) > 0 {
		parts = append(parts, strings.Join(item.Genres, ", "))
	}
	if len(item.Directors) > 0 {
		parts = append(parts, strings.Join(item.Directors, ", "))
	}

	return strings.Join(parts, ". ")
}
