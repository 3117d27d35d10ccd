package service

import (
	"log"
	"sync"
	"time"

	"github.com/user/mediarec/internal/model"
)

// fifoCache 固定容量缓存，满时淘汰最早插入的键。
// 注意：淘汰严格按插入顺序（FIFO），不是 LRU——命中不会刷新条目位置。
// 这是刻意保留的行为；按访问时间淘汰是否才是产品本意仍是悬而未决的问题，
// 在确认之前不要悄悄升级成 LRU。
// check-then-insert 与淘汰都在同一把锁内完成，避免并发 miss 时重复插入。
type fifoCache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]V
	order    []string // 键的插入顺序
	hits     int64
	misses   int64
}

func newFIFOCache[V any](capacity int) *fifoCache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &fifoCache[V]{
		capacity: capacity,
		entries:  make(map[string]V, capacity),
	}
}

func (c *fifoCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// set 插入条目；键已存在时只覆盖值，不产生新的淘汰位
func (c *fifoCache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = value
	c.order = append(c.order, key)
}

func (c *fifoCache[V]) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *fifoCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *fifoCache[V]) stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// EmbeddingCache 文本哈希 → 向量。相同文本的向量不会过期，只受容量限制
type EmbeddingCache struct {
	inner *fifoCache[[]float32]
}

// NewEmbeddingCache 创建嵌入缓存，capacity 为最大条目数
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{inner: newFIFOCache[[]float32](capacity)}
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	return c.inner.get(key)
}

func (c *EmbeddingCache) Set(key string, embedding []float32) {
	c.inner.set(key, embedding)
}

func (c *EmbeddingCache) Len() int {
	return c.inner.len()
}

// Stats 返回命中/未命中计数
func (c *EmbeddingCache) Stats() (hits, misses int64) {
	return c.inner.stats()
}

// queryCacheEntry 查询缓存条目，整份结果连同已算好的 rank、confidence 一起缓存
type queryCacheEntry struct {
	results   []model.ScoredItem
	createdAt time.Time
}

// QueryCache (查询哈希, K) → 排序结果，容量 FIFO 淘汰 + TTL 过期双重约束
type QueryCache struct {
	inner *fifoCache[queryCacheEntry]
	ttl   time.Duration
}

// NewQueryCache 创建查询缓存
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		inner: newFIFOCache[queryCacheEntry](capacity),
		ttl:   ttl,
	}
}

// Get 命中且未过期时原样返回缓存结果；过期视为 miss 并移除
func (c *QueryCache) Get(key string) ([]model.ScoredItem, bool) {
	entry, ok := c.inner.get(key)
	if !ok {
		return nil, false
	}
	if time.Since(entry.createdAt) >= c.ttl {
		c.inner.remove(key)
		return nil, false
	}
	return entry.results, true
}

func (c *QueryCache) Set(key string, results []model.ScoredItem) {
	c.inner.set(key, queryCacheEntry{results: results, createdAt: time.Now()})
}

func (c *QueryCache) Len() int {
	return c.inner.len()
}

// Stats 返回命中/未命中计数
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.inner.stats()
}

// Sweep 清理全部过期条目，返回清理数量
func (c *QueryCache) Sweep() int {
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()

	now := time.Now()
	removed := 0
	kept := c.inner.order[:0]
	for _, key := range c.inner.order {
		entry := c.inner.entries[key]
		if now.Sub(entry.createdAt) >= c.ttl {
			delete(c.inner.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.inner.order = kept
	return removed
}

// StartSweeper 启动定期清理协程，stop 关闭后退出
func (c *QueryCache) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					log.Printf("[QueryCache] 清理过期缓存 %d 条", n)
				}
			case <-stop:
				return
			}
		}
	}()
}
