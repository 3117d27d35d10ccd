package service

import (
	"fmt"
	"sync"

	"github.com/user/mediarec/internal/model"
)

// Catalog 媒体目录：条目与向量成对追加，没有删除接口。
// 不变量：len(items) == len(embeddings)，下标 i 的条目和向量是同一实体的两面。
// id → 稠密下标的映射避免裸下标漂移，重复摄入时映射指向最新一条
type Catalog struct {
	mu         sync.RWMutex
	items      []model.MediaItem
	embeddings [][]float32
	byID       map[string]int
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{
		byID: make(map[string]int),
	}
}

// Append 成批追加条目与向量，两者必须等长，整批一起提交
func (c *Catalog) Append(items []model.MediaItem, embeddings [][]float32) error {
	if len(items) != len(embeddings) {
		return fmt.Errorf("条目与向量数量不一致: %d vs %d", len(items), len(embeddings))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, item := range items {
		idx := len(c.items)
		c.items = append(c.items, item)
		c.embeddings = append(c.embeddings, embeddings[i])
		c.byID[item.ID] = idx
	}
	return nil
}

// Len 目录大小
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ItemAt 按稠密下标取条目
func (c *Catalog) ItemAt(index int) (model.MediaItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.items) {
		return model.MediaItem{}, false
	}
	return c.items[index], true
}

// ItemByID 按媒体 id 取条目（重复摄入时取最新）
func (c *Catalog) ItemByID(id string) (model.MediaItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byID[id]
	if !ok {
		return model.MediaItem{}, false
	}
	return c.items[idx], true
}

// Embeddings 返回全部向量的浅拷贝切片（训练用）
func (c *Catalog) Embeddings() [][]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([][]float32, len(c.embeddings))
	copy(out, c.embeddings)
	return out
}
