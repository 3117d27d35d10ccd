package service

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// IndexHit 索引检索命中项，Index 是向量在目录中的稠密下标
type IndexHit struct {
	Index      int
	Similarity float64
}

// VectorIndex 向量索引能力。
// 向量在进入索引时做 L2 归一化，内积即余弦相似度（= 1 - 余弦距离），
// 对外暴露的相似度随原始距离单调。
// 未训练或空索引上的 Search 返回空结果而不是报错。
type VectorIndex interface {
	Train(vectors [][]float32) error
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]IndexHit, error)
	Count() int
	Trained() bool
	Name() string
}

// IVFIndex 倒排文件索引：k-means 粗量化器 + 平铺倒排表。
// 查询只扫描 nprobe 个最近聚类，牺牲召回换速度
type IVFIndex struct {
	mu        sync.RWMutex
	dim       int
	nlist     int
	nprobe    int
	trained   bool
	centroids [][]float32
	lists     [][]int // 每个聚类下的向量下标
	vectors   [][]float32
}

// NewIVFIndex 创建 IVF 索引，nlist 为聚类数、nprobe 为每次查询扫描的聚类数
func NewIVFIndex(dim, nlist, nprobe int) *IVFIndex {
	return &IVFIndex{
		dim:    dim,
		nlist:  nlist,
		nprobe: nprobe,
	}
}

// Train 用一批向量训练粗量化器。至少需要一个向量；
// 训练批量小于 nlist 时自动收缩聚类数，小目录也能建索引
func (idx *IVFIndex) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("训练至少需要一个向量: %w", ErrIndexNotTrained)
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != idx.dim {
			return fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(v))
		}
		normalized[i] = normalizeVector(v)
	}

	nlist := idx.nlist
	if nlist > len(normalized) {
		nlist = len(normalized)
	}

	centroids := kMeans(normalized, nlist, 10)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.centroids = centroids
	idx.lists = make([][]int, len(centroids))
	idx.trained = true
	return nil
}

// Add 归一化后按最近聚类归档。索引未训练时报错，由上层保证先训练
func (idx *IVFIndex) Add(vectors [][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.trained {
		return ErrIndexNotTrained
	}

	for _, v := range vectors {
		if len(v) != idx.dim {
			return fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(v))
		}
		nv := normalizeVector(v)
		list := nearestCentroid(idx.centroids, nv)
		id := len(idx.vectors)
		idx.vectors = append(idx.vectors, nv)
		idx.lists[list] = append(idx.lists[list], id)
	}
	return nil
}

// Search 扫描 nprobe 个最近聚类，按相似度降序返回最多 k 个命中
func (idx *IVFIndex) Search(query []float32, k int) ([]IndexHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained || len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(query))
	}

	q := normalizeVector(query)

	// 聚类按与查询的内积降序，取前 nprobe 个
	type centroidScore struct {
		list  int
		score float64
	}
	ranked := make([]centroidScore, len(idx.centroids))
	for i, c := range idx.centroids {
		ranked[i] = centroidScore{list: i, score: dotProduct(q, c)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	nprobe := idx.nprobe
	if nprobe > len(ranked) {
		nprobe = len(ranked)
	}

	var hits []IndexHit
	for _, cs := range ranked[:nprobe] {
		for _, id := range idx.lists[cs.list] {
			hits = append(hits, IndexHit{
				Index:      id,
				Similarity: dotProduct(q, idx.vectors[id]),
			})
		}
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count 返回已索引的向量数量
func (idx *IVFIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Trained 返回索引是否已训练
func (idx *IVFIndex) Trained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

func (idx *IVFIndex) Name() string {
	return "ivf"
}

// BruteForceIndex 全量余弦相似度索引，IVF 不可用时的兜底实现。
// 对外契约与 IVF 完全一致，只是单次查询代价 O(N)
type BruteForceIndex struct {
	mu      sync.RWMutex
	dim     int
	trained bool
	vectors [][]float32
}

// NewBruteForceIndex 创建全量扫描索引
func NewBruteForceIndex(dim int) *BruteForceIndex {
	return &BruteForceIndex{dim: dim}
}

// Train 全量扫描无需真正训练，只做标记以保持接口语义一致
func (idx *BruteForceIndex) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("训练至少需要一个向量: %w", ErrIndexNotTrained)
	}
	for _, v := range vectors {
		if len(v) != idx.dim {
			return fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(v))
		}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.trained = true
	return nil
}

func (idx *BruteForceIndex) Add(vectors [][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.trained {
		return ErrIndexNotTrained
	}
	for _, v := range vectors {
		if len(v) != idx.dim {
			return fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(v))
		}
		idx.vectors = append(idx.vectors, normalizeVector(v))
	}
	return nil
}

func (idx *BruteForceIndex) Search(query []float32, k int) ([]IndexHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.trained || len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: 期望 %d 维，实际 %d 维", ErrDimensionMismatch, idx.dim, len(query))
	}

	q := normalizeVector(query)
	hits := make([]IndexHit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = IndexHit{Index: i, Similarity: dotProduct(q, v)}
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (idx *BruteForceIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func (idx *BruteForceIndex) Trained() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trained
}

func (idx *BruteForceIndex) Name() string {
	return "bruteforce"
}

// sortHits 相似度降序，同分按下标升序，保证结果确定性
func sortHits(hits []IndexHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Index < hits[j].Index
	})
}

// normalizeVector L2 归一化，零向量原样返回
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// kMeans 确定性的 Lloyd 迭代：初始质心按等距抽样，避免随机种子影响结果
func kMeans(vectors [][]float32, k, iterations int) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)
	stride := len(vectors) / k
	for i := 0; i < k; i++ {
		src := vectors[i*stride]
		c := make([]float32, dim)
		copy(c, src)
		centroids[i] = c
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(centroids, v)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // 空聚类保留旧质心
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}
	return centroids
}

// nearestCentroid 内积最大的质心
func nearestCentroid(centroids [][]float32, v []float32) int {
	best, bestScore := 0, math.Inf(-1)
	for i, c := range centroids {
		if s := dotProduct(v, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
