package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axisVector(dim, axis int, scale float32) []float32 {
	v := make([]float32, dim)
	v[axis] = scale
	return v
}

func TestBruteForceIndex_SearchOrdering(t *testing.T) {
	idx := NewBruteForceIndex(4)
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	require.NoError(t, idx.Train(vectors))
	require.NoError(t, idx.Add(vectors))

	hits, err := idx.Search([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// 与查询同向的向量排最前，相似度单调不增
	assert.Equal(t, 0, hits[0].Index)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, 1, hits[1].Index)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Similarity, hits[i-1].Similarity)
	}
}

func TestBruteForceIndex_UntrainedSearchReturnsEmpty(t *testing.T) {
	idx := NewBruteForceIndex(4)
	hits, err := idx.Search([]float32{1, 0, 0, 0}, 5)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBruteForceIndex_AddBeforeTrainFails(t *testing.T) {
	idx := NewBruteForceIndex(4)
	err := idx.Add([][]float32{{1, 0, 0, 0}})
	assert.ErrorIs(t, err, ErrIndexNotTrained)
}

func TestBruteForceIndex_DimensionMismatch(t *testing.T) {
	idx := NewBruteForceIndex(4)
	require.NoError(t, idx.Train([][]float32{{1, 0, 0, 0}}))

	err := idx.Add([][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// 空索引会短路返回空结果，先放进一条合法向量再查
	require.NoError(t, idx.Add([][]float32{{1, 0, 0, 0}}))
	_, err = idx.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIVFIndex_SmallCatalogMatchesBruteForce(t *testing.T) {
	// nprobe ≥ nlist 时 IVF 扫描全部倒排表，结果应与全量扫描一致
	const dim = 8
	vectors := [][]float32{
		axisVector(dim, 0, 1),
		axisVector(dim, 1, 1),
		axisVector(dim, 2, 1),
		{0.7, 0.7, 0, 0, 0, 0, 0, 0},
		{0, 0.5, 0.5, 0, 0, 0, 0, 0},
		axisVector(dim, 3, 2),
	}

	ivf := NewIVFIndex(dim, 4, 4)
	require.NoError(t, ivf.Train(vectors))
	require.NoError(t, ivf.Add(vectors))

	brute := NewBruteForceIndex(dim)
	require.NoError(t, brute.Train(vectors))
	require.NoError(t, brute.Add(vectors))

	query := []float32{1, 0.2, 0, 0, 0, 0, 0, 0}
	ivfHits, err := ivf.Search(query, 6)
	require.NoError(t, err)
	bruteHits, err := brute.Search(query, 6)
	require.NoError(t, err)

	require.Equal(t, len(bruteHits), len(ivfHits))
	for i := range bruteHits {
		assert.Equal(t, bruteHits[i].Index, ivfHits[i].Index)
		assert.InDelta(t, bruteHits[i].Similarity, ivfHits[i].Similarity, 1e-6)
	}
}

func TestIVFIndex_TrainShrinksListCount(t *testing.T) {
	// 训练批量只有 2 条时 nlist 自动收缩，索引仍可用
	idx := NewIVFIndex(4, 100, 10)
	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}
	require.NoError(t, idx.Train(vectors))
	require.NoError(t, idx.Add(vectors))

	hits, err := idx.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Index)
}

func TestIVFIndex_TrainEmptyFails(t *testing.T) {
	idx := NewIVFIndex(4, 4, 2)
	err := idx.Train(nil)
	assert.Error(t, err)
	assert.False(t, idx.Trained())
}

func TestIVFIndex_SimilarityMonotonicWithDistance(t *testing.T) {
	// 归一化后内积 = 1 - 余弦距离，排序必须与距离升序一致
	const dim = 4
	vectors := [][]float32{
		{1, 0, 0, 0},
		{1, 1, 0, 0},
		{0, 1, 0, 0},
	}
	idx := NewIVFIndex(dim, 2, 2)
	require.NoError(t, idx.Train(vectors))
	require.NoError(t, idx.Add(vectors))

	hits, err := idx.Search([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
}

func TestNormalizeVector(t *testing.T) {
	v := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	// 零向量原样返回，不产生 NaN
	zero := normalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestKMeans_Deterministic(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {0.9, 0.1}, {0, 1}, {0.1, 0.9},
	}
	a := kMeans(vectors, 2, 10)
	b := kMeans(vectors, 2, 10)
	assert.Equal(t, a, b, "相同输入的训练结果必须一致")
}
