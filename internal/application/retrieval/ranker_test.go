package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
)

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-9)

	s, err = CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, s, 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	s, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = CosineSimilarity([]float32{1, 2, 3}, []float32{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -1.2, 4}, {2.5, 0.1, -0.7}},
		{{1e-3, 7}, {9, 1e3}},
		{{1}, {-1}},
	}
	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		require.NoError(t, err)
		ba, err := CosineSimilarity(p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeRankingError))
}

func TestRankOrdersAndTruncates(t *testing.T) {
	candidates := []*entity.Chapter{
		{ID: "far", Embedding: []float32{0, 1}},
		{ID: "near", Embedding: []float32{1, 0.1}},
		{ID: "mid", Embedding: []float32{1, 1}},
	}

	got, err := Rank([]float32{1, 0}, candidates, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Chapter.ID)
	assert.Equal(t, "mid", got[1].Chapter.ID)

	all, err := Rank([]float32{1, 0}, candidates, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unbounded, err := Rank([]float32{1, 0}, candidates, 0)
	require.NoError(t, err)
	assert.Len(t, unbounded, 3)
}

func TestRankIsIdempotentWithTies(t *testing.T) {
	candidates := []*entity.Chapter{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{2, 0}},
		{ID: "c", Embedding: []float32{0, 1}},
		{ID: "d", Embedding: []float32{3, 0}},
	}
	query := []float32{1, 0}

	first, err := Rank(query, candidates, 3)
	require.NoError(t, err)
	second, err := Rank(query, candidates, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	ids := []string{first[0].Chapter.ID, first[1].Chapter.ID, first[2].Chapter.ID}
	assert.Equal(t, []string{"a", "b", "d"}, ids)
}

func TestRankSkipsMalformedCandidates(t *testing.T) {
	nan := float32(math.NaN())
	candidates := []*entity.Chapter{
		{ID: "no-embedding"},
		{ID: "nan", Embedding: []float32{nan, 1}},
		{ID: "wrong-dim", Embedding: []float32{1, 0, 0}},
		{ID: "zero", Embedding: []float32{0, 0}},
		{ID: "ok", Embedding: []float32{1, 0}},
		nil,
	}

	got, err := Rank([]float32{1, 0}, candidates, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ok", got[0].Chapter.ID)
	assert.Equal(t, "zero", got[1].Chapter.ID)
	assert.Equal(t, 0.0, got[1].Score)
}

func TestRankRejectsMalformedQuery(t *testing.T) {
	candidates := []*entity.Chapter{{ID: "ok", Embedding: []float32{1, 0}}}

	for _, q := range [][]float32{nil, {}, {float32(math.Inf(1)), 0}} {
		_, err := Rank(q, candidates, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrRanking)
	}
}
