package retrieval

import (
	"math"
	"sort"

	"novel-series-rag/internal/domain/entity"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
)

// Scored 带相似度分数的候选章节
type Scored struct {
	Chapter *entity.Chapter
	Score   float64
}

// CosineSimilarity 余弦相似度；任一向量模为 0 时返回 0
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.RankingError("vector dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Rank 对候选做精确线性扫描，按分数降序返回前 k 个（k <= 0 返回全部）
// query 非法时整体失败；候选向量缺失、含非有限值或维度不一致时跳过该候选
func Rank(query []float32, candidates []*entity.Chapter, k int) ([]Scored, error) {
	if err := validateVector(query); err != nil {
		return nil, errors.RankingError("invalid query vector: %v", err)
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if err := validateVector(c.Embedding); err != nil {
			logger.Default().Debug("skip candidate", "chapter_id", c.ID, "reason", err.Error())
			continue
		}
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			logger.Default().Warn("skip candidate", "chapter_id", c.ID, "reason", err.Error())
			continue
		}
		scored = append(scored, Scored{Chapter: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

type vectorError string

func (e vectorError) Error() string { return string(e) }

func validateVector(v []float32) error {
	if len(v) == 0 {
		return vectorError("empty vector")
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return vectorError("non-finite component")
		}
	}
	return nil
}
