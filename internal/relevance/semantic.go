package relevance

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Embedder produces one embedding per text. Satisfied by llm.Router.
type Embedder interface {
	Embed(ctx context.Context, text string, dimensions int) ([]float64, error)
}

// SemanticScorer scores items against positive and negative exemplar sets.
// Construction embeds the exemplars once; per-item scoring embeds the item.
type SemanticScorer struct {
	embedder   Embedder
	dimensions int
	positive   [][]float64
	negative   [][]float64

	// negativePenalty discounts items that also resemble the negative set.
	negativePenalty float64
}

// positiveExemplars describe what belongs in the newsletter.
var positiveExemplars = []string{
	"OpenAIが新しい大規模言語モデルを発表し、推論性能が大幅に向上しました",
	"Anthropicが企業向けAIエージェント機能を公開し、業務自動化を支援します",
	"Googleが生成AIの新モデルを公開し、マルチモーダル対応を強化しました",
	"AIスタートアップが大型資金調達を実施し、基盤モデル開発を加速します",
	"研究チームがLLMの新しいファインチューニング手法を論文で発表しました",
}

// negativeExemplars describe adjacent-but-out-of-scope coverage.
var negativeExemplars = []string{
	"新型電気自動車の航続距離と充電性能を実車でレビューしました",
	"ビットコイン価格が急騰し、暗号資産市場が活況となっています",
	"スマートフォンの新機種の設定方法とおすすめの使い方を解説します",
	"新作スマートフォンゲームの攻略法と課金要素をまとめました",
}

// NewSemanticScorer embeds the exemplar sets. An error here disables
// semantic scoring for the run; the caller falls back to keywords only.
func NewSemanticScorer(ctx context.Context, embedder Embedder, dimensions int) (*SemanticScorer, error) {
	s := &SemanticScorer{
		embedder:        embedder,
		dimensions:      dimensions,
		negativePenalty: 0.5,
	}
	for _, text := range positiveExemplars {
		v, err := embedder.Embed(ctx, text, dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to embed positive exemplar: %w", err)
		}
		s.positive = append(s.positive, v)
	}
	for _, text := range negativeExemplars {
		v, err := embedder.Embed(ctx, text, dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to embed negative exemplar: %w", err)
		}
		s.negative = append(s.negative, v)
	}
	return s, nil
}

// Score embeds the item text and compares against both exemplar sets using
// the mean of the top 3 cosine similarities per set.
func (s *SemanticScorer) Score(ctx context.Context, text string) (float64, error) {
	v, err := s.embedder.Embed(ctx, text, s.dimensions)
	if err != nil {
		return 0, fmt.Errorf("failed to embed item: %w", err)
	}
	pos := avgTopSimilarity(v, s.positive, 3)
	neg := avgTopSimilarity(v, s.negative, 3)

	score := pos - s.negativePenalty*neg
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// avgTopSimilarity returns the mean of the k highest cosine similarities
// between v and the set.
func avgTopSimilarity(v []float64, set [][]float64, k int) float64 {
	if len(set) == 0 {
		return 0
	}
	sims := make([]float64, 0, len(set))
	for _, u := range set {
		sims = append(sims, CosineSimilarity(v, u))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
	if k > len(sims) {
		k = len(sims)
	}
	var sum float64
	for _, s := range sims[:k] {
		sum += s
	}
	return sum / float64(k)
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
