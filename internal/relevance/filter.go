package relevance

import (
	"context"
	"fmt"
	"sort"

	"github.com/0xlawrence/ainews-app-sub000/internal/config"
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

const (
	keywordWeight  = 0.7
	semanticWeight = 0.3
)

// Filter runs the relevance stage.
type Filter struct {
	cfg      config.Relevance
	keywords *KeywordScorer
	semantic *SemanticScorer // nil when embeddings are unavailable
}

// NewFilter creates the relevance filter. semantic may be nil.
func NewFilter(cfg config.Relevance, semantic *SemanticScorer) *Filter {
	return &Filter{
		cfg:      cfg,
		keywords: NewKeywordScorer(),
		semantic: semantic,
	}
}

// ScoreAll scores every item. Early-rejected items keep their forced score
// and skip the semantic pass.
func (f *Filter) ScoreAll(ctx context.Context, items []core.RawItem) []core.ScoredItem {
	scored := make([]core.ScoredItem, 0, len(items))
	for _, item := range items {
		scored = append(scored, f.scoreOne(ctx, item))
	}
	return scored
}

func (f *Filter) scoreOne(ctx context.Context, item core.RawItem) core.ScoredItem {
	kw := f.keywords.Score(item.Title, item.Body)
	out := core.ScoredItem{
		Item:            item,
		KeywordScore:    kw.Score,
		MatchedKeywords: kw.Matched,
	}
	if kw.Rejected {
		out.Relevance = kw.Score
		out.FilterReason = kw.Reason
		return out
	}

	if f.semantic == nil {
		out.Relevance = kw.Score
		out.FilterReason = "keyword_only"
		return out
	}

	sem, err := f.semantic.Score(ctx, semanticText(item))
	if err != nil {
		logger.Warn("semantic scoring failed, keyword score only",
			"item", item.ID, "error", err.Error())
		out.Relevance = kw.Score
		out.FilterReason = "keyword_only"
		return out
	}
	out.SemanticScore = sem
	out.Relevance = keywordWeight*kw.Score + semanticWeight*sem
	out.FilterReason = "combined"
	return out
}

// semanticText is the embedding input: title plus a body prefix. Truncation
// counts runes so a multi-byte character is never split.
func semanticText(item core.RawItem) string {
	body := []rune(item.Body)
	if len(body) > 600 {
		body = body[:600]
	}
	return item.Title + "\n" + string(body)
}

// Apply scores all items and selects the pool with the dynamic threshold:
// start at the base, relax in steps down to the floor until the minimum
// article count is met, then trim the pool to its cap by score.
func (f *Filter) Apply(ctx context.Context, items []core.RawItem) ([]core.ScoredItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	scored := f.ScoreAll(ctx, items)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})

	threshold := f.cfg.BaseThreshold
	var accepted []core.ScoredItem
	for {
		accepted = accepted[:0]
		for _, s := range scored {
			if s.Relevance >= threshold {
				accepted = append(accepted, s)
			}
		}
		if len(accepted) >= f.cfg.MinArticles || threshold <= f.cfg.MinThreshold {
			break
		}
		threshold -= f.cfg.ThresholdStep
		if threshold < f.cfg.MinThreshold {
			threshold = f.cfg.MinThreshold
		}
	}

	if threshold != f.cfg.BaseThreshold {
		logger.Info("relevance threshold relaxed",
			"threshold", fmt.Sprintf("%.2f", threshold), "accepted", len(accepted))
	}

	// Still short at the floor: take the top items by score so a quiet day
	// does not empty the pool while candidates exist.
	if len(accepted) < f.cfg.MinArticles {
		n := f.cfg.MinArticles
		if n > len(scored) {
			n = len(scored)
		}
		if n > len(accepted) {
			accepted = scored[:n]
			logger.Info("relevance backfill engaged", "accepted", len(accepted))
		}
	}
	if f.cfg.MaxPool > 0 && len(accepted) > f.cfg.MaxPool {
		accepted = accepted[:f.cfg.MaxPool]
	}

	logger.Info("relevance filter complete",
		"input", len(items), "accepted", len(accepted),
		"threshold", fmt.Sprintf("%.2f", threshold))
	return accepted, nil
}
