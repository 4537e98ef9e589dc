// Package summarize implements the summarization stage: concurrent structured summarization with
// a quality-gated retry and a degenerate fallback so no item is lost.
package summarize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// retryScoreFloor triggers the single quality retry.
const retryScoreFloor = 0.4

// Summarizer is the LLM operation this stage needs. Satisfied by llm.Router.
type Summarizer interface {
	Summarize(ctx context.Context, title, body, url, sourceID string) (core.Summary, error)
}

// Stage runs the summarization fan-out.
type Stage struct {
	llm     Summarizer
	workers int
}

// NewStage creates the stage. workers bounds concurrent LLM calls.
func NewStage(llm Summarizer, workers int) *Stage {
	if workers <= 0 {
		workers = 5
	}
	return &Stage{llm: llm, workers: workers}
}

// Run summarizes every item concurrently. Items whose summarization fails
// outright get a degenerate fallback summary instead of being dropped, so
// the output always has one entry per input in input order.
func (s *Stage) Run(ctx context.Context, items []core.ScoredItem) []core.SummarizedItem {
	out := make([]core.SummarizedItem, len(items))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item core.ScoredItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = s.summarizeOne(ctx, item)
		}(i, item)
	}
	wg.Wait()

	failed := 0
	for _, item := range out {
		if item.Summary.Confidence == 0 && item.Summary.Model == "fallback" {
			failed++
		}
	}
	logger.Info("summarization complete",
		"items", len(items), "fallbacks", failed, "workers", s.workers)
	return out
}

// summarizeOne produces the summary for one item, retrying once when the
// first result fails the language quality gate, keeping the better of two.
func (s *Stage) summarizeOne(ctx context.Context, item core.ScoredItem) core.SummarizedItem {
	start := time.Now()
	raw := item.Item

	best, bestScore, retries, err := s.attempt(ctx, raw)
	if err != nil {
		logger.Warn("summarization failed, using fallback",
			"item", raw.ID, "error", err.Error())
		return core.SummarizedItem{
			Item:     item,
			Summary:  fallbackSummary(raw),
			Duration: time.Since(start),
			Retries:  retries,
		}
	}

	best.Bullets = repairTerminals(best.Bullets)
	logger.Debug("item summarized",
		"item", raw.ID, "score", fmt.Sprintf("%.2f", bestScore), "retries", retries)
	return core.SummarizedItem{
		Item:     item,
		Summary:  best,
		Duration: time.Since(start),
		Retries:  retries,
	}
}

// repairTerminals appends a sentence terminal to any bullet that lacks one.
func repairTerminals(bullets []string) []string {
	for i, b := range bullets {
		bullets[i] = jplang.EnsureTerminal(b)
	}
	return bullets
}

// attempt runs up to two summarization calls and returns the higher-scoring
// result.
func (s *Stage) attempt(ctx context.Context, raw core.RawItem) (core.Summary, float64, int, error) {
	first, err := s.llm.Summarize(ctx, raw.Title, raw.Body, raw.URL, raw.SourceID)
	if err != nil {
		return core.Summary{}, 0, 0, err
	}
	firstScore, acceptable := gateScore(first)
	if acceptable {
		return first, firstScore, 0, nil
	}

	second, err := s.llm.Summarize(ctx, raw.Title, raw.Body, raw.URL, raw.SourceID)
	if err != nil {
		// Keep the first result; a gate miss is still better than nothing.
		return first, firstScore, 1, nil
	}
	secondScore, _ := gateScore(second)
	if secondScore > firstScore {
		return second, secondScore, 1, nil
	}
	return first, firstScore, 1, nil
}

// gateScore validates the bullets and reports whether the summary clears the
// retry gate: no critical violations and a score at or above the floor.
func gateScore(summary core.Summary) (float64, bool) {
	report := jplang.ValidateBullets(summary.Bullets, jplang.SummaryBulletOptions())
	return report.Score, !report.HasCritical() && report.Score >= retryScoreFloor
}

// fallbackSummary builds the degenerate summary used when every provider
// failed: the original title, a body prefix or source pointer, and an
// explicit failure notice. Always three bullets, matching the summary shape.
func fallbackSummary(raw core.RawItem) core.Summary {
	bullets := []string{jplang.EnsureTerminal(raw.Title)}
	if raw.Body != "" {
		prefix := []rune(raw.Body)
		if len(prefix) > 120 {
			prefix = prefix[:120]
		}
		bullets = append(bullets, jplang.EnsureTerminal(string(prefix)))
	} else {
		bullets = append(bullets, fmt.Sprintf("%sが公開した記事で、詳細は元記事(%s)で確認できます。",
			sources.DisplayName(raw.SourceID), raw.URL))
	}
	bullets = append(bullets, "自動要約に失敗したため、元記事の内容をそのまま掲載しています。")
	return core.Summary{
		Bullets:     bullets,
		Confidence:  0,
		Reliability: core.ReliabilityLow,
		Model:       "fallback",
	}
}
