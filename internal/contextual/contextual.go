// Package contextual implements the cross-run follow-up analysis: each new
// article is compared against the historical index, adjudicated as an update
// or related coverage, and re-summarized with its prior context when it is a
// follow-up.
package contextual

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/vectorindex"
)

// rePublishedThreshold marks a historical hit so close the story has already
// run; the item is skipped rather than re-published.
const rePublishedThreshold = 0.95

// ContextLLM is the subset of router operations this stage needs.
type ContextLLM interface {
	Embed(ctx context.Context, text string, dimensions int) ([]float64, error)
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Options tune the analysis.
type Options struct {
	SimilarityThreshold float64 // Floor for a historical hit to matter
	TopK                int     // Historical candidates per article
	Dimensions          int     // Embedding dimension, must match the index
	MaxWorkers          int     // Concurrency cap; effective workers adapt to load
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = 0.75
	}
	if o.TopK <= 0 {
		o.TopK = 3
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 8
	}
	return o
}

// Analyzer runs the stage against one index.
type Analyzer struct {
	llm   ContextLLM
	index *vectorindex.Index
	opts  Options
}

// NewAnalyzer creates the analyzer.
func NewAnalyzer(llm ContextLLM, index *vectorindex.Index, opts Options) *Analyzer {
	return &Analyzer{llm: llm, index: index, opts: opts.withDefaults()}
}

// Result separates kept articles from skips and carries the relationships
// discovered during the pass. Embeddings are keyed by article id so the
// clustering stage can reuse them instead of paying for a second pass.
type Result struct {
	Articles      []core.ProcessedArticle
	Skipped       []core.ProcessedArticle
	Relationships []core.RelationshipRecord
	Embeddings    map[string][]float64
}

// Run analyzes every non-duplicate article concurrently and appends each
// kept article to the index buffer. The single index flush happens here, at
// the end of the stage.
func (a *Analyzer) Run(ctx context.Context, articles []core.ProcessedArticle) (Result, error) {
	workers := adaptiveWorkers(len(articles), a.opts.MaxWorkers)
	sem := make(chan struct{}, workers)

	type outcome struct {
		article       core.ProcessedArticle
		skip          bool
		relationships []core.RelationshipRecord
		embedding     []float64
	}
	outcomes := make([]outcome, len(articles))

	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			processed, skip, rels, embedding := a.analyzeOne(ctx, articles[i])
			outcomes[i] = outcome{article: processed, skip: skip, relationships: rels, embedding: embedding}
		}(i)
	}
	wg.Wait()

	result := Result{Embeddings: make(map[string][]float64)}
	for _, o := range outcomes {
		if o.skip {
			result.Skipped = append(result.Skipped, o.article)
			continue
		}
		result.Articles = append(result.Articles, o.article)
		result.Relationships = append(result.Relationships, o.relationships...)
		if o.embedding != nil {
			result.Embeddings[o.article.ID()] = o.embedding
		}
	}

	if err := a.index.Flush(); err != nil {
		return result, fmt.Errorf("failed to flush historical index: %w", err)
	}
	logger.Info("context analysis complete",
		"kept", len(result.Articles), "skipped", len(result.Skipped),
		"relationships", len(result.Relationships), "workers", workers)
	return result, nil
}

// adaptiveWorkers sizes the pool to the batch so small runs do not hold a
// large semaphore.
func adaptiveWorkers(n, max int) int {
	w := (n + 3) / 4
	if w > max {
		w = max
	}
	if w < 1 {
		w = 1
	}
	return w
}

// analyzeOne runs the embed, lookup, adjudication, and optional contextual
// re-summary for one article. Any failure degrades to keeping the article
// without context.
func (a *Analyzer) analyzeOne(ctx context.Context, article core.ProcessedArticle) (core.ProcessedArticle, bool, []core.RelationshipRecord, []float64) {
	embedding, err := a.llm.Embed(ctx, embeddingText(&article), a.opts.Dimensions)
	if err != nil {
		logger.Warn("context embedding failed, keeping article without context",
			"article", article.ID(), "error", err.Error())
		return article, false, nil, nil
	}

	matches, err := a.index.Search(embedding, a.opts.TopK, a.opts.SimilarityThreshold)
	if err != nil {
		logger.Warn("historical lookup failed", "article", article.ID(), "error", err.Error())
		a.appendToIndex(&article, embedding)
		return article, false, nil, embedding
	}
	if len(matches) == 0 {
		article.Context = &core.ContextVerdict{Decision: core.DecisionKeep}
		a.appendToIndex(&article, embedding)
		return article, false, nil, embedding
	}

	// The duplicate check against history runs before any further LLM calls
	// so re-published stories cost no adjudication tokens.
	top := matches[0]
	if top.Similarity >= rePublishedThreshold {
		article.Duplicate = core.DuplicateVerdict{
			IsDuplicate:   true,
			Method:        core.MethodEmbeddingSimilarity,
			Similarity:    top.Similarity,
			DuplicateOfID: top.Record.ArticleID,
		}
		article.Context = &core.ContextVerdict{
			Decision:   core.DecisionSkip,
			References: []string{top.Record.ArticleID},
			Similarity: top.Similarity,
			Reasoning:  "過去の配信済み記事とほぼ同一のため除外",
		}
		return article, true, nil, nil
	}

	decision := a.adjudicate(ctx, &article, top)
	var rels []core.RelationshipRecord

	switch decision {
	case "UPDATE":
		article.IsUpdate = true
		article.Context = &core.ContextVerdict{
			Decision:   core.DecisionUpdate,
			References: matchIDs(matches),
			Similarity: top.Similarity,
			Reasoning:  "過去記事の続報と判定",
		}
		a.resummarizeWithContext(ctx, &article, top)
		rels = append(rels, core.RelationshipRecord{
			ParentArticleID: top.Record.ArticleID,
			ChildArticleID:  article.ID(),
			Kind:            core.RelationshipUpdate,
			Similarity:      top.Similarity,
			Reasoning:       "続報",
		})
	case "RELATED":
		article.RelatedIDs = matchIDs(matches)
		article.Context = &core.ContextVerdict{
			Decision:   core.DecisionKeep,
			References: article.RelatedIDs,
			Similarity: top.Similarity,
			Reasoning:  "関連する過去記事あり",
		}
		for _, m := range matches {
			rels = append(rels, core.RelationshipRecord{
				ParentArticleID: m.Record.ArticleID,
				ChildArticleID:  article.ID(),
				Kind:            core.RelationshipRelated,
				Similarity:      m.Similarity,
				Reasoning:       "関連記事",
			})
		}
	default:
		article.Context = &core.ContextVerdict{
			Decision:   core.DecisionKeep,
			Similarity: top.Similarity,
		}
	}

	a.appendToIndex(&article, embedding)
	return article, false, rels, embedding
}

const adjudicationPrompt = `新しい記事が過去の記事の続報かどうかを判定してください。

過去の記事: %s
過去の要約: %s

新しい記事: %s
新しい要約: %s

次の1語のみで回答してください。
UPDATE: 新しい記事が過去の記事の続報・進展である
RELATED: 同じ話題だが続報ではない
UNRELATED: 無関係`

// adjudicate asks for a one-word verdict. Anything unparseable counts as
// UNRELATED.
func (a *Analyzer) adjudicate(ctx context.Context, article *core.ProcessedArticle, top vectorindex.Match) string {
	prompt := fmt.Sprintf(adjudicationPrompt,
		top.Record.Title, top.Record.SummaryText,
		article.Title(), strings.Join(article.Bullets(), " "))

	text, err := a.llm.GenerateText(ctx, prompt, 16, 0)
	if err != nil {
		logger.Debug("adjudication failed", "article", article.ID(), "error", err.Error())
		return "UNRELATED"
	}
	verdict := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(verdict, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(verdict, "RELATED"):
		return "RELATED"
	default:
		return "UNRELATED"
	}
}

const contextSummaryPrompt = `以下は続報記事です。過去の経緯を踏まえて、続報として日本語で要約し直してください。

過去の記事: %s
過去の要約: %s

新しい記事: %s
新しい記事の要約:
%s

制約:
- 箇条書きで3〜4点、各100〜250文字
- 過去からの変化・進展を明確にする
- 「この」「その」などの指示語は使わない
- 各行に要点を1つずつ、記号や番号を付けずに出力する`

// resummarizeWithContext replaces the bullets with a context-aware version.
// A result that misses the shape keeps the original bullets.
func (a *Analyzer) resummarizeWithContext(ctx context.Context, article *core.ProcessedArticle, top vectorindex.Match) {
	prompt := fmt.Sprintf(contextSummaryPrompt,
		top.Record.Title, top.Record.SummaryText,
		article.Title(), strings.Join(article.Bullets(), "\n"))

	text, err := a.llm.GenerateText(ctx, prompt, 1024, 0.3)
	if err != nil {
		logger.Debug("contextual re-summary failed, keeping original",
			"article", article.ID(), "error", err.Error())
		return
	}

	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = jplang.CleanGenerated(strings.TrimSpace(line), "")
		n := jplang.RuneLen(line)
		if n >= 100 && n <= 250 {
			bullets = append(bullets, line)
		}
	}
	if len(bullets) < 3 || len(bullets) > 4 {
		return
	}
	for i, b := range bullets {
		bullets[i] = jplang.EnsureTerminal(b)
	}
	article.Item.Summary.Bullets = bullets
}

// embeddingText is what gets embedded and indexed for an article.
func embeddingText(article *core.ProcessedArticle) string {
	return article.Title() + "\n" + strings.Join(article.Bullets(), "\n")
}

func (a *Analyzer) appendToIndex(article *core.ProcessedArticle, embedding []float64) {
	if embedding == nil {
		return
	}
	record := core.HistoricalRecord{
		ArticleID:     article.ID(),
		Title:         article.Title(),
		SummaryText:   strings.Join(article.Bullets(), " "),
		PublishedAt:   article.Item.Item.Item.PublishedAt,
		SourceID:      article.SourceID(),
		SourceURL:     article.URL(),
		Relevance:     article.Item.Item.Relevance,
		IsUpdate:      article.IsUpdate,
		SummaryPoints: article.Bullets(),
	}
	if err := a.index.Append(record, embedding); err != nil {
		logger.Warn("failed to buffer index record", "article", article.ID(), "error", err.Error())
	}
}

func matchIDs(matches []vectorindex.Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Record.ArticleID)
	}
	return ids
}
