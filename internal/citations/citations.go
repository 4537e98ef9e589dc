package citations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/0xlawrence/ainews-app-sub000/internal/clustering"
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// SummaryLLM generates the one-sentence citation summaries.
type SummaryLLM interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Options tune the stage.
type Options struct {
	MaxPerArticle int
	Workers       int
}

func (o Options) withDefaults() Options {
	if o.MaxPerArticle <= 0 {
		o.MaxPerArticle = 3
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	return o
}

// Builder assembles citation lists.
type Builder struct {
	llm  SummaryLLM
	opts Options
}

// NewBuilder creates the builder. llm may be nil; summaries then come from
// the first bullet.
func NewBuilder(llm SummaryLLM, opts Options) *Builder {
	return &Builder{llm: llm, opts: opts.withDefaults()}
}

// Run builds citations for every article concurrently, then rebalances the
// unique citation pool across the whole issue. A failure on one article
// degrades it to its own source only.
func (b *Builder) Run(ctx context.Context, articles []core.ProcessedArticle) []core.ProcessedArticle {
	sem := make(chan struct{}, b.opts.Workers)
	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			b.buildForArticle(ctx, &articles[i])
		}(i)
	}
	wg.Wait()

	redistribute(articles, b.opts.MaxPerArticle)

	total := 0
	for i := range articles {
		total += len(articles[i].Citations)
	}
	logger.Info("citations assembled", "articles", len(articles), "citations", total)
	return articles
}

// buildForArticle puts the article's own source first, then fills remaining
// slots from the sibling pool: cluster co-members folded in by the priority
// pass, plus same-story items merged during consolidation, in that order.
func (b *Builder) buildForArticle(ctx context.Context, article *core.ProcessedArticle) {
	own, err := b.ownCitation(ctx, article)
	if err != nil {
		logger.Warn("own-source citation failed",
			"article", article.ID(), "error", err.Error())
		return
	}
	citations := []core.Citation{own}
	seenURLs := map[string]bool{own.URL: true}
	seenSources := map[string]bool{article.SourceID(): true}

	for _, sibling := range article.GroupSources {
		if len(citations) >= b.opts.MaxPerArticle {
			break
		}
		normalized, err := NormalizeURL(sibling.URL)
		if err != nil {
			logger.Debug("skipping sibling with bad URL",
				"article", article.ID(), "url", sibling.URL)
			continue
		}
		if seenURLs[normalized] || seenSources[sibling.SourceID] {
			continue
		}
		if topicConflict(article, sibling) {
			logger.Debug("skipping off-topic sibling",
				"article", article.ID(), "sibling", sibling.Title)
			continue
		}

		citations = append(citations, core.Citation{
			SourceName:    sibling.SourceName,
			URL:           normalized,
			OriginalTitle: sibling.Title,
			Summary:       b.siblingSummary(ctx, sibling),
		})
		seenURLs[normalized] = true
		seenSources[sibling.SourceID] = true
	}
	article.Citations = citations
}

const citationSummaryPrompt = `以下の記事を、引用紹介用に日本語1文(60〜120文字)で要約してください。

タイトル: %s
要点:
%s

制約:
- 1文のみ、60〜120文字
- 文末は「です」「ます」調
- 要約文のみを出力する`

// ownCitation builds the article's lead citation with an LLM-generated
// sentence, degrading to the first bullet.
func (b *Builder) ownCitation(ctx context.Context, article *core.ProcessedArticle) (core.Citation, error) {
	normalized, err := NormalizeURL(article.URL())
	if err != nil {
		return core.Citation{}, err
	}

	citation := core.Citation{
		SourceName:    sources.DisplayName(article.SourceID()),
		URL:           normalized,
		OriginalTitle: article.Title(),
		Summary:       firstBulletSummary(article.Bullets()),
	}
	if summary, ok := b.generateSummary(ctx, article.Title(), article.Bullets()); ok {
		citation.Summary = summary
	}
	return citation, nil
}

// siblingSummary asks the router for the sibling's one-sentence introduction,
// falling back to its first bullet.
func (b *Builder) siblingSummary(ctx context.Context, sibling core.GroupSource) string {
	if summary, ok := b.generateSummary(ctx, sibling.Title, sibling.Bullets); ok {
		return summary
	}
	return firstBulletSummary(sibling.Bullets)
}

// generateSummary runs the citation prompt and validates the result against
// the one-sentence length band.
func (b *Builder) generateSummary(ctx context.Context, title string, bullets []string) (string, bool) {
	if b.llm == nil {
		return "", false
	}
	prompt := fmt.Sprintf(citationSummaryPrompt, title, strings.Join(bullets, "\n"))
	text, err := b.llm.GenerateText(ctx, prompt, 256, 0.3)
	if err != nil {
		logger.Debug("citation summary generation failed, using first bullet",
			"title", title, "error", err.Error())
		return "", false
	}

	summary := jplang.CleanGenerated(strings.SplitN(strings.TrimSpace(text), "\n", 2)[0], "")
	report := jplang.ValidateBullets([]string{summary}, jplang.CitationSummaryOptions())
	if report.HasCritical() {
		return "", false
	}
	return summary, true
}

// firstBulletSummary trims the lead bullet into the citation length band.
func firstBulletSummary(bullets []string) string {
	if len(bullets) == 0 {
		return ""
	}
	runes := []rune(bullets[0])
	if len(runes) > 120 {
		runes = runes[:119]
		return string(runes) + "。"
	}
	return bullets[0]
}

// topicConflict rejects a sibling whose domain tags hit a mutually exclusive
// pair against the article's. This runs even for siblings that cleared
// clustering; it is a second line of defense.
func topicConflict(article *core.ProcessedArticle, sibling core.GroupSource) bool {
	articleTags := clustering.TagsFor(article.Title() + " " + strings.Join(article.Bullets(), " "))
	siblingTags := clustering.TagsFor(sibling.Title + " " + strings.Join(sibling.Bullets, " "))
	return clustering.TagsConflict(articleTags, siblingTags)
}

// redistribute dedups citations by normalized URL across the issue and
// rebalances the unique pool: every article keeps its own-source citation,
// each remaining unique citation goes to its least-loaded citer, and an
// article left with nothing gets a synthesized own-source fallback.
func redistribute(articles []core.ProcessedArticle, maxPer int) {
	kept := make([][]core.Citation, len(articles))
	owned := make(map[string]bool)
	for i := range articles {
		if len(articles[i].Citations) == 0 {
			continue
		}
		own := articles[i].Citations[0]
		kept[i] = append(kept[i], own)
		owned[own.URL] = true
	}

	type pooled struct {
		citation core.Citation
		citers   []int
	}
	var pool []*pooled
	byURL := make(map[string]*pooled)
	for i := range articles {
		if len(articles[i].Citations) < 2 {
			continue
		}
		for _, c := range articles[i].Citations[1:] {
			if owned[c.URL] {
				continue
			}
			p, ok := byURL[c.URL]
			if !ok {
				p = &pooled{citation: c}
				byURL[c.URL] = p
				pool = append(pool, p)
			}
			p.citers = append(p.citers, i)
		}
	}

	for _, p := range pool {
		best := -1
		for _, i := range p.citers {
			if len(kept[i]) >= maxPer {
				continue
			}
			if best < 0 || len(kept[i]) < len(kept[best]) {
				best = i
			}
		}
		if best >= 0 {
			kept[best] = append(kept[best], p.citation)
		}
	}

	for i := range articles {
		if len(kept[i]) == 0 {
			kept[i] = []core.Citation{fallbackOwnCitation(&articles[i])}
		}
		articles[i].Citations = kept[i]
	}
}

// fallbackOwnCitation synthesizes the minimal own-source citation for an
// article whose generation failed entirely.
func fallbackOwnCitation(article *core.ProcessedArticle) core.Citation {
	url := article.URL()
	if normalized, err := NormalizeURL(url); err == nil {
		url = normalized
	}
	return core.Citation{
		SourceName:    sources.DisplayName(article.SourceID()),
		URL:           url,
		OriginalTitle: article.Title(),
		Summary:       firstBulletSummary(article.Bullets()),
	}
}
