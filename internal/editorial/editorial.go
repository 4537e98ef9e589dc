// Package editorial implements the final assembly stage: scoring article quality, selecting the
// issue's lineup, generating display titles and the lead, and assembling the
// final newsletter structure.
package editorial

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

// Quality component weights.
const (
	languageWeight   = 0.4
	confidenceWeight = 0.3
	relevanceWeight  = 0.3
)

// Threshold relaxation: three soft steps, then one emergency step.
const (
	softRelaxFactor     = 0.9
	softRelaxSteps      = 3
	softRelaxFloor      = 0.15
	emergencyFactor     = 0.7
	emergencyFloor      = 0.10
)

// TitleLLM generates display titles and the lead. Satisfied by llm.Router.
type TitleLLM interface {
	GenerateTitle(ctx context.Context, title string, bullets []string) (string, error)
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Options tune the assembly.
type Options struct {
	QualityThreshold float64
	MinArticles      int
	MaxArticles      int
	UpgradeMarker    string
	TOCTitleBudget   int
}

func (o Options) withDefaults() Options {
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = 0.35
	}
	if o.MinArticles <= 0 {
		o.MinArticles = 7
	}
	if o.MaxArticles <= 0 {
		o.MaxArticles = 10
	}
	if o.UpgradeMarker == "" {
		o.UpgradeMarker = "🆙 "
	}
	if o.TOCTitleBudget <= 0 {
		o.TOCTitleBudget = 80
	}
	return o
}

// Newsletter is the assembled issue handed to the renderer.
type Newsletter struct {
	Date     time.Time
	Edition  string
	Lead     []string // Paragraphs
	TOC      []string // One entry per article, marker included
	Articles []core.ProcessedArticle
	Clusters []core.TopicCluster
	Empty    bool // True when no article survived selection
}

// Assembler runs the stage.
type Assembler struct {
	llm  TitleLLM
	opts Options
}

// NewAssembler creates the assembler. llm may be nil; titles and the lead
// then use the deterministic fallbacks.
func NewAssembler(llm TitleLLM, opts Options) *Assembler {
	return &Assembler{llm: llm, opts: opts.withDefaults()}
}

// Assemble scores, selects, titles, and orders the issue.
func (a *Assembler) Assemble(ctx context.Context, articles []core.ProcessedArticle, clusters []core.TopicCluster, date time.Time, edition string) Newsletter {
	for i := range articles {
		articles[i].Quality = qualityScore(&articles[i])
	}

	selected := a.selectByQuality(articles)
	if len(selected) == 0 {
		logger.Warn("no articles survived quality selection")
		return Newsletter{Date: date, Edition: edition, Empty: true}
	}

	selected = orderArticles(selected, clusters)
	if len(selected) > a.opts.MaxArticles {
		selected = selected[:a.opts.MaxArticles]
	}

	for i := range selected {
		a.assignDisplayTitle(ctx, &selected[i])
		selected[i].DisplayTitle = a.applyUpgradeMarker(&selected[i])
	}

	issue := Newsletter{
		Date:     date,
		Edition:  edition,
		Articles: selected,
		Clusters: clustersInUse(clusters, selected),
	}
	issue.Lead = a.generateLead(ctx, selected)
	for i := range selected {
		issue.TOC = append(issue.TOC, TruncateTitle(selected[i].DisplayTitle, a.opts.TOCTitleBudget))
	}

	logger.Info("newsletter assembled",
		"articles", len(selected), "clusters", len(issue.Clusters), "edition", edition)
	return issue
}

// qualityScore blends language quality, model confidence, and relevance.
func qualityScore(article *core.ProcessedArticle) float64 {
	report := jplang.ValidateBullets(article.Bullets(), jplang.SummaryBulletOptions())
	return languageWeight*report.Score +
		confidenceWeight*article.Item.Summary.Confidence +
		relevanceWeight*article.Item.Item.Relevance
}

// selectByQuality applies the threshold, relaxing it stepwise while the
// lineup is short: three soft steps down to 0.15, then one emergency step
// down to 0.10. A short lineup after that ships as-is.
func (a *Assembler) selectByQuality(articles []core.ProcessedArticle) []core.ProcessedArticle {
	threshold := a.opts.QualityThreshold

	pick := func(threshold float64) []core.ProcessedArticle {
		var kept []core.ProcessedArticle
		for _, art := range articles {
			if art.Quality >= threshold {
				kept = append(kept, art)
			}
		}
		return kept
	}

	kept := pick(threshold)
	for step := 0; step < softRelaxSteps && len(kept) < a.opts.MinArticles; step++ {
		threshold *= softRelaxFactor
		if threshold < softRelaxFloor {
			threshold = softRelaxFloor
		}
		kept = pick(threshold)
	}
	if len(kept) < a.opts.MinArticles {
		threshold *= emergencyFactor
		if threshold < emergencyFloor {
			threshold = emergencyFloor
		}
		kept = pick(threshold)
		logger.Warn("emergency quality threshold engaged",
			"threshold", fmt.Sprintf("%.2f", threshold), "selected", len(kept))
	}
	return kept
}

// orderArticles ships one representative per cluster, clusters in importance
// order, then standalone articles by quality. Non-representative cluster
// members never ship on their own; their coverage reaches the issue through
// the representative's citations.
func orderArticles(articles []core.ProcessedArticle, clusters []core.TopicCluster) []core.ProcessedArticle {
	byID := make(map[string]*core.ProcessedArticle, len(articles))
	for i := range articles {
		byID[articles[i].ID()] = &articles[i]
	}

	sorted := make([]core.TopicCluster, len(clusters))
	copy(sorted, clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	var ordered []core.ProcessedArticle
	placed := make(map[string]bool)
	for _, cluster := range sorted {
		if rep, ok := byID[cluster.RepresentativeID]; ok && !placed[cluster.RepresentativeID] {
			ordered = append(ordered, *rep)
		}
		for _, id := range cluster.MemberIDs {
			placed[id] = true
		}
		placed[cluster.RepresentativeID] = true
	}

	var standalone []core.ProcessedArticle
	for i := range articles {
		if !placed[articles[i].ID()] {
			standalone = append(standalone, articles[i])
		}
	}
	sort.SliceStable(standalone, func(i, j int) bool {
		return standalone[i].Quality > standalone[j].Quality
	})
	return append(ordered, standalone...)
}

// applyUpgradeMarker prefixes follow-up articles. Applying it twice adds
// nothing.
func (a *Assembler) applyUpgradeMarker(article *core.ProcessedArticle) string {
	title := article.DisplayTitle
	if !article.IsUpdate {
		return title
	}
	if strings.HasPrefix(title, a.opts.UpgradeMarker) {
		return title
	}
	return a.opts.UpgradeMarker + title
}

func clustersInUse(clusters []core.TopicCluster, articles []core.ProcessedArticle) []core.TopicCluster {
	inUse := make(map[string]bool)
	for i := range articles {
		if articles[i].ClusterID != "" {
			inUse[articles[i].ClusterID] = true
		}
	}
	var kept []core.TopicCluster
	for _, c := range clusters {
		if inUse[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept
}
