// Package pipeline wires the whole run: collection, relevance, summaries,
// consolidation and context, clustering, citations, editorial assembly, and
// artifact output.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/citations"
	"github.com/0xlawrence/ainews-app-sub000/internal/clustering"
	"github.com/0xlawrence/ainews-app-sub000/internal/config"
	"github.com/0xlawrence/ainews-app-sub000/internal/contextual"
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/dedup"
	"github.com/0xlawrence/ainews-app-sub000/internal/editorial"
	"github.com/0xlawrence/ainews-app-sub000/internal/fetch"
	"github.com/0xlawrence/ainews-app-sub000/internal/llm"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/persistence"
	"github.com/0xlawrence/ainews-app-sub000/internal/relevance"
	"github.com/0xlawrence/ainews-app-sub000/internal/render"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
	"github.com/0xlawrence/ainews-app-sub000/internal/summarize"
	"github.com/0xlawrence/ainews-app-sub000/internal/vectorindex"
)

// Pipeline holds everything one run needs.
type Pipeline struct {
	cfg    *config.Config
	creds  config.Credentials
	router *llm.Router // Overrides credential-based construction when set
}

// New creates a pipeline.
func New(cfg *config.Config, creds config.Credentials) *Pipeline {
	return &Pipeline{cfg: cfg, creds: creds}
}

// Run executes the full pipeline and returns the final run state. The run is
// bounded by the configured timeout; stages honor context cancellation.
func (p *Pipeline) Run(ctx context.Context, runCfg core.RunConfig) (*core.RunState, error) {
	state := core.NewRunState(runCfg)
	start := time.Now()

	timeout := p.cfg.App.RunTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(ctx, state)
	state.Stats.ProcessingSeconds = time.Since(start).Seconds()
	if err != nil {
		state.Status = core.StatusFailed
		state.AppendLog("pipeline", core.LogError, err.Error())
		return state, err
	}
	if state.HasErrors() {
		state.Status = core.StatusPartial
	} else {
		state.Status = core.StatusSuccess
	}
	return state, nil
}

func (p *Pipeline) run(ctx context.Context, state *core.RunState) error {
	srcs, err := sources.Load(p.cfg.App.SourcesFile)
	if err != nil {
		return err
	}
	if len(srcs) == 0 {
		state.AppendLog("fetch", core.LogInfo, "no enabled sources, publishing empty issue")
		return p.publishEmpty(ctx, state)
	}

	router := p.router
	if router == nil {
		router, err = p.buildRouter(ctx)
		if err != nil {
			return err
		}
	}

	// The index dimension check runs before any LLM spend so a
	// misconfigured run fails in milliseconds, not after the fetch and
	// summarize stages.
	dims := state.Config.EmbeddingDimensions
	if dims <= 0 {
		dims = p.cfg.Embedding.Dimensions
	}
	index, err := vectorindex.Open(p.cfg.Embedding.IndexPath, dims)
	if err != nil {
		return err
	}
	defer index.Close()

	// Collect.
	maxItems := state.Config.MaxItems
	if maxItems <= 0 {
		maxItems = p.cfg.App.MaxItemsPerRun
	}
	collector := fetch.NewCollector(fetch.Options{
		Window:     p.cfg.App.FreshnessWindow,
		MaxItems:   maxItems,
		TargetDate: state.Config.TargetDate,
	})
	raw, err := collector.Collect(ctx, srcs)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}
	state.Raw = raw
	state.AppendLog("fetch", core.LogInfo, fmt.Sprintf("collected %d items", len(raw)))
	if len(raw) == 0 {
		return p.publishEmpty(ctx, state)
	}

	// Relevance. The semantic scorer is an enhancement; a failure to
	// build it leaves keyword-only scoring.
	var semantic *relevance.SemanticScorer
	if s, err := relevance.NewSemanticScorer(ctx, router, dims); err == nil {
		semantic = s
	} else {
		state.AppendLog("relevance", core.LogWarning,
			fmt.Sprintf("semantic scorer unavailable: %v", err))
	}
	scored, err := relevance.NewFilter(p.cfg.Relevance, semantic).Apply(ctx, raw)
	if err != nil {
		return fmt.Errorf("relevance filter failed: %w", err)
	}
	state.Scored = scored
	state.AppendLog("relevance", core.LogInfo, fmt.Sprintf("accepted %d items", len(scored)))
	if len(scored) == 0 {
		return p.publishEmpty(ctx, state)
	}

	// Summarize.
	summarized := summarize.NewStage(router, p.cfg.LLM.SummarizeWorkers).Run(ctx, scored)
	state.Summarized = summarized
	for _, item := range summarized {
		if item.Summary.Model == "fallback" {
			state.Stats.ArticlesFailed++
			state.AppendLog("summarize", core.LogWarning,
				fmt.Sprintf("item %s used fallback summary", item.Item.Item.ID))
		}
	}

	// Consolidate near-duplicates within the run.
	consolidated := dedup.Consolidate(summarized, dedup.Options{
		DuplicateThreshold:     p.cfg.Dedup.DuplicateThreshold,
		ConsolidationThreshold: p.cfg.Dedup.ConsolidationThreshold,
		UpgradeMarker:          p.cfg.Editorial.UpgradeMarker,
	})
	state.AppendLog("dedup", core.LogInfo,
		fmt.Sprintf("%d items consolidated into %d articles", len(summarized), len(consolidated)))

	// Follow-up analysis against history.
	analyzer := contextual.NewAnalyzer(router, index, contextual.Options{
		SimilarityThreshold: p.cfg.Dedup.ContextSimilarity,
		TopK:                p.cfg.Dedup.ContextTopK,
		Dimensions:          dims,
		MaxWorkers:          p.cfg.LLM.MaxConcurrentLLM,
	})
	contextResult, err := analyzer.Run(ctx, consolidated)
	if err != nil {
		return fmt.Errorf("context analysis failed: %w", err)
	}
	state.Consolidated = contextResult.Articles
	for i := range contextResult.Skipped {
		state.AppendLog("context", core.LogInfo,
			fmt.Sprintf("skipped re-published story %s", contextResult.Skipped[i].ID()))
	}
	if len(contextResult.Articles) == 0 {
		return p.publishEmpty(ctx, state)
	}

	// Topic clustering over the embeddings from the follow-up analysis.
	articles, clusters := clustering.NewEngine(router, clustering.Options{
		MinClusterSize:     p.cfg.Clustering.MinClusterSize,
		MaxClusters:        p.cfg.Clustering.MaxClusters,
		CoherenceThreshold: p.cfg.Clustering.CoherenceThreshold,
	}).Cluster(ctx, contextResult.Articles, contextResult.Embeddings)
	state.Clusters = clusters

	// Multi-source priority: one representative per cluster, co-members
	// folded into its sibling pool, singletons backfilled by relevance.
	articles = clustering.Prioritize(articles, clusters, p.cfg.Editorial.MaxArticles)
	state.AppendLog("clustering", core.LogInfo,
		fmt.Sprintf("lineup holds %d articles after prioritization", len(articles)))

	// Citations.
	articles = citations.NewBuilder(router, citations.Options{
		MaxPerArticle: p.cfg.Citations.MaxPerArticle,
		Workers:       p.cfg.LLM.CitationWorkers,
	}).Run(ctx, articles)

	// Editorial assembly.
	issue := editorial.NewAssembler(router, editorial.Options{
		QualityThreshold: p.cfg.Editorial.QualityThreshold,
		MinArticles:      p.cfg.Editorial.MinArticles,
		MaxArticles:      p.cfg.Editorial.MaxArticles,
		UpgradeMarker:    p.cfg.Editorial.UpgradeMarker,
		TOCTitleBudget:   p.cfg.Editorial.TOCTitleBudget,
	}).Assemble(ctx, articles, clusters, p.issueDate(state), state.Config.Edition)
	state.Final = issue.Articles
	state.Stats.ArticlesProcessed = len(issue.Articles)

	calls, tokens := router.Usage().Totals()
	state.Stats.LLMCalls = calls
	state.Stats.TotalTokens = tokens

	return p.publish(ctx, state, issue, contextResult.Relationships)
}

// publishEmpty writes the empty-issue fallback so subscribers still get a
// newsletter on a quiet day.
func (p *Pipeline) publishEmpty(ctx context.Context, state *core.RunState) error {
	state.AppendLog("editorial", core.LogInfo, "no articles available, publishing empty issue")
	issue := editorial.Newsletter{
		Date:    p.issueDate(state),
		Edition: state.Config.Edition,
		Empty:   true,
	}
	return p.publish(ctx, state, issue, nil)
}

func (p *Pipeline) publish(ctx context.Context, state *core.RunState, issue editorial.Newsletter, relationships []core.RelationshipRecord) error {
	doc := render.Render(issue)

	if err := render.Validate(doc); err != nil {
		state.AppendLog("render", core.LogWarning, fmt.Sprintf("rendered document failed re-parse: %v", err))
	}
	if audit := editorial.Audit(issue); audit.Flagged() {
		sections, _ := json.Marshal(audit.Sections)
		state.AppendLog("editorial", core.LogWarning,
			fmt.Sprintf("content audit flagged issue: score=%.2f critical=%t sections=%s",
				audit.Score, audit.Critical, sections))
	}

	if state.Config.DryRun {
		logger.Info("dry run, skipping artifact writes", "bytes", len(doc))
		return nil
	}

	outputDir := state.Config.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Output.Directory
	}
	writer := render.NewWriter(render.Layout{
		DraftDir:  outputDir,
		BackupDir: p.cfg.Output.BackupDir,
		LogsDir:   p.cfg.Output.LogsDir,
	})
	path, err := writer.WriteDraft(doc, issue.Date, issue.Edition)
	if err != nil {
		return err
	}
	state.AppendLog("render", core.LogInfo, "draft written to "+path)

	if _, err := writer.WriteRunLog(state, issue.Date); err != nil {
		state.AppendLog("render", core.LogWarning, fmt.Sprintf("run log write failed: %v", err))
	}

	p.mirrorToStore(ctx, state, issue, doc, relationships)
	return nil
}

// mirrorToStore copies results into Postgres when configured. Store
// failures degrade the run to partial instead of failing it; the draft is
// already on disk.
func (p *Pipeline) mirrorToStore(ctx context.Context, state *core.RunState, issue editorial.Newsletter, doc string, relationships []core.RelationshipRecord) {
	databaseURL := p.creds.DatabaseURL
	if databaseURL == "" {
		databaseURL = p.cfg.Store.DatabaseURL
	}
	if databaseURL == "" {
		return
	}

	store, err := persistence.Open(databaseURL)
	if err != nil {
		state.AppendLog("store", core.LogWarning, fmt.Sprintf("store unavailable: %v", err))
		return
	}
	defer store.Close()

	var multiSourceTopics []string
	for _, c := range issue.Clusters {
		if c.SourceCount >= 2 {
			multiSourceTopics = append(multiSourceTopics, c.Name)
		}
	}
	if err := store.SaveNewsletter(ctx, persistence.NewsletterRecord{
		Date:              issue.Date,
		Edition:           issue.Edition,
		Title:             render.Title(issue.Date),
		Lead:              strings.Join(issue.Lead, "\n\n"),
		ArticlesCount:     len(issue.Articles),
		MultiSourceTopics: multiSourceTopics,
		ContentMD:         doc,
		Metadata:          map[string]any{"run_id": state.RunID},
	}); err != nil {
		state.AppendLog("store", core.LogWarning, err.Error())
	}
	if err := store.SaveRunLog(ctx, state.Snapshot(), issue.Date); err != nil {
		state.AppendLog("store", core.LogWarning, err.Error())
	}
	if err := store.SaveRelationships(ctx, relationships); err != nil {
		state.AppendLog("store", core.LogWarning, err.Error())
	}
	records := make([]core.HistoricalRecord, 0, len(issue.Articles))
	for i := range issue.Articles {
		a := &issue.Articles[i]
		records = append(records, core.HistoricalRecord{
			ArticleID:     a.ID(),
			Title:         a.Title(),
			JapaneseTitle: a.DisplayTitle,
			SummaryText:   joinBullets(a.Bullets()),
			PublishedAt:   a.Item.Item.Item.PublishedAt,
			SourceID:      a.SourceID(),
			SourceURL:     a.URL(),
			Relevance:     a.Item.Item.Relevance,
			IsUpdate:      a.IsUpdate,
			TopicCluster:  a.ClusterID,
			SummaryPoints: a.Bullets(),
		})
	}
	if err := store.SaveContextualArticles(ctx, records); err != nil {
		state.AppendLog("store", core.LogWarning, err.Error())
	}
}

// buildRouter assembles the provider chain: Gemini primary, OpenAI
// fallback. At least one credential must be present.
func (p *Pipeline) buildRouter(ctx context.Context) (*llm.Router, error) {
	var providers []llm.Provider
	if p.creds.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, p.creds.GeminiAPIKey, p.cfg.LLM.GeminiModel, p.cfg.Embedding.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to build gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if p.creds.OpenAIAPIKey != "" {
		openai, err := llm.NewOpenAIProvider(p.creds.OpenAIAPIKey, p.cfg.LLM.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai provider: %w", err)
		}
		providers = append(providers, openai)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no LLM provider configured: set GEMINI_API_KEY or OPENAI_API_KEY")
	}

	return llm.NewRouter(providers, llm.RouterConfig{
		PrimaryAttempts: p.cfg.LLM.PrimaryAttempts,
		BackoffBase:     p.cfg.LLM.BackoffBase,
		BackoffMax:      p.cfg.LLM.BackoffMax,
		CallTimeout:     p.cfg.LLM.CallTimeout,
	})
}

func (p *Pipeline) issueDate(state *core.RunState) time.Time {
	if !state.Config.TargetDate.IsZero() {
		return state.Config.TargetDate
	}
	return time.Now()
}

func joinBullets(bullets []string) string {
	return strings.Join(bullets, " ")
}
