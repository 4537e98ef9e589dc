package contextual

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/vectorindex"
)

// fakeLLM returns canned embeddings keyed by substring and a fixed verdict.
type fakeLLM struct {
	vectors map[string][]float64
	verdict string
	summary string
}

func (f *fakeLLM) Embed(_ context.Context, text string, _ int) ([]float64, error) {
	for key, v := range f.vectors {
		if strings.Contains(text, key) {
			return v, nil
		}
	}
	return []float64{0, 0, 1}, nil
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string, _ int, _ float32) (string, error) {
	if strings.Contains(prompt, "続報かどうか") {
		return f.verdict, nil
	}
	return f.summary, nil
}

func article(id, title string) core.ProcessedArticle {
	return core.ProcessedArticle{
		Item: core.SummarizedItem{
			Item: core.ScoredItem{
				Item: core.RawItem{
					ID: id, SourceID: "openai_news", Title: title,
					URL: "https://example.com/" + id, PublishedAt: time.Now(),
				},
				Relevance: 0.8,
			},
			Summary: core.Summary{Bullets: []string{
				title + "が発表されました。",
				"提供は来月開始の予定です。",
				"料金は据え置きとなります。",
			}},
		},
	}
}

func openIndex(t *testing.T) *vectorindex.Index {
	t.Helper()
	idx, err := vectorindex.Open(filepath.Join(t.TempDir(), "history.db"), 3)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func seedHistory(t *testing.T, idx *vectorindex.Index, id string, vector []float64) {
	t.Helper()
	err := idx.Append(core.HistoricalRecord{
		ArticleID:   id,
		Title:       "過去の記事 " + id,
		SummaryText: "過去の要約です。",
		PublishedAt: time.Now().Add(-48 * time.Hour),
	}, vector)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("flush seed: %v", err)
	}
}

func TestRunNoHistoryKeepsArticle(t *testing.T) {
	idx := openIndex(t)
	llm := &fakeLLM{vectors: map[string][]float64{}}
	a := NewAnalyzer(llm, idx, Options{Dimensions: 3})

	result, err := a.Run(context.Background(), []core.ProcessedArticle{article("n1", "新しい話題")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Articles) != 1 || len(result.Skipped) != 0 {
		t.Fatalf("kept=%d skipped=%d", len(result.Articles), len(result.Skipped))
	}
	got := result.Articles[0]
	if got.Context == nil || got.Context.Decision != core.DecisionKeep {
		t.Errorf("context verdict: %+v", got.Context)
	}
	// The article itself lands in the index for future runs.
	if idx.Size() != 1 {
		t.Errorf("index size = %d, want 1", idx.Size())
	}
	if _, ok := result.Embeddings["n1"]; !ok {
		t.Error("embedding for kept article not exposed for reuse")
	}
}

func TestRunSkipsRepublishedStory(t *testing.T) {
	idx := openIndex(t)
	seedHistory(t, idx, "old1", []float64{1, 0, 0})

	llm := &fakeLLM{vectors: map[string][]float64{"既報の話": {1, 0, 0}}}
	a := NewAnalyzer(llm, idx, Options{Dimensions: 3, SimilarityThreshold: 0.7})

	result, err := a.Run(context.Background(), []core.ProcessedArticle{article("n1", "既報の話")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Skipped) != 1 || len(result.Articles) != 0 {
		t.Fatalf("kept=%d skipped=%d", len(result.Articles), len(result.Skipped))
	}
	skipped := result.Skipped[0]
	if skipped.Context.Decision != core.DecisionSkip {
		t.Errorf("decision = %s", skipped.Context.Decision)
	}
	if !skipped.Duplicate.IsDuplicate || skipped.Duplicate.Method != core.MethodEmbeddingSimilarity {
		t.Errorf("duplicate verdict: %+v", skipped.Duplicate)
	}
	if skipped.Duplicate.DuplicateOfID != "old1" {
		t.Errorf("duplicate of %s, want old1", skipped.Duplicate.DuplicateOfID)
	}
	// Skipped stories stay out of the index.
	if idx.Size() != 1 {
		t.Errorf("index size = %d, want 1", idx.Size())
	}
}

func TestRunUpdateVerdict(t *testing.T) {
	idx := openIndex(t)
	seedHistory(t, idx, "old1", []float64{1, 0, 0})

	longBullet := strings.Repeat("続報の要点です。", 15) // Between 100 and 250 runes
	llm := &fakeLLM{
		vectors: map[string][]float64{"続報です": {0.9, 0.3, 0}},
		verdict: "UPDATE",
		summary: longBullet + "\n" + longBullet + "\n" + longBullet,
	}
	a := NewAnalyzer(llm, idx, Options{Dimensions: 3, SimilarityThreshold: 0.7})

	result, err := a.Run(context.Background(), []core.ProcessedArticle{article("n1", "続報です")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("kept %d articles", len(result.Articles))
	}
	got := result.Articles[0]
	if !got.IsUpdate {
		t.Error("IsUpdate not set on UPDATE verdict")
	}
	if got.Context.Decision != core.DecisionUpdate {
		t.Errorf("decision = %s", got.Context.Decision)
	}
	if len(got.Bullets()) != 3 || got.Bullets()[0] != longBullet {
		t.Error("contextual re-summary not applied")
	}
	if len(result.Relationships) != 1 || result.Relationships[0].Kind != core.RelationshipUpdate {
		t.Errorf("relationships: %+v", result.Relationships)
	}
	if result.Relationships[0].ParentArticleID != "old1" || result.Relationships[0].ChildArticleID != "n1" {
		t.Errorf("relationship endpoints: %+v", result.Relationships[0])
	}
}

func TestRunUpdateKeepsBulletsOnBadResummary(t *testing.T) {
	idx := openIndex(t)
	seedHistory(t, idx, "old1", []float64{1, 0, 0})

	llm := &fakeLLM{
		vectors: map[string][]float64{"続報です": {0.9, 0.3, 0}},
		verdict: "UPDATE",
		summary: "短すぎる。", // Fails the 100-250 rune shape
	}
	a := NewAnalyzer(llm, idx, Options{Dimensions: 3, SimilarityThreshold: 0.7})

	original := article("n1", "続報です")
	want := original.Bullets()[0]
	result, err := a.Run(context.Background(), []core.ProcessedArticle{original})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.Articles[0].Bullets()[0]; got != want {
		t.Errorf("original bullets must survive a malformed re-summary, got %q", got)
	}
}

func TestRunRelatedVerdict(t *testing.T) {
	idx := openIndex(t)
	seedHistory(t, idx, "old1", []float64{1, 0, 0})

	llm := &fakeLLM{
		vectors: map[string][]float64{"関連記事": {0.9, 0.3, 0}},
		verdict: "RELATED",
	}
	a := NewAnalyzer(llm, idx, Options{Dimensions: 3, SimilarityThreshold: 0.7})

	result, err := a.Run(context.Background(), []core.ProcessedArticle{article("n1", "関連記事")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := result.Articles[0]
	if got.IsUpdate {
		t.Error("RELATED must not mark an update")
	}
	if len(got.RelatedIDs) != 1 || got.RelatedIDs[0] != "old1" {
		t.Errorf("related ids: %v", got.RelatedIDs)
	}
	if len(result.Relationships) != 1 || result.Relationships[0].Kind != core.RelationshipRelated {
		t.Errorf("relationships: %+v", result.Relationships)
	}
}

func TestAdaptiveWorkers(t *testing.T) {
	tests := []struct {
		n, max, want int
	}{
		{0, 8, 1},
		{1, 8, 1},
		{4, 8, 1},
		{5, 8, 2},
		{40, 8, 8},
		{12, 2, 2},
	}
	for _, tt := range tests {
		if got := adaptiveWorkers(tt.n, tt.max); got != tt.want {
			t.Errorf("adaptiveWorkers(%d, %d) = %d, want %d", tt.n, tt.max, got, tt.want)
		}
	}
}
