package citations

import (
	"context"
	"testing"

	"github.com/0xlawrence/ainews-app-sub000/internal/clustering"
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Path/", "https://example.com/Path"},
		{"https://example.com/a?utm_source=x&utm_medium=y", "https://example.com/a"},
		{"https://example.com/a?id=42&utm_source=x", "https://example.com/a?id=42"},
		{"https://example.com/post?p=7#section", "https://example.com/post?p=7"},
		{"https://example.com/b?article_id=9", "https://example.com/b?article_id=9"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if err != nil {
			t.Errorf("NormalizeURL(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM/Path/?id=1&utm_source=x#frag",
		"https://example.com/simple",
	}
	for _, in := range inputs {
		once, err := NormalizeURL(in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): %v", in, err)
		}
		twice, err := NormalizeURL(once)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	if _, err := NormalizeURL("/relative/path"); err == nil {
		t.Error("relative URL must be rejected")
	}
}

func citArticle(id, source, url string, group ...core.GroupSource) core.ProcessedArticle {
	return core.ProcessedArticle{
		Item: core.SummarizedItem{
			Item: core.ScoredItem{
				Item: core.RawItem{ID: id, SourceID: source, Title: "OpenAIがGPT-5を発表", URL: url},
			},
			Summary: core.Summary{Bullets: []string{
				"OpenAIは2025年8月に新モデルGPT-5を発表しました。",
				"推論性能が大幅に向上しています。",
				"提供開始は9月の予定です。",
			}},
		},
		GroupSources: group,
	}
}

type fixedLLM struct{ text string }

func (f *fixedLLM) GenerateText(context.Context, string, int, float32) (string, error) {
	return f.text, nil
}

func TestRunOwnSourceFirst(t *testing.T) {
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5/",
		core.GroupSource{
			SourceID:   "techcrunch_ai",
			SourceName: "TechCrunch",
			Title:      "OpenAI launches GPT-5",
			URL:        "https://techcrunch.com/gpt-5?utm_source=rss",
			Bullets:    []string{"OpenAIがGPT-5を発表したと報じられています。"},
		},
	)
	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})

	cites := out[0].Citations
	if len(cites) != 2 {
		t.Fatalf("got %d citations, want 2", len(cites))
	}
	if cites[0].SourceName != "OpenAI News" {
		t.Errorf("own source must come first, got %s", cites[0].SourceName)
	}
	if cites[0].URL != "https://openai.com/news/gpt-5" {
		t.Errorf("own URL not normalized: %s", cites[0].URL)
	}
	if cites[1].URL != "https://techcrunch.com/gpt-5" {
		t.Errorf("sibling URL not normalized: %s", cites[1].URL)
	}
	if cites[0].Summary == "" {
		t.Error("own citation has no summary")
	}
}

func TestRunSkipsDuplicateSiblingSources(t *testing.T) {
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5",
		core.GroupSource{SourceID: "techcrunch_ai", SourceName: "TechCrunch",
			Title: "GPT-5 launch", URL: "https://techcrunch.com/one",
			Bullets: []string{"OpenAIがGPT-5を発表しました。"}},
		core.GroupSource{SourceID: "techcrunch_ai", SourceName: "TechCrunch",
			Title: "GPT-5 follow-up", URL: "https://techcrunch.com/two",
			Bullets: []string{"OpenAIがGPT-5の詳細を公開しました。"}},
	)
	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})
	if len(out[0].Citations) != 2 {
		t.Fatalf("same source cited twice: %d citations", len(out[0].Citations))
	}
}

func TestRunTopicConflictGate(t *testing.T) {
	// The article's bullets carry a product tag; a policy sibling hits a
	// mutually exclusive pair and must not be cited.
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5",
		core.GroupSource{SourceID: "ainow", SourceName: "AINOW",
			Title: "政府がAI規制の新ガイドラインを検討", URL: "https://ainow.jp/policy",
			Bullets: []string{"政府が新たな規制とガイドラインの導入を検討しています。"}},
		core.GroupSource{SourceID: "techcrunch_ai", SourceName: "TechCrunch",
			Title: "GPT-5の新機能を解説", URL: "https://techcrunch.com/gpt-5-features",
			Bullets: []string{"GPT-5の新機能と提供開始時期を解説しています。"}},
	)
	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})

	if len(out[0].Citations) != 2 {
		t.Fatalf("got %d citations, want own + on-topic sibling", len(out[0].Citations))
	}
	for _, c := range out[0].Citations {
		if c.SourceName == "AINOW" {
			t.Error("conflicting-domain sibling was cited")
		}
	}
}

func TestRunGlobalDedupKeepsOwnSource(t *testing.T) {
	shared := core.GroupSource{
		SourceID: "techcrunch_ai", SourceName: "TechCrunch",
		Title: "OpenAI launches GPT-5", URL: "https://techcrunch.com/gpt-5",
		Bullets: []string{"OpenAIがGPT-5を発表したと報じられています。"},
	}
	a1 := citArticle("a", "openai_news", "https://openai.com/news/gpt-5", shared)
	a2 := citArticle("b", "itmedia_ai", "https://itmedia.co.jp/gpt-5", shared)

	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{a1, a2})

	techCrunchCount := 0
	for _, art := range out {
		if len(art.Citations) < 1 {
			t.Fatalf("article %s lost all citations", art.ID())
		}
		for _, c := range art.Citations {
			if c.URL == "https://techcrunch.com/gpt-5" {
				techCrunchCount++
			}
		}
	}
	if techCrunchCount != 1 {
		t.Errorf("shared URL cited %d times across batch, want 1", techCrunchCount)
	}
}

func TestRunClusterSiblingsSpanSources(t *testing.T) {
	// Three outlets covering one story end up in one cluster; after the
	// lineup pass the surviving article must cite more than one of them.
	articles := []core.ProcessedArticle{
		citArticle("a", "openai_news", "https://openai.com/news/gpt-5"),
		citArticle("b", "techcrunch_ai", "https://techcrunch.com/gpt-5"),
		citArticle("c", "the_decoder", "https://the-decoder.com/gpt-5"),
	}
	for i := range articles {
		articles[i].ClusterID = "c1"
	}
	clusters := []core.TopicCluster{{
		ID: "c1", RepresentativeID: "a",
		MemberIDs: []string{"a", "b", "c"}, Importance: 0.8,
	}}
	lineup := clustering.Prioritize(articles, clusters, 0)

	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), lineup)
	if len(out) != 1 {
		t.Fatalf("lineup kept %d articles, want 1", len(out))
	}

	srcs := make(map[string]bool)
	for _, c := range out[0].Citations {
		srcs[c.SourceName] = true
	}
	if len(srcs) < 2 {
		t.Errorf("representative cites %d distinct sources, want at least 2: %v",
			len(srcs), out[0].Citations)
	}
}

func TestRunSiblingSummaryFromLLM(t *testing.T) {
	good := "OpenAIは2025年8月に新モデルGPT-5を発表し、推論性能の大幅な向上と9月からの段階的な提供開始を明らかにしました。"
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5",
		core.GroupSource{SourceID: "techcrunch_ai", SourceName: "TechCrunch",
			Title: "OpenAI launches GPT-5", URL: "https://techcrunch.com/gpt-5",
			Bullets: []string{"OpenAIがGPT-5を発表したと報じられています。"}},
	)

	b := NewBuilder(&fixedLLM{text: good}, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})
	if len(out[0].Citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(out[0].Citations))
	}
	if out[0].Citations[1].Summary != good {
		t.Errorf("sibling summary not generated: %q", out[0].Citations[1].Summary)
	}
}

func TestRunRebalancesSharedSiblings(t *testing.T) {
	shared := core.GroupSource{
		SourceID: "techcrunch_ai", SourceName: "TechCrunch",
		Title: "OpenAI launches GPT-5", URL: "https://techcrunch.com/gpt-5",
		Bullets: []string{"OpenAIがGPT-5を発表したと報じられています。"},
	}
	uniq := core.GroupSource{
		SourceID: "the_decoder", SourceName: "The Decoder",
		Title: "GPT-5 in depth", URL: "https://the-decoder.com/gpt-5",
		Bullets: []string{"GPT-5の性能を検証した記事です。"},
	}
	a1 := citArticle("a", "openai_news", "https://openai.com/news/gpt-5", uniq, shared)
	a2 := citArticle("b", "itmedia_ai", "https://itmedia.co.jp/gpt-5", shared)

	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{a1, a2})

	// The shared sibling goes to the lighter article, not the first builder.
	for _, art := range out {
		if len(art.Citations) != 2 {
			t.Errorf("article %s has %d citations, want 2", art.ID(), len(art.Citations))
		}
	}
	for _, c := range out[0].Citations {
		if c.URL == shared.URL {
			t.Error("shared citation stayed with the heavier article")
		}
	}
	found := false
	for _, c := range out[1].Citations {
		if c.URL == shared.URL {
			found = true
		}
	}
	if !found {
		t.Error("shared citation vanished from the batch")
	}
}

func TestRunSynthesizesOwnFallback(t *testing.T) {
	article := citArticle("a", "openai_news", "/relative/path")

	b := NewBuilder(nil, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})

	cites := out[0].Citations
	if len(cites) != 1 {
		t.Fatalf("got %d citations, want the synthesized own-source one", len(cites))
	}
	if cites[0].SourceName != "OpenAI News" {
		t.Errorf("fallback source name: %s", cites[0].SourceName)
	}
	if cites[0].Summary == "" {
		t.Error("fallback citation has no summary")
	}
}

func TestOwnCitationUsesValidLLMSummary(t *testing.T) {
	good := "OpenAIは2025年8月に新モデルGPT-5を発表し、推論性能の大幅な向上と9月からの段階的な提供開始を明らかにしました。"
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5")

	b := NewBuilder(&fixedLLM{text: good}, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})
	if out[0].Citations[0].Summary != good {
		t.Errorf("valid LLM summary not used: %q", out[0].Citations[0].Summary)
	}
}

func TestOwnCitationRejectsBadLLMSummary(t *testing.T) {
	article := citArticle("a", "openai_news", "https://openai.com/news/gpt-5")

	b := NewBuilder(&fixedLLM{text: "短い。"}, Options{})
	out := b.Run(context.Background(), []core.ProcessedArticle{article})
	if out[0].Citations[0].Summary == "短い。" {
		t.Error("out-of-band LLM summary must fall back to the first bullet")
	}
}
