package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

func rssFeed(now time.Time, entries ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>test</title>`)
	for i, e := range entries {
		fmt.Fprintf(&b,
			`<item><title>%s</title><link>%s</link><description>本文です。</description><pubDate>%s</pubDate></item>`,
			e[0], e[1], now.Add(-time.Duration(i)*time.Hour).Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestCollectFeed(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(now,
			[2]string{"OpenAIがGPT-5を発表", "https://example.com/a"},
			[2]string{"Anthropicの新機能", "https://example.com/b"},
		))
	}))
	defer srv.Close()

	c := NewCollector(Options{Window: 24 * time.Hour, MaxItems: 30, Now: func() time.Time { return now }})
	items, err := c.Collect(context.Background(), []sources.Source{
		{ID: "test_feed", Kind: core.SourceKindFeed, Location: srv.URL},
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].SourceID != "test_feed" || items[0].SourceKind != core.SourceKindFeed {
		t.Errorf("item source metadata wrong: %+v", items[0])
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Error("item ids must be distinct and non-empty")
	}
	if items[0].Body != "本文です。" {
		t.Errorf("body not extracted: %q", items[0].Body)
	}
}

func TestCollectFreshnessWindow(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>`)
		fmt.Fprintf(&b, `<item><title>新着</title><link>https://example.com/new</link><pubDate>%s</pubDate></item>`,
			now.Add(-time.Hour).Format(time.RFC1123Z))
		fmt.Fprintf(&b, `<item><title>古い記事</title><link>https://example.com/old</link><pubDate>%s</pubDate></item>`,
			now.Add(-72*time.Hour).Format(time.RFC1123Z))
		b.WriteString(`</channel></rss>`)
		fmt.Fprint(w, b.String())
	}))
	defer srv.Close()

	c := NewCollector(Options{Window: 24 * time.Hour, Now: func() time.Time { return now }})
	items, err := c.Collect(context.Background(), []sources.Source{
		{ID: "s", Kind: core.SourceKindFeed, Location: srv.URL},
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 1 || items[0].Title != "新着" {
		t.Fatalf("freshness window not applied: %+v", items)
	}
}

func TestCollectFailureIsolation(t *testing.T) {
	now := time.Now()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(now, [2]string{"記事", "https://example.com/x"}))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewCollector(Options{Window: 24 * time.Hour, Now: func() time.Time { return now }})
	items, err := c.Collect(context.Background(), []sources.Source{
		{ID: "good", Kind: core.SourceKindFeed, Location: good.URL},
		{ID: "bad", Kind: core.SourceKindFeed, Location: bad.URL},
	})
	if err != nil {
		t.Fatalf("one failing source must not abort the run: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestCollectAllSourcesFailed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewCollector(Options{})
	_, err := c.Collect(context.Background(), []sources.Source{
		{ID: "bad", Kind: core.SourceKindFeed, Location: bad.URL},
	})
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestConditionalFetchETag(t *testing.T) {
	now := time.Now()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, rssFeed(now, [2]string{"記事", "https://example.com/x"}))
	}))
	defer srv.Close()

	c := NewCollector(Options{Window: 24 * time.Hour, Now: func() time.Time { return now }})
	src := []sources.Source{{ID: "s", Kind: core.SourceKindFeed, Location: srv.URL}}

	first, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first fetch got %d items", len(first))
	}

	second, err := c.Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("304 response must yield no items, got %d", len(second))
	}
	if requests != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}

func TestItemIDStable(t *testing.T) {
	a := ItemID("src", "https://example.com/x")
	b := ItemID("src", "https://example.com/x")
	c := ItemID("other", "https://example.com/x")
	if a != b {
		t.Error("same input must hash to same id")
	}
	if a == c {
		t.Error("different sources must hash to different ids")
	}
	if len(a) != 16 {
		t.Errorf("id length %d, want 16", len(a))
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>こんにちは <b>世界</b></p>", "こんにちは 世界"},
		{"<div><script>alert(1)</script>本文</div>", "本文"},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractText(tt.in); got != tt.want {
			t.Errorf("ExtractText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectVideoOEmbedEnrichment(t *testing.T) {
	now := time.Now()

	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"新モデル解説動画","author_name":"OpenAI"}`)
	}))
	defer oembed.Close()
	old := oembedEndpoint
	oembedEndpoint = oembed.URL
	defer func() { oembedEndpoint = old }()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w,
			`<?xml version="1.0"?><rss version="2.0"><channel><title>ch</title>`+
				`<item><title>動画タイトル</title><link>https://youtube.com/watch?v=abc</link><pubDate>%s</pubDate></item>`+
				`</channel></rss>`, now.Format(time.RFC1123Z))
	}))
	defer feed.Close()

	c := NewCollector(Options{Window: 24 * time.Hour, Now: func() time.Time { return now }})
	items, err := c.Collect(context.Background(), []sources.Source{
		{ID: "yt", Kind: core.SourceKindVideo, Location: feed.URL},
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].SourceKind != core.SourceKindVideo {
		t.Errorf("kind = %s, want video", items[0].SourceKind)
	}
	if !strings.Contains(items[0].Body, "OpenAI") {
		t.Errorf("body not enriched from oembed: %q", items[0].Body)
	}
}
