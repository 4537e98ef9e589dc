package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/editorial"
)

func testIssue() editorial.Newsletter {
	article := core.ProcessedArticle{
		Item: core.SummarizedItem{
			Item: core.ScoredItem{
				Item: core.RawItem{ID: "a", SourceID: "openai_news", Title: "original", URL: "https://openai.com/a"},
			},
			Summary: core.Summary{Bullets: []string{
				"OpenAIは新モデルを発表しました。",
				"提供は来月開始の予定です。",
				"料金は据え置きです。",
			}},
		},
		DisplayTitle: "OpenAIがGPT-5を発表",
		ClusterID:    "c1",
		Citations: []core.Citation{{
			SourceName:    "OpenAI News",
			URL:           "https://openai.com/a",
			OriginalTitle: "original",
			Summary:       "OpenAIが新モデルを発表したという公式発表の記事です。",
		}},
	}
	return editorial.Newsletter{
		Date:     time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Edition:  "daily",
		Lead:     []string{"本日はOpenAIの話題を中心にまとめました。"},
		TOC:      []string{"OpenAIがGPT-5を発表"},
		Articles: []core.ProcessedArticle{article},
		Clusters: []core.TopicCluster{{ID: "c1", Name: "OpenAI関連の動向"}},
	}
}

func TestRenderFullIssue(t *testing.T) {
	doc := Render(testIssue())

	for _, want := range []string{
		"# 2026年08月24日 AIニュースまとめ",
		"## 目次",
		"1. OpenAIがGPT-5を発表",
		"## OpenAI関連の動向",
		"### OpenAIがGPT-5を発表",
		"- OpenAIは新モデルを発表しました。",
		"[OpenAI News](https://openai.com/a)",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered document missing %q", want)
		}
	}
	if err := Validate(doc); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestRenderEmptyIssue(t *testing.T) {
	issue := editorial.Newsletter{
		Date:    time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Edition: "daily",
		Empty:   true,
	}
	doc := Render(issue)
	if !strings.Contains(doc, "本日の注目ニュースはありませんでした。") {
		t.Errorf("empty issue missing fallback body: %q", doc)
	}
	if err := Validate(doc); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsEmptyDocument(t *testing.T) {
	if err := Validate("   \n"); err == nil {
		t.Error("blank document must fail validation")
	}
}

func TestWriteDraftLayout(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(Layout{
		DraftDir:  filepath.Join(root, "drafts"),
		BackupDir: filepath.Join(root, "backups"),
		LogsDir:   filepath.Join(root, "logs"),
	})

	doc := Render(testIssue())
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	path, err := w.WriteDraft(doc, date, "daily")
	if err != nil {
		t.Fatalf("WriteDraft: %v", err)
	}

	wantDir := filepath.Join(root, "drafts", "2026", "08")
	if filepath.Dir(path) != wantDir {
		t.Errorf("draft dir = %s, want %s", filepath.Dir(path), wantDir)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "2026-08-24_") || !strings.HasSuffix(name, "_daily_newsletter.md") {
		t.Errorf("draft name = %s, want 2026-08-24_HHMM_daily_newsletter.md", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read draft: %v", err)
	}
	if string(data) != doc {
		t.Error("draft content mismatch")
	}

	backups, err := filepath.Glob(filepath.Join(root, "backups", "2026-08-24", "*_newsletter.md"))
	if err != nil || len(backups) != 1 {
		t.Errorf("expected one backup, got %v (%v)", backups, err)
	}
}

func TestWriteDraftRejectsInvalid(t *testing.T) {
	w := NewWriter(Layout{DraftDir: t.TempDir()})
	if _, err := w.WriteDraft("", time.Now(), "daily"); err == nil {
		t.Error("invalid draft must not be written")
	}
}

func TestWriteRunLog(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(Layout{LogsDir: root})

	state := core.NewRunState(core.RunConfig{Edition: "daily"})
	state.AppendLog("fetch", core.LogInfo, "collected 10 items")

	path, err := w.WriteRunLog(state, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WriteRunLog: %v", err)
	}
	if want := filepath.Join(root, "newsletter_2026-08-24.json"); path != want {
		t.Errorf("log path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "collected 10 items") {
		t.Error("run log missing log entry")
	}
	if !strings.Contains(string(data), state.RunID) {
		t.Error("run log missing run id")
	}
}
