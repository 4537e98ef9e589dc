package vectorindex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
)

func testRecord(id string) core.HistoricalRecord {
	return core.HistoricalRecord{
		ArticleID:   id,
		Title:       "記事 " + id,
		SummaryText: "要約テキスト",
		PublishedAt: time.Now().Add(-24 * time.Hour),
		SourceID:    "openai_news",
		SourceURL:   "https://example.com/" + id,
		Relevance:   0.8,
		SummaryPoints: []string{
			"要点その1です。",
			"要点その2です。",
			"要点その3です。",
		},
	}
}

func TestAppendSearchFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	idx, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Append(testRecord("a"), []float64{1, 0, 0}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := idx.Append(testRecord("b"), []float64{0, 1, 0}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Buffered records are searchable before the flush.
	matches, err := idx.Search([]float64{1, 0, 0}, 3, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.ArticleID != "a" {
		t.Fatalf("pre-flush search: %+v", matches)
	}

	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	idx.Close()

	// A reopened index serves the persisted records.
	idx2, err := Open(path, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()
	if idx2.Size() != 2 {
		t.Fatalf("reopened size = %d, want 2", idx2.Size())
	}
	matches, err = idx2.Search([]float64{0.9, 0.1, 0}, 1, 0.5)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.ArticleID != "a" {
		t.Fatalf("post-reopen search: %+v", matches)
	}
	if len(matches[0].Record.SummaryPoints) != 3 {
		t.Errorf("summary points lost in round trip: %+v", matches[0].Record.SummaryPoints)
	}
}

func TestDimensionMismatchFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	idx, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.Close()

	if _, err := Open(path, 768); err == nil {
		t.Fatal("reopening with a different dimension must fail")
	}
}

func TestAppendWrongDimension(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "history.db"), 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Append(testRecord("a"), []float64{1, 0}); err == nil {
		t.Fatal("appending a short vector must fail")
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("Flush of empty buffer: %v", err)
	}
}

func TestSearchThresholdAndTopK(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "history.db"), 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	vectors := [][]float64{{1, 0}, {0.9, 0.1}, {0.5, 0.5}, {0, 1}}
	for i, v := range vectors {
		rec := testRecord(string(rune('a' + i)))
		if err := idx.Append(rec, v); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	matches, err := idx.Search([]float64{1, 0}, 2, 0.7)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Error("matches not ordered by similarity")
	}
}
