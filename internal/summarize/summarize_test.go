package summarize

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
)

var goodBullets = []string{
	"OpenAIは2025年8月に新しい大規模言語モデルGPT-5を正式に発表しました。",
	"推論性能は前世代比で約40パーセント向上したと同社は説明しています。",
	"企業向けAPIは2025年9月から段階的に提供が開始される予定です。",
}

var badBullets = []string{
	"この発表は重要。",
	"その内容は後日。",
	"これはすごい。",
}

type fakeSummarizer struct {
	calls   atomic.Int64
	results []core.Summary
	err     error
}

func (f *fakeSummarizer) Summarize(context.Context, string, string, string, string) (core.Summary, error) {
	n := int(f.calls.Add(1)) - 1
	if f.err != nil {
		return core.Summary{}, f.err
	}
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	return f.results[n], nil
}

func scoredItem(id, title, body string) core.ScoredItem {
	return core.ScoredItem{
		Item: core.RawItem{ID: id, SourceID: "src", Title: title, Body: body, URL: "https://example.com/" + id},
	}
}

func TestRunGoodSummaryNoRetry(t *testing.T) {
	f := &fakeSummarizer{results: []core.Summary{
		{Bullets: goodBullets, Confidence: 0.9, Reliability: core.ReliabilityHigh, Model: "gemini"},
	}}
	s := NewStage(f, 2)

	out := s.Run(context.Background(), []core.ScoredItem{scoredItem("a", "タイトル", "本文")})
	if len(out) != 1 {
		t.Fatalf("got %d items, want 1", len(out))
	}
	if out[0].Retries != 0 {
		t.Errorf("retries = %d, want 0", out[0].Retries)
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", f.calls.Load())
	}
	if out[0].Summary.Model != "gemini" {
		t.Errorf("model = %s", out[0].Summary.Model)
	}
}

func TestRunQualityGateRetryKeepsBetter(t *testing.T) {
	f := &fakeSummarizer{results: []core.Summary{
		{Bullets: badBullets, Confidence: 0.5, Model: "gemini"},
		{Bullets: goodBullets, Confidence: 0.9, Model: "gemini"},
	}}
	s := NewStage(f, 1)

	out := s.Run(context.Background(), []core.ScoredItem{scoredItem("a", "タイトル", "本文")})
	if out[0].Retries != 1 {
		t.Fatalf("retries = %d, want 1", out[0].Retries)
	}
	if f.calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", f.calls.Load())
	}
	if out[0].Summary.Bullets[0] != goodBullets[0] {
		t.Error("retry result with higher score was not kept")
	}
}

func TestRunRetryKeepsFirstWhenSecondWorse(t *testing.T) {
	worse := []string{"短い。", "みじかい。", "みじか。"}
	f := &fakeSummarizer{results: []core.Summary{
		{Bullets: badBullets, Confidence: 0.5, Model: "gemini"},
		{Bullets: worse, Confidence: 0.2, Model: "gemini"},
	}}
	s := NewStage(f, 1)

	out := s.Run(context.Background(), []core.ScoredItem{scoredItem("a", "タイトル", "本文")})
	if out[0].Summary.Bullets[0] != badBullets[0] {
		t.Error("first result should win a tie-or-worse retry")
	}
}

func TestRunFallbackOnTotalFailure(t *testing.T) {
	f := &fakeSummarizer{err: errors.New("all providers failed")}
	s := NewStage(f, 1)

	out := s.Run(context.Background(), []core.ScoredItem{
		scoredItem("a", "OpenAIの発表", "重要な本文がここにあります"),
	})
	sum := out[0].Summary
	if sum.Model != "fallback" {
		t.Fatalf("model = %s, want fallback", sum.Model)
	}
	if sum.Confidence != 0 || sum.Reliability != core.ReliabilityLow {
		t.Errorf("fallback metadata wrong: %+v", sum)
	}
	if len(sum.Bullets) != 3 {
		t.Fatalf("fallback bullets = %d, want 3", len(sum.Bullets))
	}
	if sum.Bullets[0] == "" {
		t.Error("fallback must carry the original title")
	}
}

func TestRunFallbackWithEmptyBodyStillThreeBullets(t *testing.T) {
	f := &fakeSummarizer{err: errors.New("all providers failed")}
	s := NewStage(f, 1)

	// Feed items carry only link and title for some sources.
	out := s.Run(context.Background(), []core.ScoredItem{
		scoredItem("a", "OpenAIの発表", ""),
	})
	sum := out[0].Summary
	if len(sum.Bullets) != 3 {
		t.Fatalf("fallback bullets = %d, want 3", len(sum.Bullets))
	}
	if !strings.Contains(sum.Bullets[1], "https://example.com/a") {
		t.Errorf("bodyless fallback must point at the source article: %q", sum.Bullets[1])
	}
}

func TestRunRepairsMissingTerminals(t *testing.T) {
	unterminated := []string{
		"OpenAIは2025年8月に新しい大規模言語モデルGPT-5を正式に発表",
		"推論性能は前世代比で約40パーセント向上したと同社は説明しています。",
		"企業向けAPIは2025年9月から段階的に提供が開始される予定です。",
	}
	f := &fakeSummarizer{results: []core.Summary{
		{Bullets: unterminated, Confidence: 0.9, Model: "gemini"},
	}}
	s := NewStage(f, 1)

	out := s.Run(context.Background(), []core.ScoredItem{scoredItem("a", "タイトル", "本文")})
	got := out[0].Summary.Bullets[0]
	if !strings.HasSuffix(got, "。") {
		t.Errorf("unterminated bullet not repaired: %q", got)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	f := &fakeSummarizer{results: []core.Summary{
		{Bullets: goodBullets, Confidence: 0.9, Model: "gemini"},
	}}
	s := NewStage(f, 4)

	items := []core.ScoredItem{
		scoredItem("a", "一つ目", "本文"),
		scoredItem("b", "二つ目", "本文"),
		scoredItem("c", "三つ目", "本文"),
	}
	out := s.Run(context.Background(), items)
	if len(out) != 3 {
		t.Fatalf("got %d items, want 3", len(out))
	}
	for i, want := range []string{"a", "b", "c"} {
		if out[i].Item.Item.ID != want {
			t.Errorf("position %d holds %s, want %s", i, out[i].Item.Item.ID, want)
		}
	}
}
