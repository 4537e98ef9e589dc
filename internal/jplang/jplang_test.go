package jplang

import (
	"strings"
	"testing"
)

func TestHasSentenceTerminal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"OpenAIは新モデルを発表しました。", true},
		{"企業向けAPIは9月に提供予定", true},
		{"提供開始は来月となる見込み", true},
		{"OpenAIが", false},
		{"新モデルの発表が。", false},
		{"", false},
	}
	for _, c := range cases {
		if got := HasSentenceTerminal(c.text); got != c.want {
			t.Errorf("HasSentenceTerminal(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestEndsWithParticle(t *testing.T) {
	if !EndsWithParticle("OpenAIが") {
		t.Error("dangling が must be detected")
	}
	if EndsWithParticle("提供を開始しました") {
		t.Error("grammatical ending misdetected as particle")
	}
}

func TestStripTrailingParticles(t *testing.T) {
	if got := StripTrailingParticles("OpenAIが"); got != "OpenAI" {
		t.Errorf("got %q, want OpenAI", got)
	}
	if got := StripTrailingParticles("新モデルの発表。"); got != "新モデルの発表" {
		t.Errorf("got %q, want 新モデルの発表", got)
	}
}

func TestEnsureTerminal(t *testing.T) {
	if got := EnsureTerminal("推論性能が40%向上"); got != "推論性能が40%向上です。" {
		t.Errorf("got %q", got)
	}
	if got := EnsureTerminal("提供を開始しました"); got != "提供を開始しました。" {
		t.Errorf("got %q", got)
	}
	if got := EnsureTerminal("提供を開始しました。"); got != "提供を開始しました。" {
		t.Errorf("already-terminated text changed: %q", got)
	}
}

func TestHasSpecificity(t *testing.T) {
	if !HasSpecificity("OpenAIが新モデルを発表") {
		t.Error("latin proper noun not counted as specificity")
	}
	if !HasSpecificity("性能が40パーセント向上") {
		t.Error("number not counted as specificity")
	}
	if HasSpecificity("とても良い話です") {
		t.Error("plain prose misdetected as specific")
	}
}

func TestPolitenessMixRatio(t *testing.T) {
	uniform := []string{"発表しました。", "提供します。", "向上します。"}
	if got := PolitenessMixRatio(uniform); got != 0 {
		t.Errorf("uniform polite ratio = %v, want 0", got)
	}
	mixed := []string{"発表しました。", "提供を開始した。", "向上します。"}
	if got := PolitenessMixRatio(mixed); got < 0.3 || got > 0.34 {
		t.Errorf("mixed ratio = %v, want 1/3", got)
	}
}

func TestCleanGeneratedStripsArtifacts(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"承知しました。OpenAIはGPT-5を発表しました。", "OpenAIはGPT-5を発表しました。"},
		{"要約: OpenAIはGPT-5を発表しました。", "OpenAIはGPT-5を発表しました。"},
		{"1. OpenAIはGPT-5を発表しました。", "OpenAIはGPT-5を発表しました。"},
		{"「OpenAIはGPT-5を発表しました。」", "OpenAIはGPT-5を発表しました。"},
		{"```\nOpenAIはGPT-5を発表しました。\n```", "OpenAIはGPT-5を発表しました。"},
		{"Sure, here is the summary: OpenAIはGPT-5を発表しました。", "OpenAIはGPT-5を発表しました。"},
	}
	for _, c := range cases {
		if got := CleanGenerated(c.in, ""); got != c.want {
			t.Errorf("CleanGenerated(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanGeneratedRejectsFactLoss(t *testing.T) {
	origin := "OpenAIはGPT-5を発表しました。"
	if got := CleanGenerated("新しいモデルが発表されました。", origin); got != "" {
		t.Errorf("fact-dropping rewrite accepted: %q", got)
	}
	if got := CleanGenerated("OpenAIが新モデルを公開しました。", origin); got == "" {
		t.Error("rewrite keeping a key fact was rejected")
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("発表しました。提供は9月です。詳細は未定")
	if len(got) != 3 {
		t.Fatalf("got %d sentences: %v", len(got), got)
	}
	if got[0] != "発表しました。" || got[2] != "詳細は未定" {
		t.Errorf("unexpected split: %v", got)
	}
}

func TestValidateBulletsClean(t *testing.T) {
	bullets := []string{
		"OpenAIは2025年8月に新しい大規模言語モデルGPT-5を正式に発表しました。",
		"推論性能は前世代比で約40パーセント向上したと同社は説明しています。",
		"企業向けAPIは2025年9月から段階的に提供が開始される予定です。",
	}
	report := ValidateBullets(bullets, SummaryBulletOptions())
	if report.HasCritical() {
		t.Fatalf("clean bullets flagged critical: %+v", report.Violations)
	}
	if report.Score < 0.9 {
		t.Errorf("score = %v, want >= 0.9", report.Score)
	}
}

func TestValidateBulletsDemonstrative(t *testing.T) {
	bullets := []string{
		"この新モデルは推論性能が大幅に向上したと説明されています。",
		"推論性能は前世代比で約40パーセント向上したと同社は説明しています。",
		"企業向けAPIは2025年9月から段階的に提供が開始される予定です。",
	}
	report := ValidateBullets(bullets, SummaryBulletOptions())
	if !report.HasCritical() {
		t.Error("demonstrative pronoun not flagged as critical")
	}
}

func TestValidateBulletsProductionMinimum(t *testing.T) {
	// 38 runes: fine for summaries, under the production floor of 50.
	short := "OpenAIは新しい大規模言語モデルGPT-5を正式に発表しました。"
	bullets := []string{short, short, short}

	opts := SummaryBulletOptions()
	if ValidateBullets(bullets, opts).HasCritical() {
		t.Error("summary-mode bullets flagged critical")
	}
	opts.Production = true
	if !ValidateBullets(bullets, opts).HasCritical() {
		t.Error("production mode must enforce the 50-char floor")
	}
}

func TestValidateTitle(t *testing.T) {
	if ValidateTitle("OpenAIがGPT-5を発表", true).HasCritical() {
		t.Error("short title with a domain token must pass")
	}
	if !ValidateTitle("新モデルの発表について"+strings.Repeat("、続報", 5)+"が", true).HasCritical() {
		t.Error("particle-terminated title must fail")
	}
	if !ValidateTitle("この発表は画期的な内容となっています", true).HasCritical() {
		t.Error("demonstrative title must fail")
	}
}
