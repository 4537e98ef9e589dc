// Package jplang implements the shared Japanese content rules applied to
// summary bullets, display titles, lead paragraphs, and citation summaries.
package jplang

import (
	"regexp"
	"strings"
)

// Severity classifies a rule violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation is one failed rule with its severity.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Level is the coarse quality level derived from the score.
type Level string

const (
	LevelFailed     Level = "FAILED"
	LevelExcellent  Level = "EXCELLENT"
	LevelGood       Level = "GOOD"
	LevelAcceptable Level = "ACCEPTABLE"
	LevelPoor       Level = "POOR"
)

// Report is the outcome of validating a piece of content.
type Report struct {
	Score      float64     `json:"score"`
	Level      Level       `json:"level"`
	Violations []Violation `json:"violations"`
}

// HasCritical reports whether any error-severity violation exists.
func (r Report) HasCritical() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// BulletOptions configures bullet validation.
type BulletOptions struct {
	MinBullets int
	MaxBullets int
	MinLen     int // Rune count
	MaxLen     int
	Production bool // Final editorial gate: stricter minimums
}

// SummaryBulletOptions returns the limits for summary bullets.
func SummaryBulletOptions() BulletOptions {
	return BulletOptions{MinBullets: 3, MaxBullets: 4, MinLen: 20, MaxLen: 150}
}

// CitationSummaryOptions returns the limits for one-sentence citation summaries.
func CitationSummaryOptions() BulletOptions {
	return BulletOptions{MinBullets: 1, MaxBullets: 1, MinLen: 60, MaxLen: 120}
}

var (
	demonstratives = []string{"この", "その", "あの", "どの"}

	// Sentence-terminal forms recognized at the end of a bullet, checked
	// after trimming a trailing 。！？.
	terminalForms = []string{
		"です", "ます", "ました", "ません", "でした", "した", "きます",
		"される", "された", "できる", "できます", "となる", "なります",
		"予定", "見込み", "方針", "模様",
	}

	// Particles that must not terminate a title or bullet.
	trailingParticles = []string{"が", "を", "に", "は", "で", "と", "へ", "の", "も", "や", "から", "まで"}

	politeSuffixes = []string{"です", "ます", "ました", "ません", "でした", "ましょう"}

	numberRe     = regexp.MustCompile(`[0-9０-９]+`)
	latinRe      = regexp.MustCompile(`[A-Za-zＡ-Ｚａ-ｚ][A-Za-z0-9Ａ-Ｚａ-ｚ０-９\-\.]+`)
	katakanaRe   = regexp.MustCompile(`[ァ-ヶー]{3,}`)
	tokenSplitRe = regexp.MustCompile(`[\s、。・:：;；,\.!！\?？「」『』（）\(\)\[\]]+`)
)

// ContainsDemonstrative reports whether the text uses a banned demonstrative
// pronoun (この/その/あの/どの).
func ContainsDemonstrative(s string) bool {
	for _, d := range demonstratives {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

// HasSentenceTerminal reports whether the text ends in a recognized
// grammatical sentence ending.
func HasSentenceTerminal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	trimmed := strings.TrimRight(s, "。！？!?.")
	if trimmed == "" {
		return false
	}
	// A bare punctuation terminator after a particle is not grammatical.
	if EndsWithParticle(trimmed) {
		return false
	}
	if trimmed != s {
		// Had explicit punctuation; terminal is acceptable unless it ended
		// on a particle (checked above).
		return true
	}
	for _, form := range terminalForms {
		if strings.HasSuffix(trimmed, form) {
			return true
		}
	}
	return false
}

// EndsWithParticle reports whether the text ends in a post-positional
// particle, the main symptom of a truncated sentence.
func EndsWithParticle(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), "。！？!?.")
	for _, p := range trailingParticles {
		if strings.HasSuffix(s, p) {
			// "まで" and "から" can end nominal phrases legitimately when
			// preceded by a counter, but for editorial copy we treat any
			// particle ending as dangling.
			return true
		}
	}
	return false
}

// StripTrailingParticles removes dangling particles from the end of the text.
func StripTrailingParticles(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "。！？!?.")
	for changed := true; changed; {
		changed = false
		for _, p := range trailingParticles {
			if strings.HasSuffix(s, p) && len([]rune(s)) > len([]rune(p)) {
				s = strings.TrimSuffix(s, p)
				s = strings.TrimSpace(s)
				changed = true
			}
		}
	}
	return s
}

// EnsureTerminal appends a context-appropriate sentence terminator when the
// text does not already end grammatically.
func EnsureTerminal(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if HasSentenceTerminal(s) {
		if !strings.HasSuffix(s, "。") && !strings.HasSuffix(s, "！") && !strings.HasSuffix(s, "？") {
			return s + "。"
		}
		return s
	}
	s = StripTrailingParticles(s)
	return s + "です。"
}

// HasSpecificity reports whether the text carries at least one number or
// proper noun (latin token or katakana word).
func HasSpecificity(s string) bool {
	return numberRe.MatchString(s) || latinRe.MatchString(s) || katakanaRe.MatchString(s)
}

// IsPolite reports whether a sentence ends in a polite (です/ます) form.
func IsPolite(s string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(s), "。！？!?.")
	for _, suf := range politeSuffixes {
		if strings.HasSuffix(trimmed, suf) {
			return true
		}
	}
	return false
}

// PolitenessMixRatio returns the minority-form ratio across sentences.
// 0 means perfectly consistent.
func PolitenessMixRatio(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	polite := 0
	for _, s := range sentences {
		if IsPolite(s) {
			polite++
		}
	}
	plain := len(sentences) - polite
	minority := polite
	if plain < polite {
		minority = plain
	}
	return float64(minority) / float64(len(sentences))
}

// contentTokens extracts content-bearing tokens for the repetition check:
// latin words, katakana words, and number groups.
func contentTokens(s string) []string {
	var tokens []string
	for _, part := range tokenSplitRe.Split(s, -1) {
		if part == "" {
			continue
		}
		tokens = append(tokens, latinRe.FindAllString(part, -1)...)
		tokens = append(tokens, katakanaRe.FindAllString(part, -1)...)
	}
	return tokens
}

// RepeatedTokens returns content tokens appearing more than twice across the
// given sentences.
func RepeatedTokens(sentences []string) []string {
	counts := make(map[string]int)
	for _, s := range sentences {
		for _, tok := range contentTokens(s) {
			counts[strings.ToLower(tok)]++
		}
	}
	var repeated []string
	for tok, n := range counts {
		if n > 2 {
			repeated = append(repeated, tok)
		}
	}
	return repeated
}

// ProperNouns extracts the latin and katakana proper-noun candidates.
func ProperNouns(s string) []string {
	nouns := latinRe.FindAllString(s, -1)
	return append(nouns, katakanaRe.FindAllString(s, -1)...)
}

// Numbers extracts the numeric groups in the text.
func Numbers(s string) []string {
	return numberRe.FindAllString(s, -1)
}

// RuneLen is the character count used by every length rule.
func RuneLen(s string) int {
	return len([]rune(s))
}

// Score converts violations into the 0-1 score and quality level.
func Score(violations []Violation) (float64, Level) {
	score := 1.0
	hasError := false
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			score -= 0.3
			hasError = true
		case SeverityWarning:
			score -= 0.1
		case SeverityInfo:
			score -= 0.05
		}
	}
	if score < 0 {
		score = 0
	}

	var level Level
	switch {
	case hasError:
		level = LevelFailed
	case score >= 0.9:
		level = LevelExcellent
	case score >= 0.8:
		level = LevelGood
	case score >= 0.6:
		level = LevelAcceptable
	default:
		level = LevelPoor
	}
	return score, level
}
