// Package dedup implements the fast near-duplicate screen and group
// consolidation that run before any cross-run context analysis.
package dedup

import (
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// Component weights of the combined similarity. The reputable-source bonus
// applies once per reputable side when the items come from different sources.
const (
	titleWeight      = 0.40
	contentWeight    = 0.35
	bodyPrefixWeight = 0.20
	reputableBonus   = 0.05

	bodyPrefixRunes = 200
	maxSeqRunes     = 400
)

// stopTokens are dropped before comparison. Mixed Japanese/English coverage
// of the same story tends to share the remaining content tokens.
var stopTokens = map[string]bool{
	"の": true, "に": true, "は": true, "を": true, "た": true, "が": true,
	"で": true, "て": true, "と": true, "し": true, "れ": true, "さ": true,
	"です": true, "ます": true, "した": true, "する": true, "ある": true,
	"いる": true, "から": true, "など": true, "まで": true, "へ": true,
	"a": true, "an": true, "the": true, "of": true, "to": true, "in": true,
	"on": true, "for": true, "and": true, "is": true, "are": true, "with": true,
}

// NormalizeComparison lowercases, tokenizes, and drops stop tokens.
func NormalizeComparison(s string) []string {
	s = strings.ToLower(s)
	fields := splitTokens(s)
	out := fields[:0]
	for _, f := range fields {
		if !stopTokens[f] {
			out = append(out, f)
		}
	}
	return out
}

// splitTokens splits on whitespace and punctuation. Japanese text without
// spaces is additionally broken into bigrams so Jaccard has units to work on.
func splitTokens(s string) []string {
	rough := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '、', '。', '「', '」', '(', ')', '（', '）',
			',', '.', ':', ';', '!', '?', '・', '『', '』':
			return true
		}
		return false
	})

	var tokens []string
	for _, field := range rough {
		runes := []rune(field)
		if isASCII(field) || len(runes) <= 2 {
			tokens = append(tokens, field)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			tokens = append(tokens, string(runes[i:i+2]))
		}
	}
	return tokens
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// Jaccard computes token-set overlap.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[t] = true
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SequenceRatio is 2*LCS/(len(a)+len(b)) over runes, truncated to keep the
// quadratic LCS bounded.
func SequenceRatio(a, b string) float64 {
	ra := truncateRunes(a, maxSeqRunes)
	rb := truncateRunes(b, maxSeqRunes)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func truncateRunes(s string, n int) []rune {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return runes
}

// lexicalSimilarity is max(Jaccard, SequenceRatio) over normalized tokens.
func lexicalSimilarity(a, b []string) float64 {
	jac := Jaccard(a, b)
	seq := SequenceRatio(strings.Join(a, " "), strings.Join(b, " "))
	if jac > seq {
		return jac
	}
	return seq
}

// Similarity combines title, summary-content, and body-prefix signals, plus
// the reputable-source bonus for cross-source pairs. Title and content each
// take the better of set overlap and sequence overlap, so reordered wording
// and near-verbatim wording both register.
func Similarity(a, b core.SummarizedItem) float64 {
	titleSim := lexicalSimilarity(
		NormalizeComparison(a.Item.Item.Title),
		NormalizeComparison(b.Item.Item.Title),
	)
	contentSim := lexicalSimilarity(
		NormalizeComparison(strings.Join(a.Summary.Bullets, " ")),
		NormalizeComparison(strings.Join(b.Summary.Bullets, " ")),
	)
	bodySim := SequenceRatio(
		string(truncateRunes(a.Item.Item.Body, bodyPrefixRunes)),
		string(truncateRunes(b.Item.Item.Body, bodyPrefixRunes)),
	)

	score := titleWeight*titleSim + contentWeight*contentSim + bodyPrefixWeight*bodySim

	if a.Item.Item.SourceID != b.Item.Item.SourceID {
		if sources.IsReputable(a.Item.Item.SourceID) {
			score += reputableBonus
		}
		if sources.IsReputable(b.Item.Item.SourceID) {
			score += reputableBonus
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}
