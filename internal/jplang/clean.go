package jplang

import (
	"regexp"
	"strings"
)

// Meta-artifact patterns stripped from the head of generated prose, in both
// Japanese and English forms.
var acknowledgmentRes = []*regexp.Regexp{
	regexp.MustCompile(`^(承知(いた)?しました|了解(いた)?しました|かしこまりました)[。、\s]*`),
	regexp.MustCompile(`^(以下(が|に|の通り)[^。]{0,12}(です|します|示します)?)[。、:：\s]*`),
	regexp.MustCompile(`^(こちらが[^。]{0,12}です)[。、:：\s]*`),
	regexp.MustCompile(`^(要約|翻訳|回答|タイトル|見出し)[:：]\s*`),
	regexp.MustCompile(`(?i)^(sure|okay|understood|certainly|of course)[,.!\s]+`),
	regexp.MustCompile(`(?i)^(here (is|are)|as (you|per) (asked|requested))[^:：]{0,30}[:：]?\s*`),
	regexp.MustCompile(`(?i)^(summary|translation|answer|title)\s*[:：]\s*`),
}

var (
	fenceRe        = regexp.MustCompile("(?s)^```[a-zA-Z]*\n(.*?)\n?```$")
	numberPrefixRe = regexp.MustCompile(`^\s*(?:[0-9０-９]+[\.\)、]|[-*・‣▪])\s*`)
)

// CleanGenerated strips LLM meta-artifacts: acknowledgment preambles,
// markdown fences, numbered/bulleted prefixes, and enclosing quotes. When
// origin is non-empty and the cleaned text lost all of the origin's numeric
// data and proper nouns, the cleaned result is rejected and "" is returned.
func CleanGenerated(text, origin string) string {
	cleaned := strings.TrimSpace(text)

	if m := fenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	for changed := true; changed; {
		changed = false
		for _, re := range acknowledgmentRes {
			if next := re.ReplaceAllString(cleaned, ""); next != cleaned {
				cleaned = strings.TrimSpace(next)
				changed = true
			}
		}
	}

	cleaned = numberPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = stripEnclosingQuotes(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return ""
	}
	if origin != "" && !retainsKeyFacts(origin, cleaned) {
		return ""
	}
	return cleaned
}

// stripEnclosingQuotes collapses quotes only when they wrap the whole text.
func stripEnclosingQuotes(s string) string {
	pairs := [][2]string{{"「", "」"}, {"『", "』"}, {`"`, `"`}, {"“", "”"}, {"'", "'"}}
	for _, pair := range pairs {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && RuneLen(s) > RuneLen(pair[0])+RuneLen(pair[1]) {
			inner := strings.TrimSuffix(strings.TrimPrefix(s, pair[0]), pair[1])
			// Keep quotes that close early; only unwrap a full enclosure.
			if !strings.Contains(inner, pair[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}

// retainsKeyFacts reports whether cleaned still carries at least one of the
// origin's numbers or proper nouns. An origin with no key facts passes.
func retainsKeyFacts(origin, cleaned string) bool {
	facts := append(Numbers(origin), ProperNouns(origin)...)
	if len(facts) == 0 {
		return true
	}
	lower := strings.ToLower(cleaned)
	for _, fact := range facts {
		if strings.Contains(lower, strings.ToLower(fact)) {
			return true
		}
	}
	return false
}

// SplitSentences splits Japanese prose on sentence terminators, keeping the
// terminator with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" && s != "。" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
