package clustering

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

const namingPrompt = `以下の記事群に共通するトピック名を日本語で1つ付けてください。

記事タイトル:
%s

制約:
- 10〜25文字程度
- 企業名や製品名など具体的な固有名詞を含める
- 「AIニュース」「最新情報」のような一般的な名前は禁止
- トピック名のみを1行で出力する`

// Names too generic to print. A generated name containing one falls back to
// the keyword name.
var genericNames = []string{
	"AIニュース", "最新情報", "テクノロジー", "ニュースまとめ",
	"AI関連", "その他", "様々な話題", "注目の話題",
}

// nameCluster asks the LLM for a topic name and falls back to the dominant
// title keyword when the result is unusable.
func (e *Engine) nameCluster(ctx context.Context, members []*core.ProcessedArticle) string {
	fallback := keywordName(members)
	if e.namer == nil {
		return fallback
	}

	var titles strings.Builder
	for _, m := range members {
		titles.WriteString("- ")
		titles.WriteString(m.Title())
		titles.WriteString("\n")
	}

	text, err := e.namer.GenerateText(ctx, fmt.Sprintf(namingPrompt, titles.String()), 64, 0.4)
	if err != nil {
		logger.Debug("cluster naming failed, using keyword name", "error", err.Error())
		return fallback
	}
	name := jplang.CleanGenerated(strings.SplitN(text, "\n", 2)[0], "")
	name = strings.Trim(name, "「」\" ")
	if name == "" || jplang.RuneLen(name) > 40 {
		return fallback
	}
	for _, generic := range genericNames {
		if strings.Contains(name, generic) {
			return fallback
		}
	}
	return name
}

// keywordName builds a deterministic name from the most frequent content
// token across member titles.
func keywordName(members []*core.ProcessedArticle) string {
	counts := make(map[string]int)
	for _, m := range members {
		for _, noun := range jplang.ProperNouns(m.Title()) {
			counts[noun]++
		}
	}

	type freq struct {
		word  string
		count int
	}
	sorted := make([]freq, 0, len(counts))
	for w, c := range counts {
		sorted = append(sorted, freq{w, c})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].word < sorted[j].word
	})

	if len(sorted) > 0 && sorted[0].count > 1 {
		return sorted[0].word + "関連の動向"
	}
	// Last resort: the representative-ish first title, truncated.
	title := []rune(members[0].Title())
	if len(title) > 25 {
		title = title[:25]
	}
	return string(title)
}
