package editorial

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

const leadParagraphMax = 200

const leadPrompt = `以下は本日のAIニュースの見出し一覧です。ニュースレターの導入文を日本語で書いてください。

見出し:
%s

制約:
- 段落は2つ、各200文字以内
- 1段落目は本日の最重要トピックの紹介
- 2段落目は全体の傾向を1〜2文で
- 「いかがでしたか」「お届けします」のような定型句は使わない
- 導入文のみを出力し、段落は空行で区切る`

// Phrases that mark template-like filler; a lead containing one is discarded.
var leadDenylist = []string{
	"いかがでしたか", "お届けします", "ご紹介します", "チェックしてみて",
	"目が離せません", "注目が集まっています",
}

// generateLead produces the issue's opening paragraphs, falling back to a
// deterministic summary of the lineup.
func (a *Assembler) generateLead(ctx context.Context, articles []core.ProcessedArticle) []string {
	fallback := fallbackLead(articles)
	if a.llm == nil {
		return fallback
	}

	var titles strings.Builder
	for i := range articles {
		titles.WriteString("- ")
		titles.WriteString(articles[i].DisplayTitle)
		titles.WriteString("\n")
	}

	text, err := a.llm.GenerateText(ctx, fmt.Sprintf(leadPrompt, titles.String()), 512, 0.5)
	if err != nil {
		logger.Debug("lead generation failed, using fallback", "error", err.Error())
		return fallback
	}

	paragraphs := splitParagraphs(jplang.CleanGenerated(text, ""))
	if len(paragraphs) == 0 || len(paragraphs) > 2 {
		return fallback
	}
	for _, p := range paragraphs {
		if jplang.RuneLen(p) > leadParagraphMax {
			return fallback
		}
		for _, banned := range leadDenylist {
			if strings.Contains(p, banned) {
				return fallback
			}
		}
	}
	return paragraphs
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(strings.ReplaceAll(block, "\n", ""))
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

// fallbackLead builds a deterministic lead from the two most-mentioned
// companies and the article count.
func fallbackLead(articles []core.ProcessedArticle) []string {
	counts := make(map[string]int)
	for i := range articles {
		text := articles[i].DisplayTitle + " " + strings.Join(articles[i].Bullets(), " ")
		for _, m := range companyRe.FindAllString(text, -1) {
			counts[m]++
		}
	}

	type companyCount struct {
		name  string
		count int
	}
	ranked := make([]companyCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, companyCount{name, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})

	switch {
	case len(ranked) >= 2:
		return []string{fmt.Sprintf(
			"本日は%sや%sに関する話題を中心に、AI関連ニュース%d本をまとめました。",
			ranked[0].name, ranked[1].name, len(articles))}
	case len(ranked) == 1:
		return []string{fmt.Sprintf(
			"本日は%sに関する話題を中心に、AI関連ニュース%d本をまとめました。",
			ranked[0].name, len(articles))}
	default:
		return []string{fmt.Sprintf("本日のAI関連ニュース%d本をまとめました。", len(articles))}
	}
}
