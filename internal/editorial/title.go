package editorial

import (
	"context"
	"regexp"
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

// A display title must score at least this much on the specificity scale.
const minTitleScore = 3

var actionVerbs = []string{
	"発表", "公開", "提供", "開始", "買収", "調達", "提携", "導入",
	"リリース", "更新", "拡大", "対応", "達成", "記録",
}

var companyRe = regexp.MustCompile(`(OpenAI|Anthropic|Google|DeepMind|Microsoft|Meta|NVIDIA|Apple|Amazon|ソフトバンク|トヨタ|[A-Z][A-Za-z]{2,})`)

// assignDisplayTitle generates, validates, and repairs the Japanese display
// title, falling back to a first-bullet derivation when generation fails or
// scores too low.
func (a *Assembler) assignDisplayTitle(ctx context.Context, article *core.ProcessedArticle) {
	fallback := titleFromFirstBullet(article)

	if a.llm == nil {
		article.DisplayTitle = fallback
		return
	}
	generated, err := a.llm.GenerateTitle(ctx, article.Title(), article.Bullets())
	if err != nil {
		logger.Debug("title generation failed, deriving from first bullet",
			"article", article.ID(), "error", err.Error())
		article.DisplayTitle = fallback
		return
	}

	title := repairTitle(jplang.CleanGenerated(generated, ""))
	report := jplang.ValidateTitle(title, true)
	if report.HasCritical() || titleScore(title) < minTitleScore {
		article.DisplayTitle = fallback
		return
	}
	article.DisplayTitle = title
}

// repairTitle fixes the mechanical defects worth salvaging: trailing
// particles and enclosing brackets.
func repairTitle(title string) string {
	title = strings.Trim(title, "「」『』\" ")
	title = jplang.StripTrailingParticles(title)
	return strings.TrimSpace(title)
}

// titleScore measures headline specificity: company or product names weigh
// most, concrete numbers next, action verbs least.
func titleScore(title string) int {
	score := 0
	if companyRe.MatchString(title) {
		score += 3
	}
	if len(jplang.Numbers(title)) > 0 {
		score += 2
	}
	for _, verb := range actionVerbs {
		if strings.Contains(title, verb) {
			score++
			break
		}
	}
	return score
}

// titleFromFirstBullet derives a headline from the lead bullet: the first
// sentence, stripped of its polite ending, trimmed to headline length.
func titleFromFirstBullet(article *core.ProcessedArticle) string {
	bullets := article.Bullets()
	if len(bullets) == 0 {
		return repairTitle(article.Title())
	}

	sentence := bullets[0]
	if parts := jplang.SplitSentences(sentence); len(parts) > 0 {
		sentence = parts[0]
	}
	sentence = strings.TrimSuffix(sentence, "。")
	for _, ending := range []string{"しました", "します", "されました", "されます", "です", "ました"} {
		if strings.HasSuffix(sentence, ending) {
			sentence = strings.TrimSuffix(sentence, ending)
			break
		}
	}
	sentence = jplang.StripTrailingParticles(sentence)

	runes := []rune(sentence)
	if len(runes) > 60 {
		sentence = string(runes[:60])
		sentence = jplang.StripTrailingParticles(sentence)
	}
	if sentence == "" {
		return repairTitle(article.Title())
	}
	return sentence
}
