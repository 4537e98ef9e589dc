// Package relevance implements the AI-relevance filter: weighted keyword
// scoring, optional semantic scoring against exemplar sets, and the dynamic
// acceptance threshold.
package relevance

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// KeywordScorer scores AI-relatedness from a curated weighted vocabulary.
type KeywordScorer struct {
	weights      map[string]float64
	earlyRejects []earlyReject
}

type earlyReject struct {
	re    *regexp.Regexp
	score float64
	label string
}

// NewKeywordScorer creates the scorer with the curated vocabulary.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{
		weights:      aiVocabulary,
		earlyRejects: earlyRejectPatterns,
	}
}

// KeywordResult is the keyword component of an item's relevance.
type KeywordResult struct {
	Score    float64
	Matched  []string
	Rejected bool
	Reason   string
}

// Score computes the keyword score for title+body. High-value proper nouns
// and acronyms dominate; early-reject patterns force a floor score.
func (s *KeywordScorer) Score(title, body string) KeywordResult {
	text := strings.ToLower(title + " " + body)

	for _, er := range s.earlyRejects {
		if er.re.MatchString(text) && !containsCoreAITerm(text) {
			return KeywordResult{
				Score:    er.score,
				Rejected: true,
				Reason:   "early_reject:" + er.label,
			}
		}
	}

	titleLower := strings.ToLower(title)
	var total float64
	var matched []string
	for keyword, weight := range s.weights {
		k := strings.ToLower(keyword)
		if !strings.Contains(text, k) {
			continue
		}
		matched = append(matched, keyword)
		total += weight
		// Title hits are worth double.
		if strings.Contains(titleLower, k) {
			total += weight
		}
	}
	sort.Strings(matched)

	// Saturating normalization: a handful of strong hits reaches 1.0.
	score := math.Min(1.0, total/1.2)
	return KeywordResult{Score: score, Matched: matched}
}

// containsCoreAITerm guards early rejection: an article about both an
// excluded domain and core AI terms is still AI news.
func containsCoreAITerm(text string) bool {
	for _, term := range coreAITerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

var coreAITerms = []string{
	"openai", "anthropic", "claude", "chatgpt", "gpt-", "gemini", "llm",
	"生成ai", "生成AI", "人工知能", "大規模言語モデル",
}

// aiVocabulary is the curated weighted AI vocabulary. Proper nouns and
// acronyms carry the highest weights.
var aiVocabulary = map[string]float64{
	// Organizations and products
	"OpenAI":        0.5,
	"Anthropic":     0.5,
	"ChatGPT":       0.5,
	"Claude":        0.5,
	"Gemini":        0.45,
	"DeepMind":      0.45,
	"Copilot":       0.4,
	"Llama":         0.4,
	"Mistral":       0.4,
	"Hugging Face":  0.35,
	"Midjourney":    0.35,
	"Stable Diffusion": 0.35,
	"NVIDIA":        0.25,
	"Sora":          0.3,
	"Perplexity":    0.3,

	// Acronyms and core technical terms
	"LLM":  0.45,
	"AGI":  0.4,
	"RAG":  0.35,
	"GPU":  0.15,
	"API":  0.05,
	"transformer": 0.25,
	"fine-tuning": 0.3,
	"inference":   0.2,
	"multimodal":  0.3,
	"diffusion model": 0.3,

	// Japanese domain terms
	"生成AI":        0.45,
	"人工知能":       0.4,
	"大規模言語モデル": 0.45,
	"機械学習":       0.35,
	"深層学習":       0.35,
	"ディープラーニング": 0.35,
	"ニューラルネットワーク": 0.3,
	"自然言語処理":    0.3,
	"基盤モデル":      0.35,
	"エージェント":    0.2,
	"チャットボット":   0.2,
	"画像生成":       0.3,
	"音声認識":       0.2,
	"推論モデル":      0.3,

	// Weaker general signals
	"AI":       0.15,
	"モデル":     0.1,
	"学習データ": 0.15,
	"プロンプト":  0.2,
}

// earlyRejectPatterns cover non-AI domains that frequently mention "AI" in
// passing: consumer EV coverage, cryptocurrency trading, and mobile-OS
// configuration guides.
var earlyRejectPatterns = []earlyReject{
	{
		re:    regexp.MustCompile(`(電気自動車|(?:^|[^a-z])ev[^a-z]|充電ステーション|航続距離|テスラ.*納車)`),
		score: 0.04,
		label: "consumer_ev",
	},
	{
		re:    regexp.MustCompile(`(仮想通貨|暗号資産|ビットコイン|イーサリアム|bitcoin|crypto.*trading|nft売買)`),
		score: 0.03,
		label: "crypto_trading",
	},
	{
		re:    regexp.MustCompile(`((?:iphone|android|ios).*(?:設定|使い方|小技|裏技)|ホーム画面のカスタマイズ|機種変更)`),
		score: 0.05,
		label: "mobile_os_howto",
	},
}
