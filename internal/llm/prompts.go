package llm

import (
	"fmt"
	"strings"
)

const summarizePromptTemplate = `あなたはAIニュース専門の編集者です。以下の記事を日本語で要約してください。

記事タイトル: %s
URL: %s

本文:
%s

以下のJSON形式のみで回答してください。説明や前置きは不要です。

{
  "summary_points": [
    "要点1(30〜150文字、具体的な数値や固有名詞を含む、文末は「です」「ます」調)",
    "要点2",
    "要点3"
  ],
  "confidence": 0.0から1.0の数値,
  "source_reliability": "high" または "medium" または "low"
}

制約:
- 要点は3〜4個
- 「この」「その」などの指示語は使わない
- 各要点は独立した完結文にする`

const titlePromptTemplate = `以下のAIニュース記事に、日本語の見出しを1つ付けてください。

元タイトル: %s
要点:
%s

制約:
- 30〜60文字程度
- 企業名・製品名を含める
- 助詞(が・を・に・は・で・と)で終わらない完結した形にする
- 見出しのみを1行で出力する`

func buildSummarizePrompt(title, body, url string) string {
	// Providers have context limits; the body prefix carries the lede.
	if len(body) > 12000 {
		body = body[:12000]
	}
	return fmt.Sprintf(summarizePromptTemplate, title, url, body)
}

func buildTitlePrompt(title string, bullets []string) string {
	var b strings.Builder
	for _, bullet := range bullets {
		b.WriteString("- ")
		b.WriteString(bullet)
		b.WriteString("\n")
	}
	return fmt.Sprintf(titlePromptTemplate, title, b.String())
}
