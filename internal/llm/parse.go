package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
)

// SummaryPayload is the schema the summarization prompt asks providers for.
type SummaryPayload struct {
	SummaryPoints     []string `json:"summary_points"`
	Confidence        float64  `json:"confidence"`
	SourceReliability string   `json:"source_reliability"`
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseSummaryResponse parses a provider response into a SummaryPayload,
// tolerating the response shapes providers actually produce, in order:
// direct JSON, JSON in a fenced block, an unfenced object located by brace
// matching, and finally a bullet/sentence fallback.
func ParseSummaryResponse(text string) (SummaryPayload, bool) {
	trimmed := strings.TrimSpace(text)

	if payload, ok := tryUnmarshal(trimmed); ok {
		return payload, true
	}
	if m := fencedJSONRe.FindStringSubmatch(trimmed); m != nil {
		if payload, ok := tryUnmarshal(m[1]); ok {
			return payload, true
		}
	}
	if candidate := extractBraceObject(trimmed); candidate != "" {
		if payload, ok := tryUnmarshal(candidate); ok {
			return payload, true
		}
	}

	// The fallback holds the schema's bullet minimum so stray fragments of a
	// malformed JSON response cannot pass as a summary.
	bullets := ParseBullets(trimmed)
	if len(bullets) < 3 {
		return SummaryPayload{}, false
	}
	return SummaryPayload{
		SummaryPoints:     bullets,
		Confidence:        0.5,
		SourceReliability: "medium",
	}, true
}

// tryUnmarshal parses and schema-validates one JSON candidate.
func tryUnmarshal(candidate string) (SummaryPayload, bool) {
	var payload SummaryPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return SummaryPayload{}, false
	}
	return payload, validPayload(&payload)
}

// validPayload enforces the Summary schema: 3-4 non-empty bullets and a
// known reliability tier. Out-of-range confidence is clamped, not rejected.
func validPayload(p *SummaryPayload) bool {
	var bullets []string
	for _, b := range p.SummaryPoints {
		if b = strings.TrimSpace(b); b != "" {
			bullets = append(bullets, b)
		}
	}
	if len(bullets) < 3 || len(bullets) > 4 {
		return false
	}
	p.SummaryPoints = bullets

	if p.Confidence < 0 {
		p.Confidence = 0
	} else if p.Confidence > 1 {
		p.Confidence = 1
	}
	switch p.SourceReliability {
	case "high", "medium", "low":
	default:
		p.SourceReliability = "medium"
	}
	return true
}

// extractBraceObject locates the first balanced top-level JSON object,
// ignoring braces inside string literals.
func extractBraceObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// ParseBullets splits free text into up to four bullet candidates of at
// least 30 characters, with meta-preambles stripped.
func ParseBullets(text string) []string {
	var bullets []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = jplang.CleanGenerated(line, "")
		if line == "" {
			continue
		}
		for _, sentence := range jplang.SplitSentences(line) {
			if jplang.RuneLen(sentence) >= 30 {
				bullets = append(bullets, sentence)
			}
			if len(bullets) == 4 {
				return bullets
			}
		}
	}
	return bullets
}
