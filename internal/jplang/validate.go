package jplang

import (
	"fmt"
	"strings"
)

// ValidateBullets applies the bullet rules to a summary or citation list and
// returns the scored report.
func ValidateBullets(bullets []string, opts BulletOptions) Report {
	var violations []Violation

	if len(bullets) < opts.MinBullets || len(bullets) > opts.MaxBullets {
		violations = append(violations, Violation{
			Rule:     "bullet_count",
			Severity: SeverityError,
			Message:  fmt.Sprintf("%d bullets, expected %d-%d", len(bullets), opts.MinBullets, opts.MaxBullets),
		})
	}

	minLen := opts.MinLen
	if opts.Production && minLen < 50 {
		minLen = 50
	}

	for i, bullet := range bullets {
		b := strings.TrimSpace(bullet)
		n := RuneLen(b)

		if b == "" {
			violations = append(violations, Violation{
				Rule:     "bullet_empty",
				Severity: SeverityError,
				Message:  fmt.Sprintf("bullet %d is empty", i+1),
			})
			continue
		}
		if n < minLen || n > opts.MaxLen {
			violations = append(violations, Violation{
				Rule:     "bullet_length",
				Severity: SeverityError,
				Message:  fmt.Sprintf("bullet %d is %d chars, expected %d-%d", i+1, n, minLen, opts.MaxLen),
			})
		}
		if ContainsDemonstrative(b) {
			violations = append(violations, Violation{
				Rule:     "demonstrative",
				Severity: SeverityError,
				Message:  fmt.Sprintf("bullet %d uses a demonstrative pronoun", i+1),
			})
		}
		if !HasSentenceTerminal(b) {
			violations = append(violations, Violation{
				Rule:     "terminal_form",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("bullet %d lacks a sentence-terminal form", i+1),
			})
		}
		if !HasSpecificity(b) {
			violations = append(violations, Violation{
				Rule:     "specificity",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("bullet %d has no number or proper noun", i+1),
			})
		}
	}

	if ratio := PolitenessMixRatio(bullets); ratio > 0.3 {
		violations = append(violations, Violation{
			Rule:     "politeness_mix",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("polite/plain forms mixed at %.0f%%", ratio*100),
		})
	}

	if repeated := RepeatedTokens(bullets); len(repeated) > 0 {
		violations = append(violations, Violation{
			Rule:     "repetition",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("tokens repeated more than twice: %s", strings.Join(repeated, ", ")),
		})
	}

	score, level := Score(violations)
	return Report{Score: score, Level: level, Violations: violations}
}

// ValidateTitle applies the production-mode title rules.
func ValidateTitle(title string, production bool) Report {
	var violations []Violation
	t := strings.TrimSpace(title)

	if t == "" {
		violations = append(violations, Violation{Rule: "title_empty", Severity: SeverityError, Message: "title is empty"})
	}
	if EndsWithParticle(t) {
		violations = append(violations, Violation{
			Rule:     "title_particle",
			Severity: SeverityError,
			Message:  "title ends in a dangling particle",
		})
	}
	if ContainsDemonstrative(t) {
		violations = append(violations, Violation{
			Rule:     "demonstrative",
			Severity: SeverityError,
			Message:  "title uses a demonstrative pronoun",
		})
	}
	if production && RuneLen(t) < 20 && !containsDomainToken(t) {
		violations = append(violations, Violation{
			Rule:     "title_short",
			Severity: SeverityError,
			Message:  "title under 20 chars without an AI/tech token",
		})
	}

	score, level := Score(violations)
	return Report{Score: score, Level: level, Violations: violations}
}

// domainTokens are the AI/tech markers accepted for short production titles.
var domainTokens = []string{
	"AI", "LLM", "GPT", "Claude", "Gemini", "OpenAI", "Anthropic", "Google",
	"生成AI", "人工知能", "機械学習", "深層学習", "モデル", "エージェント",
}

func containsDomainToken(s string) bool {
	for _, tok := range domainTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
