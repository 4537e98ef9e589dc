package editorial

import (
	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/jplang"
)

// AuditReport is the outcome of the final content audit over an assembled
// issue. It is a reporting gate only; the issue ships regardless and the
// report is logged for review.
type AuditReport struct {
	Score    float64            // Mean of the section scores
	Critical bool               // Any error-severity violation in any section
	Sections map[string]float64 // "lead", "titles", "bullets", "citations"
}

// Flagged reports whether the audit result warrants a log entry.
func (r AuditReport) Flagged() bool {
	return r.Critical || r.Score < 0.5
}

// Audit re-scores the assembled issue section by section with the production
// content rules.
func Audit(issue Newsletter) AuditReport {
	if issue.Empty || len(issue.Articles) == 0 {
		return AuditReport{Score: 1, Sections: map[string]float64{}}
	}

	report := AuditReport{Sections: make(map[string]float64)}
	report.Sections["lead"] = auditLead(issue.Lead, &report.Critical)
	report.Sections["titles"] = auditTitles(issue.Articles, &report.Critical)
	report.Sections["bullets"] = auditBullets(issue.Articles, &report.Critical)
	report.Sections["citations"] = auditCitations(issue.Articles, &report.Critical)

	for _, score := range report.Sections {
		report.Score += score
	}
	report.Score /= float64(len(report.Sections))
	return report
}

func auditLead(paragraphs []string, critical *bool) float64 {
	if len(paragraphs) == 0 {
		*critical = true
		return 0
	}
	score := 1.0
	for _, p := range paragraphs {
		if jplang.EndsWithParticle(p) || jplang.RuneLen(p) > 200 {
			score -= 0.3
			*critical = true
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func auditTitles(articles []core.ProcessedArticle, critical *bool) float64 {
	var sum float64
	for i := range articles {
		r := jplang.ValidateTitle(articles[i].DisplayTitle, true)
		sum += r.Score
		if r.HasCritical() {
			*critical = true
		}
	}
	return sum / float64(len(articles))
}

func auditBullets(articles []core.ProcessedArticle, critical *bool) float64 {
	opts := jplang.SummaryBulletOptions()
	opts.Production = true
	var sum float64
	for i := range articles {
		r := jplang.ValidateBullets(articles[i].Bullets(), opts)
		sum += r.Score
		if r.HasCritical() {
			*critical = true
		}
	}
	return sum / float64(len(articles))
}

func auditCitations(articles []core.ProcessedArticle, critical *bool) float64 {
	opts := jplang.CitationSummaryOptions()
	total := 0
	var sum float64
	for i := range articles {
		for _, c := range articles[i].Citations {
			r := jplang.ValidateBullets([]string{c.Summary}, opts)
			sum += r.Score
			if r.HasCritical() {
				*critical = true
			}
			total++
		}
	}
	if total == 0 {
		// Every article must cite at least its own source.
		*critical = true
		return 0
	}
	return sum / float64(total)
}
