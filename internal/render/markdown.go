// Package render turns an assembled newsletter into Markdown and writes the
// run artifacts: the draft, its backup, and the structured run log.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown/parser"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/editorial"
)

// emptyIssueBody is published when no article survived the pipeline.
const emptyIssueBody = "本日の注目ニュースはありませんでした。"

// Title returns the newsletter's top heading text for a date.
func Title(date time.Time) string {
	return date.Format("2006年01月02日") + " AIニュースまとめ"
}

// Render produces the newsletter Markdown. It is a pure function of the
// issue; all I/O lives in the writer.
func Render(issue editorial.Newsletter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title(issue.Date))

	if issue.Empty || len(issue.Articles) == 0 {
		b.WriteString(emptyIssueBody)
		b.WriteString("\n")
		return b.String()
	}

	for _, paragraph := range issue.Lead {
		b.WriteString(paragraph)
		b.WriteString("\n\n")
	}

	b.WriteString("## 目次\n\n")
	for i, entry := range issue.TOC {
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry)
	}
	b.WriteString("\n---\n\n")

	currentCluster := ""
	clusterNames := clusterNameIndex(issue.Clusters)
	for i := range issue.Articles {
		article := &issue.Articles[i]
		if article.ClusterID != "" && article.ClusterID != currentCluster {
			if name := clusterNames[article.ClusterID]; name != "" {
				fmt.Fprintf(&b, "## %s\n\n", name)
			}
			currentCluster = article.ClusterID
		}
		renderArticle(&b, article)
	}
	return b.String()
}

func renderArticle(b *strings.Builder, article *core.ProcessedArticle) {
	fmt.Fprintf(b, "### %s\n\n", article.DisplayTitle)

	for _, bullet := range article.Bullets() {
		fmt.Fprintf(b, "- %s\n", bullet)
	}
	b.WriteString("\n")

	if len(article.Citations) > 0 {
		b.WriteString("> **出典**\n")
		for _, c := range article.Citations {
			fmt.Fprintf(b, "> - [%s](%s): %s\n", c.SourceName, c.URL, c.Summary)
		}
		b.WriteString("\n")
	}
}

func clusterNameIndex(clusters []core.TopicCluster) map[string]string {
	names := make(map[string]string, len(clusters))
	for _, c := range clusters {
		names[c.ID] = c.Name
	}
	return names
}

// Validate re-parses the rendered document and rejects output no Markdown
// parser would accept as a newsletter: it must parse and contain at least
// one heading.
func Validate(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return fmt.Errorf("rendered document is empty")
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	root := p.Parse([]byte(doc))
	if root == nil || len(root.GetChildren()) == 0 {
		return fmt.Errorf("rendered document did not parse as Markdown")
	}
	if !strings.Contains(doc, "# ") {
		return fmt.Errorf("rendered document has no heading")
	}
	return nil
}
