package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText strips HTML markup from feed content, returning whitespace-
// normalized plain text. Script and style contents are removed. Input that
// is not HTML passes through trimmed.
func ExtractText(html string) string {
	if html == "" {
		return ""
	}
	if !strings.ContainsRune(html, '<') {
		return normalizeWhitespace(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeWhitespace(html)
	}
	doc.Find("script, style, noscript, iframe").Remove()
	return normalizeWhitespace(doc.Text())
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
