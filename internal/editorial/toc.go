package editorial

import "strings"

// Rune positions after which a Japanese title can be cut without leaving a
// dangling fragment.
var breakRunes = map[rune]bool{
	'、': true, '。': true, '」': true, '』': true, ')': true, '）': true,
	'を': true, 'に': true, 'で': true, 'と': true, 'へ': true,
}

// TruncateTitle shortens a table-of-contents entry to roughly budget runes,
// cutting at the last grammatical break inside the budget and never inside
// an open 「…」 quote. Titles within budget pass through untouched.
func TruncateTitle(title string, budget int) string {
	runes := []rune(title)
	if len(runes) <= budget {
		return title
	}

	cut := budget
	depth := 0
	lastBreak := -1
	for i := 0; i < budget && i < len(runes); i++ {
		switch runes[i] {
		case '「', '『':
			depth++
		case '」', '』':
			depth--
		}
		if depth == 0 && breakRunes[runes[i]] {
			lastBreak = i
		}
	}
	// Prefer a grammatical break if one sits in the back half of the budget.
	if lastBreak >= budget/2 {
		cut = lastBreak + 1
	} else {
		// Never cut inside a quote; back up to before it opened.
		for cut > 0 && openQuoteAt(runes, cut) {
			cut--
		}
	}
	if cut <= 0 {
		cut = budget
	}
	return strings.TrimRight(string(runes[:cut]), " 、") + "…"
}

// openQuoteAt reports whether position i falls inside an unclosed 「…」 or
// 『…』 pair.
func openQuoteAt(runes []rune, i int) bool {
	depth := 0
	for j := 0; j < i && j < len(runes); j++ {
		switch runes[j] {
		case '「', '『':
			depth++
		case '」', '』':
			depth--
		}
	}
	return depth > 0
}
