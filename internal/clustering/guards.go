package clustering

import (
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
)

// Members below dropRatio of the configured coherence threshold are evicted;
// a surviving cluster must still clear the full threshold as a whole.
const dropRatio = 0.8

// Domain tags catch clusters that embeddings alone accept but an editor
// would reject, like a recruiting article grouped with model research.
var domainTags = map[string][]string{
	"hr_recruitment":       {"採用", "求人", "転職", "人材", "年収", "キャリア"},
	"research_technical":   {"論文", "研究", "ベンチマーク", "アーキテクチャ", "学習手法", "精度"},
	"economic_policy":      {"規制", "法案", "政府", "省庁", "ガイドライン", "政策"},
	"business_finance":     {"資金調達", "買収", "上場", "決算", "売上", "出資"},
	"product_tools":        {"リリース", "新機能", "アップデート", "提供開始", "ツール", "プラン"},
	"local_infrastructure": {"データセンター", "自治体", "通信網", "電力", "設備投資"},
}

// Tag pairs an editor would never combine in one topic.
var exclusiveTagPairs = [][2]string{
	{"hr_recruitment", "research_technical"},
	{"hr_recruitment", "local_infrastructure"},
	{"economic_policy", "product_tools"},
}

// TagsFor classifies free text into the curated domain tags.
func TagsFor(text string) map[string]bool {
	tags := make(map[string]bool)
	for tag, keywords := range domainTags {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				tags[tag] = true
				break
			}
		}
	}
	return tags
}

// TagsConflict reports whether two tag sets hit a mutually exclusive pair.
func TagsConflict(a, b map[string]bool) bool {
	for _, pair := range exclusiveTagPairs {
		if (a[pair[0]] && b[pair[1]]) || (a[pair[1]] && b[pair[0]]) {
			return true
		}
	}
	return false
}

func articleTags(a *core.ProcessedArticle) map[string]bool {
	return TagsFor(a.Title() + " " + strings.Join(a.Bullets(), " "))
}

// domainGuard removes the minority side of any mutually exclusive tag pair
// present in the cluster.
func (e *Engine) domainGuard(articles []core.ProcessedArticle, idx []int, members []int) []int {
	tagsOf := make(map[int]map[string]bool, len(members))
	tagCount := make(map[string]int)
	for _, m := range members {
		tags := articleTags(&articles[idx[m]])
		tagsOf[m] = tags
		for tag := range tags {
			tagCount[tag]++
		}
	}

	evict := make(map[string]bool)
	for _, pair := range exclusiveTagPairs {
		a, b := pair[0], pair[1]
		if tagCount[a] == 0 || tagCount[b] == 0 {
			continue
		}
		if tagCount[a] < tagCount[b] {
			evict[a] = true
		} else {
			evict[b] = true
		}
	}
	if len(evict) == 0 {
		return members
	}

	kept := members[:0]
	for _, m := range members {
		conflicted := false
		for tag := range tagsOf[m] {
			if evict[tag] {
				conflicted = true
				break
			}
		}
		if !conflicted {
			kept = append(kept, m)
		}
	}
	return kept
}

// coherenceGuard evicts members whose mean similarity to the rest falls
// below the drop band, one at a time, worst first.
func (e *Engine) coherenceGuard(vectors [][]float64, members []int) []int {
	floor := dropRatio * e.opts.CoherenceThreshold

	for len(members) > e.opts.MinClusterSize {
		worst := -1
		worstSim := 1.0
		for i, m := range members {
			sim := meanSimilarityToOthers(vectors, members, m)
			if sim < worstSim {
				worstSim = sim
				worst = i
			}
		}
		if worst < 0 || worstSim >= floor {
			break
		}
		members = append(members[:worst], members[worst+1:]...)
	}
	return members
}

func meanSimilarityToOthers(vectors [][]float64, members []int, self int) float64 {
	var total float64
	count := 0
	for _, m := range members {
		if m == self {
			continue
		}
		total += cosineSimilarity(vectors[self], vectors[m])
		count++
	}
	if count == 0 {
		return 1
	}
	return total / float64(count)
}
