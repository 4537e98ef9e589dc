package dedup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// Options hold the two similarity knobs. Detection flags near-verbatim
// copies; consolidation merges looser same-story coverage. They are
// deliberately separate thresholds.
type Options struct {
	DuplicateThreshold     float64
	ConsolidationThreshold float64
	UpgradeMarker          string
	Now                    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.DuplicateThreshold <= 0 {
		o.DuplicateThreshold = 0.85
	}
	if o.ConsolidationThreshold <= 0 {
		o.ConsolidationThreshold = 0.55
	}
	if o.UpgradeMarker == "" {
		o.UpgradeMarker = "🆙 "
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type group struct {
	members []core.SummarizedItem
	maxSim  []float64 // Similarity each member joined at; index 0 is 1.0
}

// Consolidate groups same-story items by single-linkage over the combined
// similarity and returns one ProcessedArticle per group, with the
// representative chosen by quality and its siblings kept as GroupSources.
// Grouping is order-dependent and runs sequentially on purpose: a second
// pass over the output finds no pair above the consolidation threshold.
func Consolidate(items []core.SummarizedItem, opts Options) []core.ProcessedArticle {
	opts = opts.withDefaults()

	var groups []*group
	for _, item := range items {
		joined := false
		for _, g := range groups {
			best := 0.0
			for _, member := range g.members {
				if sim := Similarity(item, member); sim > best {
					best = sim
				}
			}
			if best >= opts.ConsolidationThreshold {
				g.members = append(g.members, item)
				g.maxSim = append(g.maxSim, best)
				joined = true
				break
			}
		}
		if !joined {
			groups = append(groups, &group{
				members: []core.SummarizedItem{item},
				maxSim:  []float64{1.0},
			})
		}
	}

	articles := make([]core.ProcessedArticle, 0, len(groups))
	for _, g := range groups {
		articles = append(articles, consolidateGroup(g, opts))
	}

	merged := len(items) - len(articles)
	if merged > 0 {
		logger.Info("near-duplicates consolidated",
			"input", len(items), "groups", len(articles), "merged", merged)
	}
	return articles
}

// consolidateGroup picks the representative and folds the remaining members
// into GroupSources, appending a source-attribution note for multi-source
// groups.
func consolidateGroup(g *group, opts Options) core.ProcessedArticle {
	repIdx := 0
	if len(g.members) > 1 {
		best := representativeScore(g.members[0], opts.Now())
		for i := 1; i < len(g.members); i++ {
			if s := representativeScore(g.members[i], opts.Now()); s > best {
				best = s
				repIdx = i
			}
		}
	}
	rep := g.members[repIdx]

	article := core.ProcessedArticle{
		Item: rep,
		Duplicate: core.DuplicateVerdict{
			Method: core.MethodFastScreening,
		},
	}

	var groupSources []core.GroupSource
	maxSim := 0.0
	otherSources := map[string]bool{}
	for i, member := range g.members {
		if i == repIdx {
			continue
		}
		if g.maxSim[i] > maxSim {
			maxSim = g.maxSim[i]
		}
		groupSources = append(groupSources, core.GroupSource{
			SourceID:   member.Item.Item.SourceID,
			SourceName: sources.DisplayName(member.Item.Item.SourceID),
			Title:      member.Item.Item.Title,
			URL:        member.Item.Item.URL,
			Bullets:    member.Summary.Bullets,
			Relevance:  member.Item.Relevance,
		})
		if member.Item.Item.SourceID != rep.Item.Item.SourceID {
			otherSources[member.Item.Item.SourceID] = true
		}
	}
	article.GroupSources = groupSources

	if len(g.members) > 1 {
		article.Duplicate.IsDuplicate = maxSim >= opts.DuplicateThreshold
		article.Duplicate.Similarity = maxSim
		if len(otherSources) > 0 {
			appendAttribution(&article, otherSources)
			markTitle(&article, opts.UpgradeMarker)
		}
	}
	return article
}

// appendAttribution extends the last summary bullet with the other outlets
// covering the same story.
func appendAttribution(article *core.ProcessedArticle, others map[string]bool) {
	bullets := article.Item.Summary.Bullets
	if len(bullets) == 0 {
		return
	}

	names := make([]string, 0, len(others))
	for id := range others {
		names = append(names, sources.DisplayName(id))
	}
	sort.Strings(names)

	last := bullets[len(bullets)-1]
	bullets[len(bullets)-1] = fmt.Sprintf("%s(%sも報道)", last, strings.Join(names, "、"))
}

// markTitle prefixes the representative's title once when the story is
// covered by more than one source.
func markTitle(article *core.ProcessedArticle, marker string) {
	title := article.Item.Item.Item.Title
	if strings.HasPrefix(title, marker) {
		return
	}
	article.Item.Item.Item.Title = marker + title
}

// Representative scoring: relevance and confidence dominate, with a source
// priority bonus, a capped length bonus, and a 10-day recency decay.
const (
	lengthBonusCap   = 0.1
	recencyDecayDays = 10.0
)

func representativeScore(item core.SummarizedItem, now time.Time) float64 {
	score := item.Item.Relevance + item.Summary.Confidence
	score += sources.Priority(item.Item.Item.SourceID)

	lengthBonus := float64(len([]rune(item.Item.Item.Body))) / 5000.0 * lengthBonusCap
	if lengthBonus > lengthBonusCap {
		lengthBonus = lengthBonusCap
	}
	score += lengthBonus

	age := now.Sub(item.Item.Item.PublishedAt).Hours() / 24.0
	if age > 0 {
		decay := 1.0 - age/recencyDecayDays
		if decay < 0 {
			decay = 0
		}
		score *= 0.8 + 0.2*decay
	}
	return score
}
