package clustering

import (
	"sort"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// Prioritize turns the clustered article set into the newsletter-ready list:
// one representative per cluster in decreasing importance order, then
// non-clustered singletons by relevance until target is met. Co-members a
// representative replaces are folded into its sibling pool so the citation
// stage can still reach their coverage. target <= 0 means no cap.
func Prioritize(articles []core.ProcessedArticle, clusters []core.TopicCluster, target int) []core.ProcessedArticle {
	byID := make(map[string]*core.ProcessedArticle, len(articles))
	for i := range articles {
		byID[articles[i].ID()] = &articles[i]
	}

	sorted := make([]core.TopicCluster, len(clusters))
	copy(sorted, clusters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance > sorted[j].Importance
	})

	// Every cluster member is spoken for, whether or not its cluster makes
	// the cut; only genuinely standalone articles may backfill.
	clustered := make(map[string]bool)
	for _, c := range clusters {
		for _, id := range c.MemberIDs {
			clustered[id] = true
		}
		clustered[c.RepresentativeID] = true
	}

	var lineup []core.ProcessedArticle
	for _, cluster := range sorted {
		if target > 0 && len(lineup) >= target {
			break
		}
		rep, ok := byID[cluster.RepresentativeID]
		if !ok {
			continue
		}
		merged := *rep
		for _, id := range cluster.MemberIDs {
			if id == cluster.RepresentativeID {
				continue
			}
			member, ok := byID[id]
			if !ok {
				continue
			}
			merged.GroupSources = foldMember(merged.GroupSources, member)
		}
		lineup = append(lineup, merged)
	}

	var singles []*core.ProcessedArticle
	for i := range articles {
		if !clustered[articles[i].ID()] {
			singles = append(singles, &articles[i])
		}
	}
	sort.SliceStable(singles, func(i, j int) bool {
		return singles[i].Item.Item.Relevance > singles[j].Item.Item.Relevance
	})
	for _, s := range singles {
		if target > 0 && len(lineup) >= target {
			break
		}
		lineup = append(lineup, *s)
	}

	logger.Info("newsletter lineup prioritized",
		"clusters", len(clusters), "articles", len(lineup))
	return lineup
}

// foldMember appends the member itself and then the member's own
// consolidated siblings, skipping URLs already pooled.
func foldMember(pool []core.GroupSource, member *core.ProcessedArticle) []core.GroupSource {
	seen := make(map[string]bool, len(pool))
	for _, g := range pool {
		seen[g.URL] = true
	}

	add := func(g core.GroupSource) {
		if g.URL == "" || seen[g.URL] {
			return
		}
		seen[g.URL] = true
		pool = append(pool, g)
	}

	add(core.GroupSource{
		SourceID:   member.SourceID(),
		SourceName: sources.DisplayName(member.SourceID()),
		Title:      member.Title(),
		URL:        member.URL(),
		Bullets:    member.Bullets(),
		Relevance:  member.Item.Item.Relevance,
	})
	for _, g := range member.GroupSources {
		add(g)
	}
	return pool
}
