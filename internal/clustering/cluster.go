// Package clustering groups the day's articles into topic
// clusters over their embeddings, with HDBSCAN for larger batches and
// k-means for small ones.
package clustering

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/google/uuid"
	"github.com/humilityai/hdbscan"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// hdbscanMinBatch is the batch size where HDBSCAN becomes worthwhile;
// smaller batches go straight to k-means.
const hdbscanMinBatch = 8

// Namer generates cluster names. Satisfied by llm.Router.
type Namer interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// Options tune the stage.
type Options struct {
	MinClusterSize     int
	MaxClusters        int
	CoherenceThreshold float64
}

func (o Options) withDefaults() Options {
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = 2
	}
	if o.MaxClusters <= 0 {
		o.MaxClusters = 10
	}
	if o.CoherenceThreshold <= 0 {
		o.CoherenceThreshold = 0.75
	}
	return o
}

// Engine runs the clustering stage.
type Engine struct {
	namer Namer
	opts  Options
}

// NewEngine creates the engine. namer may be nil; naming then uses the
// keyword fallback only.
func NewEngine(namer Namer, opts Options) *Engine {
	return &Engine{namer: namer, opts: opts.withDefaults()}
}

// Cluster groups the articles, validates each candidate cluster with the
// domain and coherence guards, names the survivors, and stamps ClusterID
// onto member articles. Articles without an embedding or left out of every
// cluster stay standalone.
func (e *Engine) Cluster(ctx context.Context, articles []core.ProcessedArticle, embeddings map[string][]float64) ([]core.ProcessedArticle, []core.TopicCluster) {
	var idx []int // Positions of articles that can participate
	var vectors [][]float64
	for i := range articles {
		if v, ok := embeddings[articles[i].ID()]; ok && len(v) > 0 {
			idx = append(idx, i)
			vectors = append(vectors, v)
		}
	}
	if len(idx) < e.opts.MinClusterSize {
		return articles, nil
	}

	assignments := e.assign(vectors)

	// Candidate clusters by raw assignment; -1 is noise.
	byCluster := make(map[int][]int)
	for pos, c := range assignments {
		if c >= 0 {
			byCluster[c] = append(byCluster[c], pos)
		}
	}

	var clusters []core.TopicCluster
	for _, members := range byCluster {
		cluster, ok := e.buildCluster(ctx, articles, idx, vectors, members, embeddings)
		if ok {
			clusters = append(clusters, cluster)
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Importance > clusters[j].Importance
	})
	if len(clusters) > e.opts.MaxClusters {
		clusters = clusters[:e.opts.MaxClusters]
	}

	// Stamp membership onto the articles.
	memberOf := make(map[string]string)
	for _, c := range clusters {
		for _, id := range c.MemberIDs {
			memberOf[id] = c.ID
		}
	}
	for i := range articles {
		articles[i].ClusterID = memberOf[articles[i].ID()]
	}

	logger.Info("clustering complete",
		"articles", len(articles), "clustered", len(memberOf), "clusters", len(clusters))
	return articles, clusters
}

// assign produces a cluster index per vector, -1 for noise. HDBSCAN handles
// larger batches; any failure or a small batch falls back to k-means.
func (e *Engine) assign(vectors [][]float64) []int {
	if len(vectors) >= hdbscanMinBatch {
		if assignments, err := runHDBSCAN(vectors, e.opts.MinClusterSize); err == nil {
			return assignments
		} else {
			logger.Warn("hdbscan failed, falling back to k-means", "error", err.Error())
		}
	}
	k := (len(vectors) + 2) / 3
	if k < 1 {
		k = 1
	}
	if k > e.opts.MaxClusters {
		k = e.opts.MaxClusters
	}
	return runKMeans(vectors, k)
}

// runHDBSCAN drives the library with cosine distance. The library does not
// export per-point assignments, so they are read out of the Clusters field
// by reflection.
func runHDBSCAN(vectors [][]float64, minClusterSize int) ([]int, error) {
	clustering, err := hdbscan.NewClustering(vectors, minClusterSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create clustering: %w", err)
	}
	clustering = clustering.OutlierDetection()
	if err := clustering.Run(cosineDistance, hdbscan.VarianceScore, false); err != nil {
		return nil, fmt.Errorf("clustering run failed: %w", err)
	}

	assignments := make([]int, len(vectors))
	for i := range assignments {
		assignments[i] = -1
	}
	for clusterID, points := range extractClusterPoints(clustering) {
		for _, p := range points {
			if p >= 0 && p < len(assignments) {
				assignments[p] = clusterID
			}
		}
	}
	return assignments, nil
}

// extractClusterPoints pulls the point lists out of the unexported cluster
// structs.
func extractClusterPoints(clustering *hdbscan.Clustering) [][]int {
	v := reflect.ValueOf(clustering).Elem()
	field := v.FieldByName("Clusters")
	if !field.IsValid() {
		return nil
	}

	result := make([][]int, field.Len())
	for i := 0; i < field.Len(); i++ {
		cl := field.Index(i)
		if cl.Kind() == reflect.Ptr {
			cl = cl.Elem()
		}
		points := cl.FieldByName("Points")
		if !points.IsValid() || points.Kind() != reflect.Slice {
			continue
		}
		result[i] = make([]int, points.Len())
		for j := 0; j < points.Len(); j++ {
			result[i][j] = int(points.Index(j).Int())
		}
	}
	return result
}

// cosineDistance is 1 - cosine similarity. Euclidean distance degrades
// badly at embedding dimensionality.
func cosineDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 1.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

func cosineSimilarity(a, b []float64) float64 {
	return 1 - cosineDistance(a, b)
}

// buildCluster applies the guards, picks the representative, computes
// importance, and names the cluster. Returns false when the guards dissolve
// it.
func (e *Engine) buildCluster(ctx context.Context, articles []core.ProcessedArticle, idx []int, vectors [][]float64, members []int, embeddings map[string][]float64) (core.TopicCluster, bool) {
	members = e.domainGuard(articles, idx, members)
	members = e.coherenceGuard(vectors, members)
	if len(members) < e.opts.MinClusterSize {
		return core.TopicCluster{}, false
	}

	coherence := meanPairwiseSimilarity(vectors, members)
	if coherence < e.opts.CoherenceThreshold {
		return core.TopicCluster{}, false
	}

	memberArticles := make([]*core.ProcessedArticle, 0, len(members))
	memberIDs := make([]string, 0, len(members))
	srcSet := make(map[string]bool)
	for _, m := range members {
		a := &articles[idx[m]]
		memberArticles = append(memberArticles, a)
		memberIDs = append(memberIDs, a.ID())
		srcSet[a.SourceID()] = true
	}

	rep := chooseRepresentative(memberArticles)
	cluster := core.TopicCluster{
		ID:               "cluster_" + uuid.NewString()[:8],
		RepresentativeID: rep.ID(),
		MemberIDs:        memberIDs,
		Coherence:        coherence,
		Confidence:       coherence,
		SourceCount:      len(srcSet),
		Importance:       importanceScore(memberArticles, len(srcSet), coherence),
	}
	cluster.Name = e.nameCluster(ctx, memberArticles)
	return cluster, true
}

// chooseRepresentative prefers the member from a source no other member
// shares, breaking ties on relevance plus source priority.
func chooseRepresentative(members []*core.ProcessedArticle) *core.ProcessedArticle {
	srcCount := make(map[string]int)
	for _, m := range members {
		srcCount[m.SourceID()]++
	}

	best := members[0]
	bestScore := -1.0
	for _, m := range members {
		score := m.Item.Item.Relevance + sources.Priority(m.SourceID())
		if srcCount[m.SourceID()] == 1 {
			score += 0.05
		}
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best
}

// Importance weights: source diversity dominates, then member count,
// coherence, and mean relevance, plus a premium-source bonus.
const premiumSourceBonus = 0.05

func importanceScore(members []*core.ProcessedArticle, sourceCount int, coherence float64) float64 {
	diversity := float64(sourceCount) / float64(len(members))
	countScore := float64(len(members)) / 5.0
	if countScore > 1 {
		countScore = 1
	}
	var meanRelevance float64
	premium := false
	for _, m := range members {
		meanRelevance += m.Item.Item.Relevance
		if sources.IsPremium(m.SourceID()) {
			premium = true
		}
	}
	meanRelevance /= float64(len(members))

	score := 0.4*diversity + 0.2*countScore + 0.2*coherence + 0.2*meanRelevance
	if premium {
		score += premiumSourceBonus
	}
	return score
}

func meanPairwiseSimilarity(vectors [][]float64, members []int) float64 {
	if len(members) < 2 {
		return 1
	}
	var total float64
	count := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += cosineSimilarity(vectors[members[i]], vectors[members[j]])
			count++
		}
	}
	return total / float64(count)
}
