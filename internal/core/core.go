// Package core defines the shared data model for the newsletter pipeline.
package core

import "time"

// SourceKind identifies the type of an upstream source.
type SourceKind string

const (
	SourceKindFeed  SourceKind = "feed"
	SourceKindVideo SourceKind = "video"
)

// SourceReliability is a coarse trust level attached to a Summary.
type SourceReliability string

const (
	ReliabilityHigh   SourceReliability = "high"
	ReliabilityMedium SourceReliability = "medium"
	ReliabilityLow    SourceReliability = "low"
)

// RawItem is one normalized item collected from a source. Immutable after collection.
type RawItem struct {
	ID          string     `json:"id"`           // Content hash of source-id + url
	SourceID    string     `json:"source_id"`    // Stable id of the upstream source
	SourceKind  SourceKind `json:"source_kind"`  // feed or video
	Title       string     `json:"title"`        // Item title
	Body        string     `json:"body"`         // Plain-text body
	URL         string     `json:"url"`          // Canonical URL
	PublishedAt time.Time  `json:"published_at"` // Publication time reported by the source
	FetchedAt   time.Time  `json:"fetched_at"`   // When the collector fetched it
}

// ScoredItem is a RawItem with its AI-relevance verdict. Produced by the relevance filter.
type ScoredItem struct {
	Item            RawItem  `json:"item"`
	Relevance       float64  `json:"relevance"`        // Combined relevance score in [0,1]
	KeywordScore    float64  `json:"keyword_score"`    // Keyword component before weighting
	SemanticScore   float64  `json:"semantic_score"`   // Semantic component (0 when unavailable)
	MatchedKeywords []string `json:"matched_keywords"` // AI vocabulary hits
	FilterReason    string   `json:"filter_reason"`    // Why the item passed or was cut
}

// Summary is the structured multi-point summary of one item.
type Summary struct {
	Bullets      []string          `json:"summary_points"` // 3-4 bullets in the output language
	Confidence   float64           `json:"confidence"`     // Model self-reported confidence in [0,1]
	Reliability  SourceReliability `json:"source_reliability"`
	Model        string            `json:"model"`         // Producing model identifier
	FallbackUsed bool              `json:"fallback_used"` // True when a fallback provider produced it
}

// SummarizedItem is a ScoredItem plus its Summary and processing metadata.
type SummarizedItem struct {
	Item     ScoredItem    `json:"item"`
	Summary  Summary       `json:"summary"`
	Duration time.Duration `json:"duration"`
	Retries  int           `json:"retries"`
}

// DuplicateMethod names the mechanism that produced a DuplicateVerdict.
type DuplicateMethod string

const (
	MethodFastScreening       DuplicateMethod = "fast_screening"
	MethodEmbeddingSimilarity DuplicateMethod = "embedding_similarity"
)

// DuplicateVerdict records whether an item duplicates an earlier one.
type DuplicateVerdict struct {
	IsDuplicate   bool            `json:"is_duplicate"`
	Method        DuplicateMethod `json:"method"`
	Similarity    float64         `json:"similarity"`
	DuplicateOfID string          `json:"duplicate_of_id,omitempty"`
}

// ContextDecision is the follow-up adjudication outcome for an item.
type ContextDecision string

const (
	DecisionKeep   ContextDecision = "KEEP"
	DecisionUpdate ContextDecision = "UPDATE"
	DecisionSkip   ContextDecision = "SKIP"
)

// ContextVerdict records the follow-up analysis against the historical index.
type ContextVerdict struct {
	Decision   ContextDecision `json:"decision"`
	References []string        `json:"references"` // Prior item ids this item follows up on
	Similarity float64         `json:"similarity"`
	Reasoning  string          `json:"reasoning"`
}

// Citation points at a source article with a short output-language summary.
type Citation struct {
	SourceName    string `json:"source_display_name"`
	URL           string `json:"url"`
	OriginalTitle string `json:"original_title"`
	Summary       string `json:"summary"` // One sentence, 60-120 chars
}

// GroupSource is a consolidated sibling retained as a citation candidate
// after near-duplicate merging.
type GroupSource struct {
	SourceID   string   `json:"source_id"`
	SourceName string   `json:"source_name"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Bullets    []string `json:"bullets,omitempty"`
	Relevance  float64  `json:"relevance"`
}

// ProcessedArticle is the unit that flows from consolidation to the final newsletter.
type ProcessedArticle struct {
	Item         SummarizedItem   `json:"item"`
	Duplicate    DuplicateVerdict `json:"duplicate"`
	Context      *ContextVerdict  `json:"context,omitempty"`
	DisplayTitle string           `json:"display_title"`
	Citations    []Citation       `json:"citations"` // 1-3, own source first
	IsUpdate     bool             `json:"is_update"`
	ClusterID    string           `json:"cluster_id,omitempty"`
	GroupSources []GroupSource    `json:"group_sources,omitempty"` // Merged near-duplicates
	RelatedIDs   []string         `json:"related_ids,omitempty"`   // RELATED historical items
	Quality      float64          `json:"quality"`                 // Editorial quality score in [0,1]
}

// ID returns the stable item id the article is keyed on everywhere.
func (a *ProcessedArticle) ID() string {
	return a.Item.Item.Item.ID
}

// SourceID returns the article's own source id.
func (a *ProcessedArticle) SourceID() string {
	return a.Item.Item.Item.SourceID
}

// URL returns the article's canonical URL.
func (a *ProcessedArticle) URL() string {
	return a.Item.Item.Item.URL
}

// Title returns the original (pre-display) title.
func (a *ProcessedArticle) Title() string {
	return a.Item.Item.Item.Title
}

// Bullets returns the article's current summary bullets.
func (a *ProcessedArticle) Bullets() []string {
	return a.Item.Summary.Bullets
}

// TopicCluster groups articles covering the same underlying story.
// Membership is kept as ids; the run state owns the articles.
type TopicCluster struct {
	ID               string   `json:"cluster_id"`
	Name             string   `json:"topic_name"`
	RepresentativeID string   `json:"representative_id"`
	MemberIDs        []string `json:"member_ids"` // Includes the representative
	Coherence        float64  `json:"coherence"`  // Mean pairwise cosine similarity
	Confidence       float64  `json:"confidence"`
	SourceCount      int      `json:"source_count"` // Distinct source ids among members
	Importance       float64  `json:"importance"`
}

// HistoricalRecord is the persisted form of an article in the historical index.
type HistoricalRecord struct {
	ArticleID     string    `json:"article_id"`
	Title         string    `json:"title"`
	SummaryText   string    `json:"content_summary"`
	PublishedAt   time.Time `json:"published_date"`
	SourceID      string    `json:"source_id"`
	SourceURL     string    `json:"source_url"`
	Relevance     float64   `json:"ai_relevance_score"`
	Embedding     []float64 `json:"embedding,omitempty"`
	JapaneseTitle string    `json:"japanese_title,omitempty"`
	IsUpdate      bool      `json:"is_update"`
	TopicCluster  string    `json:"topic_cluster,omitempty"`
	SummaryPoints []string  `json:"summary_points,omitempty"`
}

// RelationshipKind classifies a parent/child article relationship.
type RelationshipKind string

const (
	RelationshipUpdate  RelationshipKind = "update"
	RelationshipRelated RelationshipKind = "related"
	RelationshipSequel  RelationshipKind = "sequel"
)

// RelationshipRecord links a new article to a prior one.
type RelationshipRecord struct {
	ParentArticleID string           `json:"parent_article_id"`
	ChildArticleID  string           `json:"child_article_id"`
	Kind            RelationshipKind `json:"relationship_type"`
	Similarity      float64          `json:"similarity_score"`
	Reasoning       string           `json:"reasoning"`
}
