package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal status of one pipeline run.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailed  RunStatus = "failed"
)

// LogLevel classifies a processing-log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one append-only processing-log record.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Stage   string    `json:"stage"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

// RunStats accumulates run-wide counters for the processing log.
type RunStats struct {
	ArticlesProcessed int     `json:"articles_processed"`
	ArticlesFailed    int     `json:"articles_failed"`
	LLMCalls          int     `json:"llm_calls"`
	TotalTokens       int     `json:"total_tokens"`
	ProcessingSeconds float64 `json:"processing_time_seconds"`
}

// RunConfig is the per-run configuration snapshot stored on the state.
type RunConfig struct {
	Edition             string    `json:"edition"`
	TargetDate          time.Time `json:"target_date"`
	MaxItems            int       `json:"max_items"`
	OutputDir           string    `json:"output_dir"`
	DryRun              bool      `json:"dry_run"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions int       `json:"embedding_dimensions"`
}

// RunState is the append-only value shared by all pipeline stages. Each stage
// appends whole new collections; earlier collections are never rewritten.
type RunState struct {
	mu sync.Mutex

	RunID     string
	Config    RunConfig
	StartedAt time.Time

	Raw          []RawItem
	Scored       []ScoredItem
	Summarized   []SummarizedItem
	Consolidated []ProcessedArticle
	Clusters     []TopicCluster
	Final        []ProcessedArticle

	Log    []LogEntry
	Stats  RunStats
	Status RunStatus
}

// NewRunState creates the state at the start of a run.
func NewRunState(cfg RunConfig) *RunState {
	return &RunState{
		RunID:     uuid.NewString(),
		Config:    cfg,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}
}

// RunSnapshot is the serializable view of a RunState.
type RunSnapshot struct {
	RunID     string     `json:"run_id"`
	Config    RunConfig  `json:"config"`
	StartedAt time.Time  `json:"started_at"`
	Status    RunStatus  `json:"status"`
	Stats     RunStats   `json:"stats"`
	Log       []LogEntry `json:"log"`

	RawCount          int `json:"raw_count"`
	ScoredCount       int `json:"scored_count"`
	SummarizedCount   int `json:"summarized_count"`
	ConsolidatedCount int `json:"consolidated_count"`
	ClusterCount      int `json:"cluster_count"`
	FinalCount        int `json:"final_count"`
}

// Snapshot returns a copy safe to serialize while stages may still hold the
// state.
func (s *RunState) Snapshot() RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]LogEntry, len(s.Log))
	copy(log, s.Log)
	return RunSnapshot{
		RunID:             s.RunID,
		Config:            s.Config,
		StartedAt:         s.StartedAt,
		Status:            s.Status,
		Stats:             s.Stats,
		Log:               log,
		RawCount:          len(s.Raw),
		ScoredCount:       len(s.Scored),
		SummarizedCount:   len(s.Summarized),
		ConsolidatedCount: len(s.Consolidated),
		ClusterCount:      len(s.Clusters),
		FinalCount:        len(s.Final),
	}
}

// AppendLog records a processing-log entry. Safe for concurrent use.
func (s *RunState) AppendLog(stage string, level LogLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Log = append(s.Log, LogEntry{
		Time:    time.Now().UTC(),
		Stage:   stage,
		Level:   level,
		Message: message,
	})
}

// HasErrors reports whether any warning or error entries were logged.
func (s *RunState) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.Log {
		if e.Level == LogError || e.Level == LogWarning {
			return true
		}
	}
	return false
}

// ArticleByID resolves a ProcessedArticle from the consolidated collection.
func (s *RunState) ArticleByID(id string) *ProcessedArticle {
	for i := range s.Consolidated {
		if s.Consolidated[i].ID() == id {
			return &s.Consolidated[i]
		}
	}
	return nil
}
