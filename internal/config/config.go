// Package config loads application configuration from a YAML file,
// environment variables, and an optional .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        App        `mapstructure:"app"`
	LLM        LLM        `mapstructure:"llm"`
	Embedding  Embedding  `mapstructure:"embedding"`
	Relevance  Relevance  `mapstructure:"relevance"`
	Dedup      Dedup      `mapstructure:"dedup"`
	Clustering Clustering `mapstructure:"clustering"`
	Citations  Citations  `mapstructure:"citations"`
	Editorial  Editorial  `mapstructure:"editorial"`
	Output     Output     `mapstructure:"output"`
	Store      Store      `mapstructure:"store"`
}

// App holds general application settings.
type App struct {
	LogLevel       string        `mapstructure:"log_level"`
	SourcesFile    string        `mapstructure:"sources_file"`
	MaxItemsPerRun int           `mapstructure:"max_items_per_run"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

// LLM holds router and provider settings. Credentials come only from the
// environment; a provider without credentials is disabled.
type LLM struct {
	GeminiModel       string        `mapstructure:"gemini_model"`
	OpenAIModel       string        `mapstructure:"openai_model"`
	PrimaryAttempts   int           `mapstructure:"primary_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	SummarizeWorkers  int           `mapstructure:"summarize_workers"`
	MaxConcurrentLLM  int           `mapstructure:"max_concurrent_llm"`
	CitationWorkers   int           `mapstructure:"citation_workers"`
}

// Embedding holds embedding model settings.
type Embedding struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	IndexPath  string `mapstructure:"index_path"`
}

// Relevance holds the relevance-filter thresholds.
type Relevance struct {
	BaseThreshold float64 `mapstructure:"base_threshold"`
	MinThreshold  float64 `mapstructure:"min_threshold"`
	ThresholdStep float64 `mapstructure:"threshold_step"`
	MinArticles   int     `mapstructure:"min_articles"`
	MaxPool       int     `mapstructure:"max_pool"`
}

// Dedup holds the consolidation similarity knobs. Detection and consolidation are two
// distinct thresholds on purpose.
type Dedup struct {
	DuplicateThreshold     float64 `mapstructure:"duplicate_threshold"`
	ConsolidationThreshold float64 `mapstructure:"consolidation_threshold"`
	ContextSimilarity      float64 `mapstructure:"context_similarity"`
	ContextTopK            int     `mapstructure:"context_top_k"`
}

// Clustering holds topic-clustering settings.
type Clustering struct {
	MinClusterSize     int     `mapstructure:"min_cluster_size"`
	MaxClusters        int     `mapstructure:"max_clusters"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	CoherenceThreshold float64 `mapstructure:"coherence_threshold"`
}

// Citations holds citation-assembly settings.
type Citations struct {
	MaxPerArticle int `mapstructure:"max_per_article"`
}

// Editorial holds editorial-assembly settings.
type Editorial struct {
	QualityThreshold float64 `mapstructure:"quality_threshold"`
	MinArticles      int     `mapstructure:"min_articles"`
	MaxArticles      int     `mapstructure:"max_articles"`
	UpgradeMarker    string  `mapstructure:"upgrade_marker"`
	TOCTitleBudget   int     `mapstructure:"toc_title_budget"`
}

// Output holds artifact layout settings.
type Output struct {
	Directory string `mapstructure:"directory"`
	BackupDir string `mapstructure:"backup_dir"`
	LogsDir   string `mapstructure:"logs_dir"`
}

// Store holds persistent record store settings.
type Store struct {
	DatabaseURL string `mapstructure:"database_url"`
}

// Credentials are the provider secrets read from the environment at startup.
type Credentials struct {
	GeminiAPIKey string
	OpenAIAPIKey string
	DatabaseURL  string
}

// Load reads configuration from the given file (optional) plus environment.
func Load(configFile string) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("ainews")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		// Config file is optional; only a malformed file is an error.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadCredentials reads provider secrets from the environment.
func LoadCredentials() Credentials {
	return Credentials{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.sources_file", "sources.json")
	v.SetDefault("app.max_items_per_run", 30)
	v.SetDefault("app.freshness_window", 24*time.Hour)
	v.SetDefault("app.run_timeout", 10*time.Minute)

	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.primary_attempts", 3)
	v.SetDefault("llm.backoff_base", time.Second)
	v.SetDefault("llm.backoff_max", 30*time.Second)
	v.SetDefault("llm.call_timeout", 60*time.Second)
	v.SetDefault("llm.summarize_workers", 5)
	v.SetDefault("llm.max_concurrent_llm", 8)
	v.SetDefault("llm.citation_workers", 8)

	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.index_path", "index/history.db")

	v.SetDefault("relevance.base_threshold", 0.2)
	v.SetDefault("relevance.min_threshold", 0.1)
	v.SetDefault("relevance.threshold_step", 0.02)
	v.SetDefault("relevance.min_articles", 5)
	v.SetDefault("relevance.max_pool", 30)

	v.SetDefault("dedup.duplicate_threshold", 0.85)
	v.SetDefault("dedup.consolidation_threshold", 0.55)
	v.SetDefault("dedup.context_similarity", 0.75)
	v.SetDefault("dedup.context_top_k", 3)

	v.SetDefault("clustering.min_cluster_size", 2)
	v.SetDefault("clustering.max_clusters", 10)
	v.SetDefault("clustering.similarity_threshold", 0.75)
	v.SetDefault("clustering.coherence_threshold", 0.75)

	v.SetDefault("citations.max_per_article", 3)

	v.SetDefault("editorial.quality_threshold", 0.35)
	v.SetDefault("editorial.min_articles", 7)
	v.SetDefault("editorial.max_articles", 10)
	v.SetDefault("editorial.upgrade_marker", "🆙 ")
	v.SetDefault("editorial.toc_title_budget", 80)

	v.SetDefault("output.directory", "drafts")
	v.SetDefault("output.backup_dir", "backups")
	v.SetDefault("output.logs_dir", "logs")
}
