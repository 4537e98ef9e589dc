// Package persistence mirrors run results into Postgres so published
// newsletters, run logs, and article relationships survive beyond the local
// artifacts. The store is optional; a run without DATABASE_URL skips it.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_content (
	processing_date     DATE NOT NULL,
	edition             TEXT NOT NULL,
	content_type        TEXT NOT NULL,
	title               TEXT NOT NULL,
	lead_paragraph      TEXT,
	articles_count      INTEGER NOT NULL,
	multi_source_topics JSONB,
	content_md          TEXT NOT NULL,
	metadata            JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (processing_date, edition, content_type)
);
CREATE TABLE IF NOT EXISTS processing_logs (
	processing_date         DATE NOT NULL,
	edition                 TEXT NOT NULL,
	status                  TEXT NOT NULL,
	articles_processed      INTEGER NOT NULL,
	articles_failed         INTEGER NOT NULL,
	llm_calls               INTEGER NOT NULL,
	total_tokens            INTEGER NOT NULL,
	processing_time_seconds DOUBLE PRECISION NOT NULL,
	data                    JSONB,
	error_details           TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (processing_date, edition)
);
CREATE TABLE IF NOT EXISTS contextual_articles (
	id                 TEXT PRIMARY KEY,
	article_id         TEXT NOT NULL UNIQUE,
	title              TEXT NOT NULL,
	content_summary    TEXT,
	published_date     TIMESTAMPTZ,
	source_url         TEXT,
	source_id          TEXT,
	topic_cluster      TEXT,
	ai_relevance_score DOUBLE PRECISION,
	summary_points     JSONB,
	japanese_title     TEXT,
	is_update          BOOLEAN NOT NULL DEFAULT FALSE,
	embedding          JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS article_relationships (
	parent_article_id TEXT NOT NULL,
	child_article_id  TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	similarity_score  DOUBLE PRECISION,
	reasoning         TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS article_relationships_link
	ON article_relationships (parent_article_id, child_article_id, relationship_type);
`

// NewsletterRecord is one issue's row in processed_content.
type NewsletterRecord struct {
	Date              time.Time
	Edition           string
	ContentType       string // "newsletter" unless a caller publishes another artifact kind
	Title             string
	Lead              string
	ArticlesCount     int
	MultiSourceTopics []string
	ContentMD         string
	Metadata          map[string]any
}

// Store is the Postgres mirror.
type Store struct {
	db *sql.DB
}

// Open connects and ensures the schema exists.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// SaveNewsletter upserts the issue. Re-running a date/edition overwrites that
// issue's row instead of duplicating it.
func (s *Store) SaveNewsletter(ctx context.Context, rec NewsletterRecord) error {
	if rec.ContentType == "" {
		rec.ContentType = "newsletter"
	}
	topics, err := json.Marshal(rec.MultiSourceTopics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_content
		(processing_date, edition, content_type, title, lead_paragraph,
		 articles_count, multi_source_topics, content_md, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (processing_date, edition, content_type) DO UPDATE SET
			title               = EXCLUDED.title,
			lead_paragraph      = EXCLUDED.lead_paragraph,
			articles_count      = EXCLUDED.articles_count,
			multi_source_topics = EXCLUDED.multi_source_topics,
			content_md          = EXCLUDED.content_md,
			metadata            = EXCLUDED.metadata`,
		rec.Date, rec.Edition, rec.ContentType, rec.Title, nullable(rec.Lead),
		rec.ArticlesCount, topics, rec.ContentMD, metadata)
	if err != nil {
		return fmt.Errorf("failed to upsert newsletter: %w", err)
	}
	logger.Debug("newsletter persisted", "date", rec.Date.Format("2006-01-02"), "edition", rec.Edition)
	return nil
}

// SaveRunLog upserts the day's processing log from the run snapshot.
func (s *Store) SaveRunLog(ctx context.Context, snapshot core.RunSnapshot, date time.Time) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode run snapshot: %w", err)
	}
	var errorDetails []string
	for _, e := range snapshot.Log {
		if e.Level == core.LogError {
			errorDetails = append(errorDetails, e.Stage+": "+e.Message)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processing_logs
		(processing_date, edition, status, articles_processed, articles_failed,
		 llm_calls, total_tokens, processing_time_seconds, data, error_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (processing_date, edition) DO UPDATE SET
			status                  = EXCLUDED.status,
			articles_processed      = EXCLUDED.articles_processed,
			articles_failed         = EXCLUDED.articles_failed,
			llm_calls               = EXCLUDED.llm_calls,
			total_tokens            = EXCLUDED.total_tokens,
			processing_time_seconds = EXCLUDED.processing_time_seconds,
			data                    = EXCLUDED.data,
			error_details           = EXCLUDED.error_details`,
		date, snapshot.Config.Edition, string(snapshot.Status),
		snapshot.Stats.ArticlesProcessed, snapshot.Stats.ArticlesFailed,
		snapshot.Stats.LLMCalls, snapshot.Stats.TotalTokens,
		snapshot.Stats.ProcessingSeconds, data, nullable(strings.Join(errorDetails, "\n")))
	if err != nil {
		return fmt.Errorf("failed to upsert run log: %w", err)
	}
	return nil
}

// SaveContextualArticles upserts the historical records with their
// embeddings. This is the only table that stores embeddings.
func (s *Store) SaveContextualArticles(ctx context.Context, records []core.HistoricalRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contextual_articles
		(id, article_id, title, content_summary, published_date, source_url,
		 source_id, topic_cluster, ai_relevance_score, summary_points,
		 japanese_title, is_update, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (article_id) DO UPDATE SET
			content_summary = EXCLUDED.content_summary,
			topic_cluster   = EXCLUDED.topic_cluster,
			summary_points  = EXCLUDED.summary_points,
			japanese_title  = EXCLUDED.japanese_title,
			is_update       = EXCLUDED.is_update,
			embedding       = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare contextual upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		points, err := json.Marshal(r.SummaryPoints)
		if err != nil {
			return fmt.Errorf("failed to encode summary points: %w", err)
		}
		var embedding any
		if len(r.Embedding) > 0 {
			data, err := json.Marshal(r.Embedding)
			if err != nil {
				return fmt.Errorf("failed to encode embedding: %w", err)
			}
			embedding = data
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), r.ArticleID, r.Title, nullable(r.SummaryText),
			r.PublishedAt, nullable(r.SourceURL), nullable(r.SourceID),
			nullable(r.TopicCluster), r.Relevance, points,
			nullable(r.JapaneseTitle), r.IsUpdate, embedding,
		); err != nil {
			return fmt.Errorf("failed to upsert contextual article %s: %w", r.ArticleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit contextual articles: %w", err)
	}
	return nil
}

// SaveRelationships inserts parent/child article links. The table is
// insert-only; a link seen on a re-run is left as first written.
func (s *Store) SaveRelationships(ctx context.Context, relationships []core.RelationshipRecord) error {
	if len(relationships) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO article_relationships
		(parent_article_id, child_article_id, relationship_type, similarity_score, reasoning)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (parent_article_id, child_article_id, relationship_type) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare relationship insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range relationships {
		if _, err := stmt.ExecContext(ctx,
			r.ParentArticleID, r.ChildArticleID, string(r.Kind), r.Similarity, r.Reasoning,
		); err != nil {
			return fmt.Errorf("failed to insert relationship %s->%s: %w",
				r.ParentArticleID, r.ChildArticleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit relationships: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
