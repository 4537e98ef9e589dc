// Package vectorindex stores article embeddings across runs in a local
// SQLite database and serves cosine-similarity lookups against them.
package vectorindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	article_id     TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	japanese_title TEXT,
	summary        TEXT,
	summary_points TEXT,
	embedding      TEXT NOT NULL,
	source_id      TEXT,
	source_url     TEXT,
	relevance      REAL,
	is_update      INTEGER NOT NULL DEFAULT 0,
	topic_cluster  TEXT,
	published_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_records_published ON records(published_at);
`

// Index is the on-disk historical store. Appends buffer in memory until
// Flush; lookups see both persisted and buffered records.
type Index struct {
	db         *sql.DB
	dimensions int

	mu      sync.Mutex
	loaded  []entry
	pending []entry
}

type entry struct {
	record core.HistoricalRecord
	vector []float64
}

// Match is one lookup hit.
type Match struct {
	Record     core.HistoricalRecord
	Similarity float64
}

// Open opens or creates the index at path and enforces the embedding
// dimension. A dimension mismatch with an existing index is fatal: mixed
// dimensions would make every similarity meaningless.
func Open(path string, dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimensions)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	idx := &Index{db: db, dimensions: dimensions}
	if err := idx.checkDimension(); err != nil {
		db.Close()
		return nil, err
	}
	if err := idx.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("vector index opened", "path", path, "records", len(idx.loaded))
	return idx, nil
}

func (x *Index) checkDimension() error {
	var stored string
	err := x.db.QueryRow(`SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = x.db.Exec(`INSERT INTO meta (key, value) VALUES ('dimension', ?)`,
			fmt.Sprintf("%d", x.dimensions))
		if err != nil {
			return fmt.Errorf("failed to record index dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read index dimension: %w", err)
	}
	if stored != fmt.Sprintf("%d", x.dimensions) {
		return fmt.Errorf("index dimension mismatch: index has %s, run configured %d", stored, x.dimensions)
	}
	return nil
}

func (x *Index) loadAll() error {
	rows, err := x.db.Query(`
		SELECT article_id, title, japanese_title, summary, summary_points,
		       embedding, source_id, source_url, relevance, is_update,
		       topic_cluster, published_at
		FROM records`)
	if err != nil {
		return fmt.Errorf("failed to load index records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       core.HistoricalRecord
			jpTitle   sql.NullString
			summary   sql.NullString
			points    sql.NullString
			embedding string
			sourceID  sql.NullString
			sourceURL sql.NullString
			relevance sql.NullFloat64
			isUpdate  int
			cluster   sql.NullString
			published sql.NullTime
		)
		if err := rows.Scan(&rec.ArticleID, &rec.Title, &jpTitle, &summary, &points,
			&embedding, &sourceID, &sourceURL, &relevance, &isUpdate,
			&cluster, &published); err != nil {
			return fmt.Errorf("failed to scan index record: %w", err)
		}
		rec.JapaneseTitle = jpTitle.String
		rec.SummaryText = summary.String
		rec.SourceID = sourceID.String
		rec.SourceURL = sourceURL.String
		rec.Relevance = relevance.Float64
		rec.IsUpdate = isUpdate != 0
		rec.TopicCluster = cluster.String
		rec.PublishedAt = published.Time

		var vector []float64
		if err := json.Unmarshal([]byte(embedding), &vector); err != nil {
			logger.Warn("skipping index record with bad embedding", "article", rec.ArticleID)
			continue
		}
		if points.String != "" {
			// Summary points are stored as a JSON array; bad rows keep going.
			_ = json.Unmarshal([]byte(points.String), &rec.SummaryPoints)
		}
		x.loaded = append(x.loaded, entry{record: rec, vector: vector})
	}
	return rows.Err()
}

// Append buffers one record for the end-of-run flush. The vector must match
// the index dimension.
func (x *Index) Append(record core.HistoricalRecord, vector []float64) error {
	if len(vector) != x.dimensions {
		return fmt.Errorf("embedding dimension %d does not match index dimension %d",
			len(vector), x.dimensions)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pending = append(x.pending, entry{record: record, vector: vector})
	return nil
}

// Search returns the top-k records most similar to the query vector at or
// above the threshold, over persisted and buffered entries alike.
func (x *Index) Search(query []float64, k int, threshold float64) ([]Match, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d",
			len(query), x.dimensions)
	}

	x.mu.Lock()
	candidates := make([]entry, 0, len(x.loaded)+len(x.pending))
	candidates = append(candidates, x.loaded...)
	candidates = append(candidates, x.pending...)
	x.mu.Unlock()

	var matches []Match
	for _, e := range candidates {
		sim := cosine(query, e.vector)
		if sim >= threshold {
			matches = append(matches, Match{Record: e.record, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Flush writes all buffered records in one transaction. Called once at the
// end of the contextual stage so a failed run leaves the index untouched.
func (x *Index) Flush() error {
	x.mu.Lock()
	pending := x.pending
	x.pending = nil
	x.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin index flush: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records
		(article_id, title, japanese_title, summary, summary_points, embedding,
		 source_id, source_url, relevance, is_update, topic_cluster, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range pending {
		vector, err := json.Marshal(e.vector)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		points, err := json.Marshal(e.record.SummaryPoints)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode summary points: %w", err)
		}
		isUpdate := 0
		if e.record.IsUpdate {
			isUpdate = 1
		}
		if _, err := stmt.Exec(
			e.record.ArticleID, e.record.Title, e.record.JapaneseTitle,
			e.record.SummaryText, string(points), string(vector),
			e.record.SourceID, e.record.SourceURL, e.record.Relevance,
			isUpdate, e.record.TopicCluster, e.record.PublishedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert index record %s: %w", e.record.ArticleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index flush: %w", err)
	}

	x.mu.Lock()
	x.loaded = append(x.loaded, pending...)
	x.mu.Unlock()

	logger.Info("vector index flushed", "records", len(pending))
	return nil
}

// Size returns the number of searchable records.
func (x *Index) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.loaded) + len(x.pending)
}

// Close closes the underlying database without flushing.
func (x *Index) Close() error {
	return x.db.Close()
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
