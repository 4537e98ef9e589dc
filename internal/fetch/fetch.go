// Package fetch implements the collector: concurrent per-source fetching
// of feeds and video channels into normalized items.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

const (
	defaultPerSourceCap = 10
	fetchTimeout        = 30 * time.Second
	userAgent           = "ainews-collector/1.0"
)

// Options tune one collection run.
type Options struct {
	Window     time.Duration // Freshness window; items older than this are dropped
	MaxItems   int           // Global cap after merging all sources
	TargetDate time.Time     // Zero means "now"; set for backfill runs
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 24 * time.Hour
	}
	if o.MaxItems <= 0 {
		o.MaxItems = 30
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Collector fetches all configured sources.
type Collector struct {
	client *http.Client
	parser *gofeed.Parser
	opts   Options

	mu    sync.Mutex
	etags map[string]string
}

// NewCollector creates a collector with its own HTTP client.
func NewCollector(opts Options) *Collector {
	client := &http.Client{Timeout: fetchTimeout}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Collector{
		client: client,
		parser: parser,
		opts:   opts.withDefaults(),
		etags:  make(map[string]string),
	}
}

// sourceResult is one source's outcome; failures are isolated per source.
type sourceResult struct {
	source sources.Source
	items  []core.RawItem
	err    error
}

// Collect fetches every source concurrently, merges, dedups by item id, and
// caps the result. A failing source is logged and skipped; Collect fails only
// when every source fails.
func (c *Collector) Collect(ctx context.Context, srcs []sources.Source) ([]core.RawItem, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("no enabled sources configured")
	}

	results := make(chan sourceResult, len(srcs))
	var wg sync.WaitGroup
	for _, src := range srcs {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			items, err := c.collectSource(ctx, src)
			results <- sourceResult{source: src, items: items, err: err}
		}(src)
	}
	wg.Wait()
	close(results)

	var merged []core.RawItem
	failures := 0
	for r := range results {
		if r.err != nil {
			failures++
			logger.Warn("source fetch failed",
				"source", r.source.ID, "error", r.err.Error())
			continue
		}
		logger.Debug("source fetched", "source", r.source.ID, "items", len(r.items))
		merged = append(merged, r.items...)
	}
	if failures == len(srcs) {
		return nil, fmt.Errorf("all %d sources failed", len(srcs))
	}

	merged = dedupByID(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	if len(merged) > c.opts.MaxItems {
		merged = merged[:c.opts.MaxItems]
	}

	logger.Info("collection complete",
		"sources", len(srcs), "failed", failures, "items", len(merged))
	return merged, nil
}

func (c *Collector) collectSource(ctx context.Context, src sources.Source) ([]core.RawItem, error) {
	switch src.Kind {
	case core.SourceKindVideo:
		return c.collectVideos(ctx, src)
	default:
		return c.collectFeed(ctx, src)
	}
}

// collectFeed fetches one feed with a conditional GET and parses it.
func (c *Collector) collectFeed(ctx context.Context, src sources.Source) ([]core.RawItem, error) {
	body, notModified, err := c.fetchConditional(ctx, src.ID, src.Location)
	if err != nil {
		return nil, err
	}
	if notModified {
		logger.Debug("feed not modified", "source", src.ID)
		return nil, nil
	}

	feed, err := c.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return c.feedToItems(src, feed), nil
}

// fetchConditional performs a GET with If-None-Match from the previous ETag.
func (c *Collector) fetchConditional(ctx context.Context, sourceID, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.mu.Lock()
	if etag := c.etags[sourceID]; etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	c.mu.Unlock()

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return "", true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.mu.Lock()
		c.etags[sourceID] = etag
		c.mu.Unlock()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), false, nil
}

// feedToItems normalizes feed entries, applying the freshness window and the
// per-source cap.
func (c *Collector) feedToItems(src sources.Source, feed *gofeed.Feed) []core.RawItem {
	limit := src.MaxItems
	if limit <= 0 {
		limit = defaultPerSourceCap
	}
	cutoff, now := c.freshnessBounds()

	var items []core.RawItem
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		if entry.Link == "" || entry.Title == "" {
			continue
		}
		published := entryTime(entry, now)
		if published.Before(cutoff) || published.After(now.Add(time.Hour)) {
			continue
		}

		items = append(items, core.RawItem{
			ID:          ItemID(src.ID, entry.Link),
			SourceID:    src.ID,
			SourceKind:  src.Kind,
			Title:       strings.TrimSpace(entry.Title),
			Body:        ExtractText(entryBody(entry)),
			URL:         entry.Link,
			PublishedAt: published,
			FetchedAt:   now,
		})
	}
	return items
}

// freshnessBounds computes the accepted publication range. Backfill runs
// widen the window around the target date.
func (c *Collector) freshnessBounds() (cutoff, now time.Time) {
	now = c.opts.Now()
	if !c.opts.TargetDate.IsZero() {
		// Backfill: accept the whole target day plus the window before it.
		end := c.opts.TargetDate.Add(24 * time.Hour)
		return c.opts.TargetDate.Add(-c.opts.Window), end
	}
	return now.Add(-c.opts.Window), now
}

func entryTime(entry *gofeed.Item, now time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return now
}

// entryBody prefers full content over the description.
func entryBody(entry *gofeed.Item) string {
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Description
}

// ItemID is the stable content hash identifying one item everywhere
// downstream.
func ItemID(sourceID, url string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + url))
	return hex.EncodeToString(sum[:])[:16]
}

func dedupByID(items []core.RawItem) []core.RawItem {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
