package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
	"github.com/0xlawrence/ainews-app-sub000/internal/sources"
)

// oembedEndpoint is a variable so tests can point it at a local server.
var oembedEndpoint = "https://www.youtube.com/oembed"

// oembedResponse is the subset of the YouTube oEmbed payload we use.
type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// collectVideos fetches a channel's upload feed and enriches entries whose
// titles are missing via the oEmbed endpoint.
func (c *Collector) collectVideos(ctx context.Context, src sources.Source) ([]core.RawItem, error) {
	body, notModified, err := c.fetchConditional(ctx, src.ID, src.Location)
	if err != nil {
		return nil, err
	}
	if notModified {
		return nil, nil
	}

	feed, err := c.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	items := c.feedToItems(src, feed)
	for i := range items {
		if items[i].Title != "" && items[i].Body != "" {
			continue
		}
		meta, err := c.lookupOEmbed(ctx, items[i].URL)
		if err != nil {
			// Metadata enrichment is best effort.
			logger.Debug("oembed lookup failed",
				"url", items[i].URL, "error", err.Error())
			continue
		}
		if items[i].Title == "" {
			items[i].Title = meta.Title
		}
		if items[i].Body == "" {
			items[i].Body = videoBody(meta)
		}
	}

	// Entries with no usable title even after enrichment are dropped.
	kept := items[:0]
	for _, item := range items {
		if item.Title != "" {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// lookupOEmbed resolves video metadata for one video URL.
func (c *Collector) lookupOEmbed(ctx context.Context, videoURL string) (*oembedResponse, error) {
	q := url.Values{}
	q.Set("url", videoURL)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build oembed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}

	var meta oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode oembed response: %w", err)
	}
	return &meta, nil
}

// videoBody synthesizes a minimal body for summarization when the feed entry
// carried no description.
func videoBody(meta *oembedResponse) string {
	var b strings.Builder
	b.WriteString(meta.AuthorName)
	b.WriteString("が公開した動画「")
	b.WriteString(meta.Title)
	b.WriteString("」です。")
	return b.String()
}
