// Package sources loads the configured source list consumed once at collection.
package sources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
)

// Source is one configured upstream publisher.
type Source struct {
	ID       string          `json:"id"`
	Kind     core.SourceKind `json:"kind"`
	Location string          `json:"location"` // Feed URL or channel URL
	Enabled  *bool           `json:"enabled,omitempty"`
	MaxItems int             `json:"max_items,omitempty"`
}

// IsEnabled treats a missing enabled flag as true.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type document struct {
	Sources []Source `json:"sources"`
}

// Load reads and validates the sources JSON document. An unreadable or
// malformed file is a fatal configuration error.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	seen := make(map[string]bool)
	var enabled []Source
	for i, src := range doc.Sources {
		if src.ID == "" || src.Location == "" {
			return nil, fmt.Errorf("source %d is missing id or location", i)
		}
		if src.Kind != core.SourceKindFeed && src.Kind != core.SourceKindVideo {
			return nil, fmt.Errorf("source %s has unknown kind %q", src.ID, src.Kind)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	return enabled, nil
}

// DisplayName returns the human-readable name for a source id. Names come
// from a curated table; unknown ids fall back to the id itself.
func DisplayName(sourceID string) string {
	if name, ok := displayNames[sourceID]; ok {
		return name
	}
	return sourceID
}

// Priority returns the curated source-priority bonus used in representative
// selection. Unknown sources get zero.
func Priority(sourceID string) float64 {
	if p, ok := sourcePriority[sourceID]; ok {
		return p
	}
	return 0
}

// IsReputable reports whether the source is in the curated reputable tier.
func IsReputable(sourceID string) bool {
	return sourcePriority[sourceID] >= 0.15
}

// IsPremium reports whether the source qualifies for the cluster-importance
// quality bonus.
func IsPremium(sourceID string) bool {
	return sourcePriority[sourceID] >= 0.2
}

var displayNames = map[string]string{
	"openai_news":       "OpenAI News",
	"anthropic_news":    "Anthropic",
	"google_ai_blog":    "Google AI Blog",
	"deepmind_blog":     "Google DeepMind",
	"huggingface_blog":  "Hugging Face",
	"techcrunch_ai":     "TechCrunch",
	"the_decoder":       "The Decoder",
	"venturebeat_ai":    "VentureBeat",
	"itmedia_ai":        "ITmedia AI+",
	"nikkei_xtech":      "日経クロステック",
	"ascii_ai":          "ASCII.jp",
	"ledge_ai":          "Ledge.ai",
	"ainow":             "AINOW",
	"youtube_openai":    "OpenAI (YouTube)",
	"youtube_anthropic": "Anthropic (YouTube)",
}

var sourcePriority = map[string]float64{
	"openai_news":      0.25,
	"anthropic_news":   0.25,
	"google_ai_blog":   0.22,
	"deepmind_blog":    0.22,
	"huggingface_blog": 0.18,
	"techcrunch_ai":    0.15,
	"venturebeat_ai":   0.12,
	"the_decoder":      0.10,
	"nikkei_xtech":     0.15,
	"itmedia_ai":       0.12,
	"ledge_ai":         0.08,
	"ascii_ai":         0.08,
	"ainow":            0.05,
}
