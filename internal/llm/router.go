package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/0xlawrence/ainews-app-sub000/internal/core"
	"github.com/0xlawrence/ainews-app-sub000/internal/logger"
)

// RouterConfig tunes the retry/fallback loop.
type RouterConfig struct {
	PrimaryAttempts int           // Attempts against the primary provider
	BackoffBase     time.Duration // First backoff delay
	BackoffMax      time.Duration // Backoff cap
	CallTimeout     time.Duration // Per-call timeout
}

// DefaultRouterConfig returns the documented defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		PrimaryAttempts: 3,
		BackoffBase:     time.Second,
		BackoffMax:      30 * time.Second,
		CallTimeout:     60 * time.Second,
	}
}

// Usage accumulates call and token counts across the run.
type Usage struct {
	mu     sync.Mutex
	calls  int
	tokens int
}

func (u *Usage) record(tokens int) {
	u.mu.Lock()
	u.calls++
	u.tokens += tokens
	u.mu.Unlock()
}

// Totals returns the accumulated call and token counts.
func (u *Usage) Totals() (calls, tokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.tokens
}

// Router fans LLM operations over an ordered provider list: the primary gets
// retries with backoff, each fallback gets a single attempt.
type Router struct {
	providers []Provider
	cfg       RouterConfig
	usage     Usage
}

// NewRouter creates a router. At least one provider is required.
func NewRouter(providers []Provider, cfg RouterConfig) (*Router, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one LLM provider is required")
	}
	if cfg.PrimaryAttempts <= 0 {
		cfg.PrimaryAttempts = DefaultRouterConfig().PrimaryAttempts
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultRouterConfig().CallTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultRouterConfig().BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultRouterConfig().BackoffMax
	}
	return &Router{providers: providers, cfg: cfg}, nil
}

// Usage exposes the run-wide accounting.
func (r *Router) Usage() *Usage { return &r.usage }

// PrimaryName returns the name of the first configured provider.
func (r *Router) PrimaryName() string { return r.providers[0].Name() }

// complete runs the retry/fallback loop for one prompt and returns the text
// together with the provider that produced it.
func (r *Router) complete(ctx context.Context, prompt string, opts CompleteOptions) (CompleteResult, string, error) {
	var lastErr error

	for i, provider := range r.providers {
		attempts := 1
		if i == 0 {
			attempts = r.cfg.PrimaryAttempts
		}

		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return CompleteResult{}, "", ctx.Err()
				case <-time.After(r.backoff(attempt)):
				}
			}

			callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
			result, err := provider.Complete(callCtx, prompt, opts)
			cancel()

			if err == nil {
				r.usage.record(result.Tokens)
				return result, provider.Name(), nil
			}
			lastErr = err
			r.usage.record(0)

			if Classify(err) == FailureProvider {
				logger.Warn("provider failure, switching provider",
					"provider", provider.Name(), "error", err.Error())
				break
			}
			logger.Debug("transient LLM failure",
				"provider", provider.Name(), "attempt", attempt+1, "error", err.Error())
		}
	}
	return CompleteResult{}, "", fmt.Errorf("all providers failed: %w", lastErr)
}

// backoff computes an exponential delay with jitter for the given attempt.
func (r *Router) backoff(attempt int) time.Duration {
	delay := r.cfg.BackoffBase << uint(attempt-1)
	if delay > r.cfg.BackoffMax {
		delay = r.cfg.BackoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay/2 + jitter
}

// GenerateText runs one free-text generation and returns the cleaned text.
func (r *Router) GenerateText(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	result, _, err := r.complete(ctx, prompt, CompleteOptions{MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

// Summarize produces a structured 3-4 bullet Summary for one item. A
// response that fails the schema gets one retry at the same position in the
// provider order before degrading to bullet parsing.
func (r *Router) Summarize(ctx context.Context, title, body, url, sourceID string) (core.Summary, error) {
	prompt := buildSummarizePrompt(title, body, url)

	for attempt := 0; attempt < 2; attempt++ {
		result, providerName, err := r.complete(ctx, prompt, CompleteOptions{MaxTokens: 1024, Temperature: 0.3})
		if err != nil {
			return core.Summary{}, err
		}

		payload, ok := ParseSummaryResponse(result.Text)
		if !ok {
			// Validation failure: one retry at the same provider order.
			continue
		}
		return core.Summary{
			Bullets:      payload.SummaryPoints,
			Confidence:   payload.Confidence,
			Reliability:  core.SourceReliability(payload.SourceReliability),
			Model:        providerName,
			FallbackUsed: providerName != r.PrimaryName(),
		}, nil
	}
	return core.Summary{}, fmt.Errorf("summary response failed schema validation twice")
}

// GenerateTitle produces a Japanese display title for an article.
func (r *Router) GenerateTitle(ctx context.Context, title string, bullets []string) (string, error) {
	prompt := buildTitlePrompt(title, bullets)
	text, err := r.GenerateText(ctx, prompt, 128, 0.4)
	if err != nil {
		return "", err
	}
	// Titles come back as a single line; drop anything past the first.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text), nil
}

// Embed generates one embedding, with the same retry/fallback policy as
// completions.
func (r *Router) Embed(ctx context.Context, text string, dimensions int) ([]float64, error) {
	var lastErr error

	for i, provider := range r.providers {
		attempts := 1
		if i == 0 {
			attempts = r.cfg.PrimaryAttempts
		}

		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(r.backoff(attempt)):
				}
			}

			callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
			embedding, err := provider.Embed(callCtx, text, dimensions)
			cancel()

			if err == nil {
				r.usage.record(len(text) / 4)
				return embedding, nil
			}
			lastErr = err
			if Classify(err) == FailureProvider {
				break
			}
		}
	}
	return nil, fmt.Errorf("all providers failed to embed: %w", lastErr)
}
