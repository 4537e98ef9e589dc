// Package llm provides the provider-agnostic LLM router used by stages
// the LLM-backed stages: chat completion with retry and fallback, structured summary
// parsing, and embeddings.
package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// FailureKind classifies a provider error for the retry/fallback policy.
type FailureKind int

const (
	// FailureTransient covers network errors and timeouts; retried with
	// backoff on the same provider.
	FailureTransient FailureKind = iota
	// FailureProvider covers rate limits, quota, and auth; the router
	// switches to the next provider immediately.
	FailureProvider
	// FailureValidation covers responses that parsed but failed the schema.
	FailureValidation
)

// CompleteOptions tunes one chat-completion call.
type CompleteOptions struct {
	MaxTokens   int
	Temperature float32
}

// CompleteResult is the raw text outcome of one provider call.
type CompleteResult struct {
	Text   string
	Tokens int // Provider-reported total tokens, or an estimate
}

// Provider is one configured LLM backend. Identities are opaque strings to
// the router's callers.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (CompleteResult, error)
	Embed(ctx context.Context, text string, dimensions int) ([]float64, error)
}

// Classify maps a provider error to a FailureKind.
func Classify(err error) FailureKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return FailureProvider
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return FailureProvider
		case apiErr.HTTPStatusCode >= 500:
			return FailureTransient
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return FailureProvider
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "api key"):
		return FailureProvider
	}
	return FailureTransient
}

// estimateTokens is the fallback when a provider reports no usage.
func estimateTokens(prompt, response string) int {
	return (len(prompt) + len(response)) / 4
}
