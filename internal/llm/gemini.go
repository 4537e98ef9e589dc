package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider is the primary provider, backed by the Gemini API.
type GeminiProvider struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGeminiProvider creates the Gemini provider. The API key comes from the
// environment via config; an empty key disables the provider at wiring time.
func NewGeminiProvider(ctx context.Context, apiKey, model, embeddingModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
	}, nil
}

// Name identifies the provider in logs and usage records.
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete runs one chat-completion call.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string, opts CompleteOptions) (CompleteResult, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return CompleteResult{}, fmt.Errorf("empty response from %s", p.model)
	}

	tokens := estimateTokens(prompt, text)
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return CompleteResult{Text: text, Tokens: tokens}, nil
}

// Embed generates an embedding with the configured output dimensionality.
func (p *GeminiProvider) Embed(ctx context.Context, text string, dimensions int) ([]float64, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
	}}

	cfg := &genai.EmbedContentConfig{}
	if dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(dimensions))
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from %s", p.embeddingModel)
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}
