package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider is the fallback provider.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates the OpenAI provider.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Name identifies the provider in logs and usage records.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete runs one chat-completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, opts CompleteOptions) (CompleteResult, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return CompleteResult{}, fmt.Errorf("empty response from %s", p.model)
	}

	text := resp.Choices[0].Message.Content
	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(prompt, text)
	}
	return CompleteResult{Text: text, Tokens: tokens}, nil
}

// Embed generates an embedding via the small embedding model. OpenAI's
// text-embedding-3 family supports shortened output dimensions natively.
func (p *OpenAIProvider) Embed(ctx context.Context, text string, dimensions int) ([]float64, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	}
	if dimensions > 0 {
		req.Dimensions = dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}

	values := resp.Data[0].Embedding
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}
