// Package llm adapts Anthropic's SDK to the five-call enrich.LLMClient
// contract, grounded on internal/infra/summarizer/claude.go's client
// construction and circuit-breaker/retry wrapping, generalized from a
// single Summarize call to summary/topics/entities/sentiment/embedding.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"newsstream/internal/domain/stage"
	"newsstream/internal/resilience/circuitbreaker"
	"newsstream/internal/resilience/retry"
)

// maxPromptChars bounds the text submitted to the API, mirroring Claude's
// own 10,000-char safety truncation.
const maxPromptChars = 10000

const defaultMaxTopics = 5
const defaultMaxEntities = 10

// Anthropic implements enrich.LLMClient using Anthropic's Claude API for
// text calls and, when configured, an OpenAIEmbedder for the one call
// Anthropic's own API has no equivalent for.
type Anthropic struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          string
	maxTokens      int64
	embedder       *OpenAIEmbedder
}

// NewAnthropic constructs an enricher LLM client for the given API key and model.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	return &Anthropic{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          model,
		maxTokens:      1024,
	}
}

// WithEmbedder attaches an OpenAI-backed embedder and returns the receiver
// for chaining. Without it, Embed always falls back per spec §4.5.
func (a *Anthropic) WithEmbedder(embedder *OpenAIEmbedder) *Anthropic {
	a.embedder = embedder
	return a
}

// ModelID identifies the underlying model for enrichment metadata.
func (a *Anthropic) ModelID() string {
	return a.model
}

func (a *Anthropic) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following article in 1-2 sentences:\n%s", truncatePrompt(text))
	return a.complete(ctx, prompt)
}

func (a *Anthropic) ExtractTopics(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf("List up to %d topics for the following article as a comma-separated list, nothing else:\n%s",
		defaultMaxTopics, truncatePrompt(text))
	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseList(raw, defaultMaxTopics), nil
}

func (a *Anthropic) ExtractEntities(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf("List up to %d named entities (people, organizations, places) in the following article as a comma-separated list, nothing else:\n%s",
		defaultMaxEntities, truncatePrompt(text))
	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseList(raw, defaultMaxEntities), nil
}

func (a *Anthropic) Sentiment(ctx context.Context, text string) (stage.Sentiment, float64, error) {
	prompt := fmt.Sprintf("Is the following article positive, negative, or neutral in tone? Answer with exactly one word:\n%s", truncatePrompt(text))
	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return stage.SentimentNeutral, 0, err
	}
	return parseSentiment(raw), confidenceFor(raw), nil
}

// Embed delegates to the attached OpenAIEmbedder. Anthropic's chat API has
// no embeddings endpoint in this pack, so when no embedder is configured
// this errors and lets the enricher's zero-vector fallback apply.
func (a *Anthropic) Embed(ctx context.Context, text string) ([]float32, error) {
	if a.embedder == nil {
		return nil, errors.New("llm: no embedder configured")
	}
	return a.embedder.Embed(ctx, text)
}

// complete wraps a single prompt in retry+circuit-breaker, matching
// Claude.Summarize's construction exactly.
func (a *Anthropic) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var result string
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		cbResult, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doComplete(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("anthropic circuit breaker open, request rejected",
					slog.String("state", a.circuitBreaker.State().String()))
				return fmt.Errorf("anthropic api unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("anthropic completion failed after retries: %w", retryErr)
	}
	return result, nil
}

func (a *Anthropic) doComplete(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("anthropic api returned empty response")
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("anthropic api returned unexpected response type")
	}
	return block.Text, nil
}

func truncatePrompt(text string) string {
	if len(text) <= maxPromptChars {
		return text
	}
	return text[:maxPromptChars] + "...(truncated)"
}

// parseList splits a comma-separated response, trims each item, drops
// anything shorter than 2 chars, and caps the result, per spec §4.5.
func parseList(raw string, max int) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if len(trimmed) < 2 {
			continue
		}
		result = append(result, trimmed)
		if len(result) == max {
			break
		}
	}
	return result
}

// parseSentiment keyword-matches the model's one-word answer, per spec §4.5.
func parseSentiment(raw string) stage.Sentiment {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "positive"):
		return stage.SentimentPositive
	case strings.Contains(lower, "negative"):
		return stage.SentimentNegative
	default:
		return stage.SentimentNeutral
	}
}

// confidenceFor mirrors the spec's fixed confidence per matched keyword:
// +0.8 for positive, -0.8 for negative, 0.7 for neutral/unmatched.
func confidenceFor(raw string) float64 {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "positive"):
		return 0.8
	case strings.Contains(lower, "negative"):
		return -0.8
	default:
		return 0.7
	}
}
