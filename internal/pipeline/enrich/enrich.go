// Package enrich implements the Enricher pipeline stage: summary, topics,
// entities, sentiment, and embeddings, produced by five concurrent LLM
// calls per article and published as an EnrichedArticle. Generalizes the
// teacher's single-purpose Summarizer into a five-method LLMClient, and its
// concurrent fan-out style from usecase/fetch's feed-item processing.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"newsstream/internal/bus"
	"newsstream/internal/domain/stage"
	"newsstream/internal/utils/text"
)

// Truncation caps per spec §4.5, applied before a field is submitted to the model.
const (
	summaryInputCap  = 2000
	topicsInputCap   = 2000
	sentimentInputCap = 1500
	embedInputCap    = 1000
)

const passThroughSummaryCap = 200

// LLMClient is the five-call contract the enricher drives concurrently.
// Implementations wrap a concrete vendor SDK (internal/infra/llm.Anthropic)
// with the teacher's retry+circuit-breaker construction style.
type LLMClient interface {
	Summarize(ctx context.Context, text string) (string, error)
	ExtractTopics(ctx context.Context, text string) ([]string, error)
	ExtractEntities(ctx context.Context, text string) ([]string, error)
	Sentiment(ctx context.Context, text string) (stage.Sentiment, float64, error)
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelID identifies the underlying model for metadata annotation.
	ModelID() string
}

// MetricsRecorder generalizes the teacher's SummaryMetricsRecorder to cover
// all five enrichment calls.
type MetricsRecorder interface {
	RecordCallDuration(call string, duration time.Duration)
	RecordCallFailure(call string)
}

// Service consumes normalized_articles and publishes enriched_articles.
type Service struct {
	Bus     bus.Bus
	Client  LLMClient // nil selects pass-through mode
	Metrics MetricsRecorder

	EmbeddingDimension int

	NormalizedTopic string
	EnrichedTopic   string
}

// NewService constructs an enricher. client == nil runs the enricher in
// pass-through mode per spec §4.5.
func NewService(b bus.Bus, client LLMClient, metrics MetricsRecorder, embeddingDimension int, normalizedTopic, enrichedTopic string) *Service {
	if embeddingDimension <= 0 {
		embeddingDimension = 768
	}
	if normalizedTopic == "" {
		normalizedTopic = "normalized_articles"
	}
	if enrichedTopic == "" {
		enrichedTopic = "enriched_articles"
	}
	return &Service{
		Bus: b, Client: client, Metrics: metrics,
		EmbeddingDimension: embeddingDimension,
		NormalizedTopic:     normalizedTopic,
		EnrichedTopic:       enrichedTopic,
	}
}

// ProcessOne enriches a single normalized article and publishes the result.
func (s *Service) ProcessOne(ctx context.Context, normalized stage.NormalizedArticle) (stage.EnrichedArticle, error) {
	text := normalized.Text
	if normalized.TranslatedText != nil {
		text = *normalized.TranslatedText
	}
	title := normalized.Title
	if normalized.TranslatedTitle != nil {
		title = *normalized.TranslatedTitle
	}

	var enriched stage.EnrichedArticle
	var modelID string
	if s.Client == nil {
		enriched, modelID = s.passThrough(text, title)
	} else {
		enriched, modelID = s.callModel(ctx, text, title)
	}
	enriched.NormalizedArticle = normalized

	if enriched.Metadata == nil {
		enriched.Metadata = stage.Metadata{}
	}
	enriched.Metadata.Set("enrichment", "enriched_at", time.Now().UTC().Format(time.RFC3339))
	enriched.Metadata.Set("enrichment", "model", modelID)
	if s.Client == nil {
		enriched.Metadata.Set("enrichment", "embedding_model", "none")
	} else {
		enriched.Metadata.Set("enrichment", "embedding_model", modelID)
	}

	if err := s.Bus.Publish(ctx, s.EnrichedTopic, enriched.ID, enriched); err != nil {
		return stage.EnrichedArticle{}, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return enriched, nil
}

// passThrough synthesizes a deterministic EnrichedArticle per spec §4.5.
func (s *Service) passThrough(text, title string) (stage.EnrichedArticle, string) {
	summary := text
	if len(summary) > passThroughSummaryCap {
		summary = summary[:passThroughSummaryCap] + "..."
	}
	return stage.EnrichedArticle{
		Summary:        summary,
		Topics:         []string{"general", "news"},
		Entities:       []string{},
		Sentiment:      stage.SentimentNeutral,
		SentimentScore: 0.0,
		Embeddings:     []float32{},
	}, "pass-through"
}

// callModel issues the five LLM calls concurrently and awaits them
// together. Each goroutine recovers its own failure into the spec's
// per-field fallback rather than aborting its siblings, so one model
// call failing never blocks the other four.
func (s *Service) callModel(ctx context.Context, text, title string) (stage.EnrichedArticle, string) {
	var enriched stage.EnrichedArticle
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		summary, err := s.timedCall(egCtx, "summarize", func(c context.Context) (string, error) {
			return s.Client.Summarize(c, truncate(text, summaryInputCap))
		})
		if err != nil {
			enriched.Summary = fallbackSummary(text, title)
			return nil
		}
		enriched.Summary = summary
		return nil
	})

	eg.Go(func() error {
		topics, err := s.timedCallSlice(egCtx, "topics", func(c context.Context) ([]string, error) {
			return s.Client.ExtractTopics(c, truncate(text, topicsInputCap))
		})
		if err != nil {
			enriched.Topics = []string{}
			return nil
		}
		enriched.Topics = topics
		return nil
	})

	eg.Go(func() error {
		entities, err := s.timedCallSlice(egCtx, "entities", func(c context.Context) ([]string, error) {
			return s.Client.ExtractEntities(c, truncate(text, topicsInputCap))
		})
		if err != nil {
			enriched.Entities = []string{}
			return nil
		}
		enriched.Entities = entities
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		sentiment, score, err := s.Client.Sentiment(egCtx, truncate(text, sentimentInputCap))
		s.record("sentiment", start, err)
		if err != nil {
			enriched.Sentiment, enriched.SentimentScore = stage.SentimentNeutral, 0.5
			return nil
		}
		enriched.Sentiment, enriched.SentimentScore = sentiment, score
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		embeddings, err := s.Client.Embed(egCtx, truncate(text, embedInputCap))
		s.record("embed", start, err)
		if err != nil {
			enriched.Embeddings = make([]float32, s.EmbeddingDimension)
			return nil
		}
		enriched.Embeddings = embeddings
		return nil
	})

	_ = eg.Wait()
	return enriched, s.Client.ModelID()
}

func (s *Service) timedCall(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	start := time.Now()
	result, err := fn(ctx)
	s.record(name, start, err)
	return result, err
}

func (s *Service) timedCallSlice(ctx context.Context, name string, fn func(context.Context) ([]string, error)) ([]string, error) {
	start := time.Now()
	result, err := fn(ctx)
	s.record(name, start, err)
	return result, err
}

func (s *Service) record(call string, start time.Time, err error) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.RecordCallDuration(call, time.Since(start))
	if err != nil {
		slog.Warn("enrichment call failed, applying fallback", slog.String("call", call), slog.Any("error", err))
		s.Metrics.RecordCallFailure(call)
	}
}

// fallbackSummary returns the first two sentences of text, or title if
// text has none, per spec §4.5.
func fallbackSummary(text, title string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return title
	}
	if len(sentences) == 1 {
		return sentences[0]
	}
	return sentences[0] + " " + sentences[1]
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// truncate cuts s to at most limit characters, preferring to end at the last
// sentence boundary within the limit, per spec §4.5. Length is measured in
// runes rather than bytes since translated text (normalize.Translator's
// output) is frequently CJK, where a byte cap would cut mid-character.
func truncate(s string, limit int) string {
	if text.CountRunes(s) <= limit {
		return s
	}
	runes := []rune(s)
	window := string(runes[:limit])
	if idx := strings.LastIndexByte(window, '.'); idx > 0 {
		return window[:idx+1]
	}
	return window + "..."
}

// Run consumes from the normalized topic until ctx is cancelled, processing
// one message at a time. Deserialization failures are logged and the
// message is acked so it does not poison the subject forever, per spec §4.1.
func (s *Service) Run(ctx context.Context, group string) error {
	messages, err := s.Bus.Subscribe(ctx, []string{s.NormalizedTopic}, group)
	if err != nil {
		return err
	}

	for msg := range messages {
		var normalized stage.NormalizedArticle
		if err := decodeJSON(msg.Value, &normalized); err != nil {
			slog.Warn("skipping undeserializable normalized article", slog.Any("error", err))
			_ = msg.Ack()
			continue
		}

		if _, err := s.ProcessOne(ctx, normalized); err != nil {
			slog.Error("failed to publish enriched article", slog.String("id", normalized.ID), slog.Any("error", err))
			_ = msg.Nak()
			continue
		}
		_ = msg.Ack()
	}

	return nil
}
