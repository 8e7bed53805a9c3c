// Package normalize implements the Normalizer stage: language detection,
// optional translation, and word counting. Grounded on the teacher's
// usecase/fetch.Summarizer one-method interface pattern, generalized to
// the translator.Translator interface.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsstream/internal/bus"
	"newsstream/internal/domain/stage"
	"newsstream/internal/infra/langdetect"
	"newsstream/internal/infra/translator"
)

// titleDetectionChars is how much of the cleaned text is offered to the
// translator's own language detection, per spec §4.4.
const titleDetectionChars = 1000

// translatedTextCap is the maximum number of characters of text submitted
// for translation, per spec §4.4.
const translatedTextCap = 2000

// Service consumes cleaned_articles and publishes normalized_articles.
type Service struct {
	Bus        bus.Bus
	Detector   langdetect.Detector
	Translator translator.Translator

	EnableTranslation bool
	TargetLanguage    string

	CleanedTopic    string
	NormalizedTopic string
}

// NewService constructs a normalizer.
func NewService(b bus.Bus, detector langdetect.Detector, t translator.Translator, enableTranslation bool, targetLanguage, cleanedTopic, normalizedTopic string) *Service {
	if targetLanguage == "" {
		targetLanguage = "en"
	}
	if cleanedTopic == "" {
		cleanedTopic = "cleaned_articles"
	}
	if normalizedTopic == "" {
		normalizedTopic = "normalized_articles"
	}
	return &Service{
		Bus: b, Detector: detector, Translator: t,
		EnableTranslation: enableTranslation, TargetLanguage: targetLanguage,
		CleanedTopic: cleanedTopic, NormalizedTopic: normalizedTopic,
	}
}

// ProcessOne detects language, optionally translates, counts words, and
// publishes the normalized article.
func (s *Service) ProcessOne(ctx context.Context, cleaned stage.CleanedArticle) (stage.NormalizedArticle, error) {
	language := s.Detector.Detect(cleaned.Text)

	var translatedTitle, translatedText *string
	if s.EnableTranslation && language != s.TargetLanguage {
		title, err := s.Translator.Translate(ctx, cleaned.Title, s.TargetLanguage)
		if err != nil {
			slog.Warn("title translation failed, leaving untranslated",
				slog.String("id", cleaned.ID), slog.Any("error", err))
		} else {
			translatedTitle = &title
		}

		truncated := cleaned.Text
		if len(truncated) > translatedTextCap {
			truncated = truncated[:translatedTextCap]
		}
		text, err := s.Translator.Translate(ctx, truncated, s.TargetLanguage)
		if err != nil {
			slog.Warn("text translation failed, leaving untranslated",
				slog.String("id", cleaned.ID), slog.Any("error", err))
		} else {
			translatedText = &text
		}
	}

	normalized := stage.NormalizedArticle{
		CleanedArticle:  cleaned,
		Language:        language,
		TranslatedTitle: translatedTitle,
		TranslatedText:  translatedText,
		WordCount:       wordCount(cleaned.Text),
	}

	if normalized.Metadata == nil {
		normalized.Metadata = stage.Metadata{}
	}
	normalized.Metadata.Set("normalization", "detector", "whatlang")
	normalized.Metadata.Set("normalization", "translation_enabled", s.EnableTranslation)

	if err := s.Bus.Publish(ctx, s.NormalizedTopic, normalized.ID, normalized); err != nil {
		return stage.NormalizedArticle{}, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return normalized, nil
}

// wordCount counts whitespace-separated non-empty tokens, per spec §4.4.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

// Run consumes from the cleaned topic until ctx is cancelled, processing
// one message at a time. Deserialization failures are logged and the
// message is acked so it does not poison the subject forever, per spec §4.1.
func (s *Service) Run(ctx context.Context, group string) error {
	messages, err := s.Bus.Subscribe(ctx, []string{s.CleanedTopic}, group)
	if err != nil {
		return err
	}

	for msg := range messages {
		var cleaned stage.CleanedArticle
		if err := decodeJSON(msg.Value, &cleaned); err != nil {
			slog.Warn("skipping undeserializable cleaned article", slog.Any("error", err))
			_ = msg.Ack()
			continue
		}

		if _, err := s.ProcessOne(ctx, cleaned); err != nil {
			slog.Error("failed to publish normalized article", slog.String("id", cleaned.ID), slog.Any("error", err))
			_ = msg.Nak()
			continue
		}
		_ = msg.Ack()
	}

	return nil
}
