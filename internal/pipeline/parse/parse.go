// Package parse implements the Parser/Deduper stage: strip markup from a
// RawArticle's content, reject posts too short to be worth indexing,
// compute the content hash, and drop anything already seen within the
// dedup window. Grounded on internal/usecase/fetch's "validate, log and
// continue" idiom and on domain/entity/validation.go's style of returning
// a ValidationError rather than a bare error for rejected input.
package parse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsstream/internal/bus"
	"newsstream/internal/dedup"
	"newsstream/internal/domain/stage"
)

// MinTextLength is the minimum post-clean text length; anything shorter is
// rejected before publish, per spec §4.3 and invariant 3.
const MinTextLength = 100

var whitespaceRun = regexp.MustCompile(`\s+`)

// Clean parses content as HTML, drops <script>/<style> subtrees, and
// collapses whitespace to single spaces — reusing goquery (already a
// teacher dependency, here exercising a new concern: content cleaning
// rather than site scraping).
func Clean(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()

	text := doc.Text()
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

// ContentHash computes SHA-256(lower(trim(title)) + lower(trim(text))),
// hex-encoded — the canonical dedup key, exactly as spec'd.
func ContentHash(title, text string) string {
	normalized := strings.ToLower(strings.TrimSpace(title)) + strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Service consumes raw_articles and publishes cleaned_articles.
type Service struct {
	Bus   bus.Bus
	Dedup dedup.Store

	RawTopic     string
	CleanedTopic string
}

// NewService constructs a parser/deduper bound to the given bus and dedup
// store, defaulting topic names per spec §6.
func NewService(b bus.Bus, d dedup.Store, rawTopic, cleanedTopic string) *Service {
	if rawTopic == "" {
		rawTopic = "raw_articles"
	}
	if cleanedTopic == "" {
		cleanedTopic = "cleaned_articles"
	}
	return &Service{Bus: b, Dedup: d, RawTopic: rawTopic, CleanedTopic: cleanedTopic}
}

// ProcessOne runs the clean → hash → dedup → publish pipeline for a single
// raw article. It never returns an error for a single malformed or
// duplicate article — those are logged and the article is simply not
// published — matching spec §7's "one bad record never blocks its
// successors" error kind split. It only returns an error for bus publish
// failures, which the caller (the consumer loop) logs and continues past.
func (s *Service) ProcessOne(ctx context.Context, raw stage.RawArticle) error {
	text, err := Clean(raw.Content)
	if err != nil {
		slog.Warn("dropping article: content could not be parsed as HTML",
			slog.String("id", raw.ID), slog.Any("error", err))
		return nil
	}

	if len(text) < MinTextLength {
		slog.Info("dropping article: post-clean text too short",
			slog.String("id", raw.ID), slog.Int("length", len(text)))
		return nil
	}

	hash := ContentHash(raw.Title, text)

	duplicate, err := s.Dedup.SeenOrRecord(ctx, hash)
	if err != nil {
		slog.Warn("dedup check failed, treating as non-duplicate",
			slog.String("id", raw.ID), slog.Any("error", err))
	}
	if duplicate {
		slog.Info("dropping duplicate article",
			slog.String("id", raw.ID), slog.String("content_hash", hash))
		return nil
	}

	cleaned := stage.CleanedArticle{
		RawArticle:  raw,
		Text:        text,
		IsDuplicate: false,
	}
	cleaned.ContentHash = hash

	if err := s.Bus.Publish(ctx, s.CleanedTopic, cleaned.ID, cleaned); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// Run consumes from the raw topic until ctx is cancelled, processing one
// message at a time. Deserialization failures are logged and the message
// is acked so it does not poison the subject forever, per spec §4.1.
func (s *Service) Run(ctx context.Context, group string) error {
	messages, err := s.Bus.Subscribe(ctx, []string{s.RawTopic}, group)
	if err != nil {
		return err
	}

	for msg := range messages {
		var raw stage.RawArticle
		if err := decodeJSON(msg.Value, &raw); err != nil {
			slog.Warn("skipping undeserializable raw article", slog.Any("error", err))
			_ = msg.Ack()
			continue
		}

		if err := s.ProcessOne(ctx, raw); err != nil {
			slog.Error("failed to publish cleaned article", slog.String("id", raw.ID), slog.Any("error", err))
			_ = msg.Nak()
			continue
		}
		_ = msg.Ack()
	}

	return nil
}
