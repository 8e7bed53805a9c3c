// Package index implements the Indexer pipeline stage: it consumes
// enriched_articles and writes each into the search Store. Grounded on the
// parse/normalize/enrich stages' consume-process-ack loop, narrowed here
// to a single store call with no further publish.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"newsstream/internal/bus"
	"newsstream/internal/domain/stage"
	"newsstream/internal/search"
)

// IndexRecorder records indexing outcomes.
type IndexRecorder interface {
	RecordIndexSuccess()
	RecordIndexFailure()
}

// Service consumes enriched_articles and indexes each into Store.
type Service struct {
	Bus     bus.Bus
	Store   search.Store
	Metrics IndexRecorder

	EnrichedTopic string
}

// NewService constructs an indexer.
func NewService(b bus.Bus, store search.Store, enrichedTopic string) *Service {
	if enrichedTopic == "" {
		enrichedTopic = "enriched_articles"
	}
	return &Service{Bus: b, Store: store, EnrichedTopic: enrichedTopic}
}

// ProcessOne indexes a single enriched article.
func (s *Service) ProcessOne(ctx context.Context, article stage.EnrichedArticle) error {
	start := time.Now()
	err := s.Store.Index(ctx, article)
	if s.Metrics != nil {
		if err != nil {
			s.Metrics.RecordIndexFailure()
		} else {
			s.Metrics.RecordIndexSuccess()
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
	}
	slog.Debug("indexed article", slog.String("id", article.ID), slog.Duration("took", time.Since(start)))
	return nil
}

// Run consumes from the enriched topic until ctx is cancelled, indexing one
// message at a time. Deserialization failures are logged and the message
// is acked so it does not poison the subject forever, per spec §4.1.
func (s *Service) Run(ctx context.Context, group string) error {
	messages, err := s.Bus.Subscribe(ctx, []string{s.EnrichedTopic}, group)
	if err != nil {
		return err
	}

	for msg := range messages {
		var article stage.EnrichedArticle
		if err := json.Unmarshal(msg.Value, &article); err != nil {
			slog.Warn("skipping undeserializable enriched article", slog.Any("error", err))
			_ = msg.Ack()
			continue
		}

		if err := s.ProcessOne(ctx, article); err != nil {
			slog.Error("failed to index article", slog.String("id", article.ID), slog.Any("error", err))
			_ = msg.Nak()
			continue
		}
		_ = msg.Ack()
	}

	return nil
}
