package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"newsstream/internal/domain/stage"
)

// MockStore is the construction-time Store variant served when the search
// store is unreachable at startup, per spec §9's "mock mode is a
// construction-time variant of the repository interface" design note — a
// runtime flag is never branched on at call sites.
type MockStore struct {
	mu       sync.RWMutex
	articles map[string]stage.EnrichedArticle
}

// NewMockStore seeds a small fixed corpus matching scenario S6 (a built-in
// article whose title contains "AI").
func NewMockStore() *MockStore {
	now := seedTime()
	seed := []stage.EnrichedArticle{
		builtinArticle("mock-1", "Breakthrough in AI Research Announced", "positive", 0.8, now),
		builtinArticle("mock-2", "Local Elections See Record Turnout", "neutral", 0.1, now.Add(-24*time.Hour)),
		builtinArticle("mock-3", "Markets Slide on Inflation Fears", "negative", -0.6, now.Add(-48*time.Hour)),
	}

	m := &MockStore{articles: make(map[string]stage.EnrichedArticle, len(seed))}
	for _, a := range seed {
		m.articles[a.ID] = a
	}
	return m
}

// seedTime is fixed rather than time.Now() so the mock corpus's relative
// ordering is deterministic across test runs.
func seedTime() time.Time {
	return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
}

func builtinArticle(id, title, sentiment string, score float64, publishedAt time.Time) stage.EnrichedArticle {
	var a stage.EnrichedArticle
	a.ID = id
	a.URL = "https://example.com/" + id
	a.Title = title
	a.Text = title + " — full mock article body for local development and demos."
	a.Summary = title
	a.Source = "mock"
	a.Language = "en"
	a.Topics = []string{"general", "news"}
	a.Entities = []string{}
	a.Sentiment = stage.Sentiment(sentiment)
	a.SentimentScore = score
	a.WordCount = len(strings.Fields(a.Text))
	a.PublishedAt = publishedAt
	a.Embeddings = []float32{}
	return a
}

// Index adds or replaces an article in the in-memory corpus.
func (m *MockStore) Index(_ context.Context, article stage.EnrichedArticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.ID] = article
	return nil
}

// Search performs the same filter semantics as Elasticsearch, evaluated
// in-process over the fixed corpus.
func (m *MockStore) Search(_ context.Context, f Filters) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := time.Now()
	var matched []stage.EnrichedArticle
	for _, a := range m.articles {
		if matchesFilters(a, f) {
			matched = append(matched, a)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.Size
	if size < 1 || size > 100 {
		size = 20
	}

	total := len(matched)
	from := (page - 1) * size
	to := from + size
	if from > total {
		from = total
	}
	if to > total {
		to = total
	}

	return Result{
		Articles: matched[from:to],
		Total:    total,
		Page:     page,
		Size:     size,
		Took:     time.Since(start),
	}, nil
}

func matchesFilters(a stage.EnrichedArticle, f Filters) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		haystack := strings.ToLower(a.Title + " " + a.Summary + " " + a.Text + " " + strings.Join(a.Topics, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	if len(f.Topics) > 0 && !containsAny(a.Topics, f.Topics) {
		return false
	}
	if len(f.Sources) > 0 && !contains(f.Sources, a.Source) {
		return false
	}
	if len(f.Languages) > 0 && !contains(f.Languages, a.Language) {
		return false
	}
	if f.Sentiment != "" && a.Sentiment != f.Sentiment {
		return false
	}
	if f.DateFrom != nil && a.PublishedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && a.PublishedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsAny(list, candidates []string) bool {
	for _, c := range candidates {
		if contains(list, c) {
			return true
		}
	}
	return false
}

// Get returns a single article by id, or ErrNotFound.
func (m *MockStore) Get(_ context.Context, id string) (stage.EnrichedArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return stage.EnrichedArticle{}, ErrNotFound
	}
	return a, nil
}

// Latest returns up to limit most recent articles, optionally filtered.
func (m *MockStore) Latest(ctx context.Context, limit int, source, language string) ([]stage.EnrichedArticle, error) {
	f := Filters{Page: 1, Size: limit}
	if source != "" {
		f.Sources = []string{source}
	}
	if language != "" {
		f.Languages = []string{language}
	}
	result, err := m.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return result.Articles, nil
}

// Stats aggregates the fixed corpus.
func (m *MockStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sourceSet := map[string]bool{}
	langSet := map[string]bool{}
	sentimentSet := map[string]bool{}
	dayCounts := map[string]int{}

	for _, a := range m.articles {
		sourceSet[a.Source] = true
		langSet[a.Language] = true
		sentimentSet[string(a.Sentiment)] = true
		dayCounts[a.PublishedAt.Format("2006-01-02")]++
	}

	days := make([]DailyCount, 0, len(dayCounts))
	for day, count := range dayCounts {
		days = append(days, DailyCount{Date: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })

	return Stats{
		TotalArticles: len(m.articles),
		Sources:       keysOf(sourceSet),
		Languages:     keysOf(langSet),
		Sentiments:    keysOf(sentimentSet),
		DailyCounts:   days,
	}, nil
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Healthy always reports true: the mock corpus cannot be unreachable.
func (m *MockStore) Healthy(_ context.Context) bool { return true }

// Close is a no-op.
func (m *MockStore) Close() error { return nil }
