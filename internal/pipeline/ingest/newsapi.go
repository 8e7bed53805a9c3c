package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"newsstream/internal/resilience/circuitbreaker"
	"newsstream/internal/resilience/retry"
)

// newsAPIBaseURL is the default top-headlines endpoint.
const newsAPIBaseURL = "https://newsapi.org/v2/top-headlines"

// newsAPIPageSize is the single page size fetched per cycle, per spec §4.2.
const newsAPIPageSize = 100

// Headline is one article synthesized from the headline API.
type Headline struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// NewsAPIClient fetches one page of top headlines when NEWSAPI_KEY is set.
// Construction mirrors the teacher's ReadabilityFetcher: a dedicated
// http.Client, wrapped in a circuit breaker and retried with backoff.
type NewsAPIClient struct {
	apiKey         string
	baseURL        string
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config

	// SourceName is used as RawArticle.Source for every headline produced.
	SourceName string
}

// NewNewsAPIClient constructs a client for the given API key.
func NewNewsAPIClient(apiKey string) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey:         apiKey,
		baseURL:        newsAPIBaseURL,
		client:         &http.Client{Timeout: 15 * time.Second},
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		SourceName:     "newsapi",
	}
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// FetchHeadlines fetches a single page of up to newsAPIPageSize headlines.
func (c *NewsAPIClient) FetchHeadlines(ctx context.Context) ([]Headline, error) {
	var headlines []Headline

	err := retry.WithBackoff(ctx, c.retryConfig, func() error {
		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doFetch(ctx)
		})
		if err != nil {
			return err
		}
		headlines = result.([]Headline)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headlines, nil
}

func (c *NewsAPIClient) doFetch(ctx context.Context) ([]Headline, error) {
	reqURL := fmt.Sprintf("%s?pageSize=%d&apiKey=%s", c.baseURL, newsAPIPageSize, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("headline api request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read headline api response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode headline api response: %w", err)
	}

	headlines := make([]Headline, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		content := a.Content
		if content == "" {
			content = a.Description
		}
		h := Headline{Title: a.Title, URL: a.URL, Content: content}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			h.PublishedAt = t
		}
		headlines = append(headlines, h)
	}
	return headlines, nil
}
