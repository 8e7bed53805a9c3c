// Package translator models the translation service as an external
// collaborator per spec §1's explicit scoping ("out of scope, named
// interface only"). The interface generalizes the teacher's
// usecase/fetch.Summarizer one-method shape
// (Summarize(ctx, text) (string, error)) to a two-argument translate call.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsstream/internal/resilience/circuitbreaker"
	"newsstream/internal/resilience/retry"
)

// Translator translates text into the target language code.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// NoOp is used when ENABLE_TRANSLATION=false: it returns the input
// unchanged, so callers can treat "no translator configured" the same as
// "translator declined to translate" without a branch at every call site.
type NoOp struct{}

// Translate returns text unmodified.
func (NoOp) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

// HTTPClient is a stub client for a translation service reachable over
// HTTP, built the same way the teacher constructs its content-fetch HTTP
// client in infra/fetcher/readability.go: a bounded-timeout client wrapped
// by a circuit breaker and retry policy.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
}

// NewHTTPClient builds a translator client against endpoint
// (TRANSLATOR_ENDPOINT).
func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  circuitbreaker.New(circuitbreaker.TranslatorConfig()),
	}
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translated string `json:"translated"`
}

// Translate posts text to the configured endpoint and returns the
// translated result.
func (c *HTTPClient) Translate(ctx context.Context, text, target string) (string, error) {
	var result string

	err := retry.WithBackoff(ctx, retry.TranslatorConfig(), func() error {
		_, execErr := c.breaker.Execute(func() (interface{}, error) {
			translated, reqErr := c.doTranslate(ctx, text, target)
			if reqErr != nil {
				return nil, reqErr
			}
			result = translated
			return nil, nil
		})
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return result, nil
}

func (c *HTTPClient) doTranslate(ctx context.Context, text, target string) (string, error) {
	body, err := json.Marshal(translateRequest{Text: text, Target: target})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, Message: "translator request failed"}
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translator response: %w", err)
	}
	return decoded.Translated, nil
}
