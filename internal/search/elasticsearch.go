package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"newsstream/internal/domain/stage"
	"newsstream/internal/resilience/circuitbreaker"
	"newsstream/internal/resilience/retry"
)

// IndexPattern is the monthly index name prefix; a given article lands in
// "{IndexPattern}-YYYY-MM".
const defaultIndexPattern = "news"

// templateName is the fixed name of the index template registered against
// "{IndexPattern}-*", mirroring setup_elasticsearch.py's "news_template".
const templateName = "news_template"

// defaultBatchSize is ES_BATCH_SIZE's fallback, matching worker.py's
// get_env_var("ES_BATCH_SIZE", "100").
const defaultBatchSize = 100

// ElasticsearchConfig configures the Elasticsearch-backed Store.
type ElasticsearchConfig struct {
	Addresses    []string
	IndexPattern string
	EmbeddingDim int
	TLSInsecure  bool
	BatchSize    int
}

// pendingDoc is one document accumulated in the indexer's in-memory batch,
// waiting for the batch to reach BatchSize before it is flushed as a single
// _bulk request.
type pendingDoc struct {
	index string
	id    string
	body  []byte
}

// Elasticsearch is the production Store implementation. Elasticsearch is an
// out-of-pack dependency (see DESIGN.md): it appears only as a manifest
// go.mod reference in the retrieval pack, so this adapter follows the
// client's own documented esapi shape rather than a pack file, while the
// lazy index-exists-then-create idiom is transplanted from the teacher's
// postgres.ArticleRepo. Batching is a manual, document-count-based pending
// slice flushed through a raw _bulk request, grounded on worker.py's
// add_to_batch/process_batch rather than esutil.BulkIndexer's byte/time-only
// auto-flush, since ES_BATCH_SIZE is a count threshold the library itself
// does not expose.
type Elasticsearch struct {
	client       *elasticsearch.Client
	indexPattern string
	embeddingDim int
	breaker      *circuitbreaker.CircuitBreaker
	ensured      map[string]bool

	templateOnce sync.Once
	templateErr  error

	batchSize int
	mu        sync.Mutex
	pending   []pendingDoc
}

// NewElasticsearch constructs the client and verifies connectivity. On
// construction failure the caller should fall back to MockStore per spec
// §9's construction-time mock variant.
func NewElasticsearch(cfg ElasticsearchConfig) (*Elasticsearch, error) {
	pattern := cfg.IndexPattern
	if pattern == "" {
		pattern = defaultIndexPattern
	}
	dim := cfg.EmbeddingDim
	if dim <= 0 {
		dim = 768
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("construct elasticsearch client: %w", err)
	}

	es := &Elasticsearch{
		client:       client,
		indexPattern: pattern,
		embeddingDim: dim,
		breaker:      circuitbreaker.New(circuitbreaker.SearchStoreConfig()),
		ensured:      make(map[string]bool),
		batchSize:    nonZeroOr(cfg.BatchSize, defaultBatchSize),
	}

	return es, nil
}

func nonZeroOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// monthlyIndex names the current calendar-month index using the indexer
// host's UTC clock at write time, per spec §4.6 — never the article's own
// PublishedAt, which worker.py:129 (datetime.utcnow().strftime("%Y-%m"))
// confirms is independent of publish date.
func (es *Elasticsearch) monthlyIndex() string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s-%04d-%02d", es.indexPattern, now.Year(), int(now.Month()))
}

// ensureTemplate registers the news_template composable template exactly
// once, applying it to "{indexPattern}-*" so every monthly index created
// from then on inherits its settings and mappings automatically, mirroring
// setup_elasticsearch.py's put_index_template call.
func (es *Elasticsearch) ensureTemplate(ctx context.Context) error {
	es.templateOnce.Do(func() {
		resp, err := es.client.Indices.PutIndexTemplate(templateName,
			strings.NewReader(es.templateBody()),
			es.client.Indices.PutIndexTemplate.WithContext(ctx),
		)
		if err != nil {
			es.templateErr = fmt.Errorf("register %s: %w", templateName, err)
			return
		}
		defer resp.Body.Close()
		if resp.IsError() {
			es.templateErr = fmt.Errorf("register %s: %s", templateName, resp.String())
		}
	})
	return es.templateErr
}

// ensureIndex creates the monthly index on first write of a given month,
// mirroring postgres.ArticleRepo's check-then-create idiom retargeted at ES
// index existence. The index itself carries no inline mapping — the
// news_template applies one by pattern match.
func (es *Elasticsearch) ensureIndex(ctx context.Context, index string) error {
	if es.ensured[index] {
		return nil
	}

	if err := es.ensureTemplate(ctx); err != nil {
		return err
	}

	existsResp, err := es.client.Indices.Exists([]string{index}, es.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer existsResp.Body.Close()

	if existsResp.StatusCode == 200 {
		es.ensured[index] = true
		return nil
	}

	createResp, err := es.client.Indices.Create(index, es.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer createResp.Body.Close()
	if createResp.IsError() && !strings.Contains(createResp.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", index, createResp.String())
	}

	es.ensured[index] = true
	return nil
}

// templateBody is the full §4.6 schema: a custom lowercase+stop+stemming
// analyzer applied to every analyzed text field, title's keyword sub-field
// capped at 256 chars, metadata stored but not indexed, and the embeddings
// dense_vector with kNN search enabled. Grounded on
// setup_elasticsearch.py's news_template dict.
func (es *Elasticsearch) templateBody() string {
	return fmt.Sprintf(`{
  "index_patterns": ["%s-*"],
  "template": {
    "settings": {
      "analysis": {
        "analyzer": {
          "news_analyzer": {
            "type": "custom",
            "tokenizer": "standard",
            "filter": ["lowercase", "stop", "snowball"]
          }
        }
      }
    },
    "mappings": {
      "properties": {
        "id": {"type": "keyword"},
        "url": {"type": "keyword"},
        "content_hash": {"type": "keyword"},
        "title": {
          "type": "text",
          "analyzer": "news_analyzer",
          "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}
        },
        "text": {"type": "text", "analyzer": "news_analyzer"},
        "summary": {"type": "text", "analyzer": "news_analyzer"},
        "translated_title": {"type": "text", "analyzer": "news_analyzer"},
        "translated_text": {"type": "text", "analyzer": "news_analyzer"},
        "source": {"type": "keyword"},
        "author": {"type": "keyword"},
        "language": {"type": "keyword"},
        "topics": {"type": "keyword"},
        "entities": {"type": "keyword"},
        "sentiment": {"type": "keyword"},
        "sentiment_score": {"type": "float"},
        "word_count": {"type": "integer"},
        "published_at": {"type": "date"},
        "scraped_at": {"type": "date"},
        "metadata": {"type": "object", "enabled": false},
        "embeddings": {"type": "dense_vector", "dims": %d, "similarity": "cosine", "index": true}
      }
    }
  }
}`, es.indexPattern, es.embeddingDim)
}

type esDoc struct {
	ID              string         `json:"id"`
	URL             string         `json:"url"`
	ContentHash     string         `json:"content_hash"`
	Title           string         `json:"title"`
	Text            string         `json:"text"`
	Summary         string         `json:"summary"`
	TranslatedTitle *string        `json:"translated_title,omitempty"`
	TranslatedText  *string        `json:"translated_text,omitempty"`
	Source          string         `json:"source"`
	Author          *string        `json:"author,omitempty"`
	Language        string         `json:"language"`
	Topics          []string       `json:"topics"`
	Entities        []string       `json:"entities"`
	Sentiment       string         `json:"sentiment"`
	SentimentScore  float64        `json:"sentiment_score"`
	WordCount       int            `json:"word_count"`
	PublishedAt     time.Time      `json:"published_at"`
	ScrapedAt       time.Time      `json:"scraped_at"`
	Metadata        stage.Metadata `json:"metadata,omitempty"`
	Embeddings      []float32      `json:"embeddings,omitempty"`
}

func toDoc(a stage.EnrichedArticle) esDoc {
	return esDoc{
		ID:              a.ID,
		URL:             a.URL,
		ContentHash:     a.ContentHash,
		Title:           a.Title,
		Text:            a.Text,
		Summary:         a.Summary,
		TranslatedTitle: a.TranslatedTitle,
		TranslatedText:  a.TranslatedText,
		Source:          a.Source,
		Author:          a.Author,
		Language:        a.Language,
		Topics:          a.Topics,
		Entities:        a.Entities,
		Sentiment:       string(a.Sentiment),
		SentimentScore:  a.SentimentScore,
		WordCount:       a.WordCount,
		PublishedAt:     a.PublishedAt,
		ScrapedAt:       a.ScrapedAt,
		Metadata:        a.Metadata,
		Embeddings:      a.Embeddings,
	}
}

func fromDoc(d esDoc) stage.EnrichedArticle {
	var out stage.EnrichedArticle
	out.ID = d.ID
	out.URL = d.URL
	out.ContentHash = d.ContentHash
	out.Title = d.Title
	out.Text = d.Text
	out.Summary = d.Summary
	out.TranslatedTitle = d.TranslatedTitle
	out.TranslatedText = d.TranslatedText
	out.Source = d.Source
	out.Author = d.Author
	out.Language = d.Language
	out.Topics = d.Topics
	out.Entities = d.Entities
	out.Sentiment = stage.Sentiment(d.Sentiment)
	out.SentimentScore = d.SentimentScore
	out.WordCount = d.WordCount
	out.PublishedAt = d.PublishedAt
	out.ScrapedAt = d.ScrapedAt
	out.Metadata = d.Metadata
	out.Embeddings = d.Embeddings
	return out
}

// Index appends article to the in-memory pending batch for its
// calendar-month index, creating the index first if this is the first
// write of the month. Once the batch reaches BatchSize documents it is
// flushed as a single _bulk request; the batch is cleared whether or not
// the flush succeeds, matching worker.py's "clear batch to prevent
// infinite retries" — a failed flush is logged upstream, never replayed.
func (es *Elasticsearch) Index(ctx context.Context, article stage.EnrichedArticle) error {
	index := es.monthlyIndex()
	if err := es.ensureIndex(ctx, index); err != nil {
		return err
	}

	doc := toDoc(article)
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	var batch []pendingDoc
	es.mu.Lock()
	es.pending = append(es.pending, pendingDoc{index: index, id: article.ID, body: payload})
	if len(es.pending) >= es.batchSize {
		batch = es.pending
		es.pending = nil
	}
	es.mu.Unlock()

	if batch == nil {
		return nil
	}
	return es.flush(ctx, batch)
}

// flush sends a batch of pending documents as a single NDJSON _bulk
// request, retried and circuit-broken like every other ES call.
func (es *Elasticsearch) flush(ctx context.Context, batch []pendingDoc) error {
	var buf bytes.Buffer
	for _, item := range batch {
		meta, _ := json.Marshal(map[string]any{
			"index": map[string]any{"_index": item.index, "_id": item.id},
		})
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(item.body)
		buf.WriteByte('\n')
	}

	return retry.WithBackoff(ctx, retry.SearchStoreConfig(), func() error {
		_, execErr := es.breaker.Execute(func() (interface{}, error) {
			resp, reqErr := es.client.Bulk(bytes.NewReader(buf.Bytes()), es.client.Bulk.WithContext(ctx))
			if reqErr != nil {
				return nil, reqErr
			}
			defer resp.Body.Close()
			if resp.IsError() {
				return nil, fmt.Errorf("bulk index failed: %s", resp.String())
			}
			return nil, nil
		})
		return execErr
	})
}

// Search runs a multi-field best-fields match with filters, sorted newest
// first, exactly per spec §4.7.
func (es *Elasticsearch) Search(ctx context.Context, f Filters) (Result, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.Size
	if size < 1 || size > 100 {
		size = 20
	}

	query := buildSearchQuery(f, page, size)
	body, err := json.Marshal(query)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var parsed esSearchResponse
	err = retry.WithBackoff(ctx, retry.SearchStoreConfig(), func() error {
		_, execErr := es.breaker.Execute(func() (interface{}, error) {
			resp, reqErr := es.client.Search(
				es.client.Search.WithContext(ctx),
				es.client.Search.WithIndex(es.indexPattern+"-*"),
				es.client.Search.WithBody(bytes.NewReader(body)),
			)
			if reqErr != nil {
				return nil, reqErr
			}
			defer resp.Body.Close()
			if resp.IsError() {
				return nil, fmt.Errorf("search failed: %s", resp.String())
			}
			return nil, json.NewDecoder(resp.Body).Decode(&parsed)
		})
		return execErr
	})
	if err != nil {
		return Result{}, err
	}

	articles := make([]stage.EnrichedArticle, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		articles = append(articles, fromDoc(hit.Source))
	}

	return Result{
		Articles: articles,
		Total:    parsed.Hits.Total.Value,
		Page:     page,
		Size:     size,
		Took:     time.Since(start),
	}, nil
}

type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source esDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildSearchQuery(f Filters, page, size int) map[string]any {
	must := []map[string]any{}

	if f.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     f.Query,
				"fields":    []string{"title^3", "summary^2", "text", "topics^2", "entities"},
				"fuzziness": "AUTO",
				"type":      "best_fields",
			},
		})
	}
	if len(f.Topics) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"topics": f.Topics}})
	}
	if len(f.Sources) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"source": f.Sources}})
	}
	if len(f.Languages) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{"language": f.Languages}})
	}
	if f.Sentiment != "" {
		must = append(must, map[string]any{"term": map[string]any{"sentiment": string(f.Sentiment)}})
	}
	if f.DateFrom != nil || f.DateTo != nil {
		rng := map[string]any{}
		if f.DateFrom != nil {
			rng["gte"] = f.DateFrom.Format(time.RFC3339)
		}
		if f.DateTo != nil {
			rng["lte"] = f.DateTo.Format(time.RFC3339)
		}
		must = append(must, map[string]any{"range": map[string]any{"published_at": rng}})
	}

	query := map[string]any{"match_all": map[string]any{}}
	if len(must) > 0 {
		query = map[string]any{"bool": map[string]any{"must": must}}
	}

	return map[string]any{
		"query": query,
		"sort":  []map[string]any{{"published_at": map[string]any{"order": "desc"}}},
		"from":  (page - 1) * size,
		"size":  size,
	}
}

// Get fetches a single document by id across the monthly index pattern.
func (es *Elasticsearch) Get(ctx context.Context, id string) (stage.EnrichedArticle, error) {
	var doc esDoc
	found := false
	execErr := retry.WithBackoff(ctx, retry.SearchStoreConfig(), func() error {
		_, breakerErr := es.breaker.Execute(func() (interface{}, error) {
			resp, searchErr := esapi.SearchRequest{
				Index: []string{es.indexPattern + "-*"},
				Body: strings.NewReader(fmt.Sprintf(
					`{"query":{"term":{"id":"%s"}},"size":1}`, id)),
			}.Do(ctx, es.client)
			if searchErr != nil {
				return nil, searchErr
			}
			defer resp.Body.Close()
			if resp.IsError() {
				return nil, fmt.Errorf("get failed: %s", resp.String())
			}
			var parsed esSearchResponse
			if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
				return nil, decodeErr
			}
			if len(parsed.Hits.Hits) == 0 {
				return nil, nil
			}
			doc = parsed.Hits.Hits[0].Source
			found = true
			return nil, nil
		})
		return breakerErr
	})
	if execErr != nil {
		return stage.EnrichedArticle{}, execErr
	}
	if !found {
		return stage.EnrichedArticle{}, ErrNotFound
	}
	return fromDoc(doc), nil
}

// Latest returns up to limit most recent articles, optionally filtered.
func (es *Elasticsearch) Latest(ctx context.Context, limit int, source, language string) ([]stage.EnrichedArticle, error) {
	f := Filters{Page: 1, Size: limit}
	if source != "" {
		f.Sources = []string{source}
	}
	if language != "" {
		f.Languages = []string{language}
	}
	result, err := es.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return result.Articles, nil
}

// dailyCountsWindow bounds the /stats daily_counts series to its last 7
// entries, per spec §4.7. The underlying query is not date-range-filtered:
// like main.py's /stats handler, it queries full history ordered
// newest-bucket-first and slices the result, rather than adding a
// query-level time window.
const dailyCountsWindow = 7

// Stats aggregates corpus-wide counts via terms aggregations. Per spec
// §4.7, sources/languages/sentiments are capped to their top 20/10/3 by
// the aggregation's own size, while total_articles stays corpus-wide.
func (es *Elasticsearch) Stats(ctx context.Context) (Stats, error) {
	aggQuery := `{
  "size": 0,
  "aggs": {
    "sources": {"terms": {"field": "source", "size": 20}},
    "languages": {"terms": {"field": "language", "size": 10}},
    "sentiments": {"terms": {"field": "sentiment", "size": 3}},
    "daily": {"date_histogram": {"field": "published_at", "calendar_interval": "day", "min_doc_count": 1, "order": {"_key": "desc"}}}
  }
}`

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Sources    esTermsAgg `json:"sources"`
			Languages  esTermsAgg `json:"languages"`
			Sentiments esTermsAgg `json:"sentiments"`
			Daily      struct {
				Buckets []struct {
					KeyAsString string `json:"key_as_string"`
					DocCount    int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"daily"`
		} `json:"aggregations"`
	}

	err := retry.WithBackoff(ctx, retry.SearchStoreConfig(), func() error {
		_, execErr := es.breaker.Execute(func() (interface{}, error) {
			resp, reqErr := es.client.Search(
				es.client.Search.WithContext(ctx),
				es.client.Search.WithIndex(es.indexPattern+"-*"),
				es.client.Search.WithBody(strings.NewReader(aggQuery)),
			)
			if reqErr != nil {
				return nil, reqErr
			}
			defer resp.Body.Close()
			if resp.IsError() {
				return nil, fmt.Errorf("stats failed: %s", resp.String())
			}
			return nil, json.NewDecoder(resp.Body).Decode(&parsed)
		})
		return execErr
	})
	if err != nil {
		return Stats{}, err
	}

	buckets := parsed.Aggregations.Daily.Buckets
	if len(buckets) > dailyCountsWindow {
		buckets = buckets[:dailyCountsWindow]
	}
	dailyCounts := make([]DailyCount, 0, len(buckets))
	for _, b := range buckets {
		dailyCounts = append(dailyCounts, DailyCount{Date: b.KeyAsString[:10], Count: b.DocCount})
	}

	return Stats{
		TotalArticles: parsed.Hits.Total.Value,
		Sources:       parsed.Aggregations.Sources.keys(),
		Languages:     parsed.Aggregations.Languages.keys(),
		Sentiments:    parsed.Aggregations.Sentiments.keys(),
		DailyCounts:   dailyCounts,
	}, nil
}

type esTermsAgg struct {
	Buckets []struct {
		Key string `json:"key"`
	} `json:"buckets"`
}

func (a esTermsAgg) keys() []string {
	out := make([]string, 0, len(a.Buckets))
	for _, b := range a.Buckets {
		out = append(out, b.Key)
	}
	return out
}

// Healthy pings the cluster.
func (es *Elasticsearch) Healthy(ctx context.Context) bool {
	resp, err := es.client.Ping(es.client.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return !resp.IsError()
}

// Close flushes any partial pending batch before returning.
func (es *Elasticsearch) Close() error {
	es.mu.Lock()
	remaining := es.pending
	es.pending = nil
	es.mu.Unlock()

	if len(remaining) == 0 {
		return nil
	}
	return es.flush(context.Background(), remaining)
}
