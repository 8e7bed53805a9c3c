// Command queryapi serves the read-only HTTP search API over the indexed
// article corpus: /search, /articles/{id}, /articles/latest, /stats, plus
// health, liveness, and metrics endpoints.
//
// @title           Newsstream Query API
// @version         1.0
// @description     Read-only search API over the enriched news article corpus.
// @BasePath        /
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "newsstream/docs"
	stdhttp "newsstream/internal/handler/http"
	"newsstream/internal/handler/http/queryapi"
	"newsstream/internal/handler/http/requestid"
	"newsstream/internal/observability/logging"
	"newsstream/internal/observability/tracing"
	internalconfig "newsstream/internal/pkg/config"
	"newsstream/internal/search"
	pkgconfig "newsstream/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	addresses := pkgconfig.GetEnvStringList("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"})
	indexPattern := internalconfig.LoadEnvString("SEARCH_INDEX_PATTERN", "")
	embeddingDim := internalconfig.LoadEnvInt("EMBEDDING_DIM", 768, nil).Value.(int)

	var store search.Store
	mode := "live"
	es, err := search.NewElasticsearch(search.ElasticsearchConfig{
		Addresses:    addresses,
		IndexPattern: indexPattern,
		EmbeddingDim: embeddingDim,
	})
	if err != nil {
		logger.Warn("elasticsearch unavailable at startup, falling back to mock store",
			slog.Any("error", err))
		store = search.NewMockStore()
		mode = "mock"
	} else {
		store = es
	}
	defer func() { _ = store.Close() }()

	mux := http.NewServeMux()
	mux.Handle("/search", &queryapi.SearchHandler{Store: store})
	mux.Handle("/articles/latest", &queryapi.LatestHandler{Store: store})
	mux.Handle("/articles/", &queryapi.GetArticleHandler{Store: store})
	mux.Handle("/stats", &queryapi.StatsHandler{Store: store})
	mux.Handle("/healthz", &stdhttp.HealthHandler{Store: store, Version: version(), Mode: mode})
	mux.Handle("/livez", stdhttp.LiveHandler{})
	mux.Handle("/metrics", stdhttp.MetricsHandler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	requestTimeout := time.Duration(internalconfig.LoadEnvInt("QUERYAPI_REQUEST_TIMEOUT_SECONDS", 10, nil).Value.(int)) * time.Second

	var handler http.Handler = mux
	handler = stdhttp.Timeout(requestTimeout)(handler)
	handler = stdhttp.InputValidation()(handler)
	handler = stdhttp.MetricsMiddleware(handler)
	handler = stdhttp.Recover(logger)(handler)
	handler = stdhttp.Logging(logger)(handler)
	handler = requestid.Middleware(handler)
	handler = stdhttp.CORS(handler)
	handler = tracing.Middleware(handler)

	port := internalconfig.LoadEnvInt("QUERYAPI_PORT", 8080, nil).Value.(int)
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("queryapi starting", slog.Int("port", port), slog.String("mode", mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("queryapi server failed", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("queryapi shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("queryapi graceful shutdown failed", slog.Any("error", err))
	}
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
