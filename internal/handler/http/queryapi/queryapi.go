// Package queryapi implements the Query API's HTTP handlers: filtered
// search, article-by-id, latest-N, and aggregate statistics over the
// search store. Grounded on the teacher's article handler shape (narrow
// struct embedding a dependency, one ServeHTTP per route), generalized
// from the teacher's SQL-backed ArticleRepository to search.Store.
package queryapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsstream/internal/common/pagination"
	"newsstream/internal/domain/stage"
	"newsstream/internal/handler/http/pathutil"
	"newsstream/internal/handler/http/respond"
	"newsstream/internal/search"
)

// SearchHandler serves GET /search.
//
// @Summary      記事検索
// @Description  クエリ・トピック・ソース・言語・感情・期間でフィルタした記事一覧をページネーションで返す
// @Tags         search
// @Produce      json
// @Param        query query string false "検索キーワード"
// @Param        topics query string false "カンマ区切りのトピック"
// @Param        sources query string false "カンマ区切りのソース"
// @Param        languages query string false "カンマ区切りの言語コード"
// @Param        sentiment query string false "positive/neutral/negative"
// @Param        date_from query string false "YYYY-MM-DD"
// @Param        date_to query string false "YYYY-MM-DD"
// @Param        page query int false "ページ番号 (1-based)" default(1) minimum(1)
// @Param        size query int false "1ページあたりの件数" default(20) minimum(1)
// @Success      200 "検索結果"
// @Failure      400 "不正なクエリパラメータ"
// @Router       /search [get]
type SearchHandler struct {
	Store          search.Store
	PaginationConf pagination.Config
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	conf := h.PaginationConf
	if conf == (pagination.Config{}) {
		conf = pagination.DefaultConfig()
	}

	page := conf.DefaultPage
	if raw := q.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respond.Error(w, http.StatusBadRequest, errors.New("page must be a positive integer"))
			return
		}
		page = parsed
	}

	size := conf.DefaultLimit
	if raw := q.Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > conf.MaxLimit {
			respond.Error(w, http.StatusBadRequest, errors.New("size must be between 1 and "+strconv.Itoa(conf.MaxLimit)))
			return
		}
		size = parsed
	}

	filters := search.Filters{
		Query:     q.Get("query"),
		Topics:    splitCSV(q.Get("topics")),
		Sources:   splitCSV(q.Get("sources")),
		Languages: splitCSV(q.Get("languages")),
		Sentiment: stage.Sentiment(q.Get("sentiment")),
		Page:      page,
		Size:      size,
	}
	if from := q.Get("date_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, errors.New("date_from must be YYYY-MM-DD"))
			return
		}
		filters.DateFrom = &t
	}
	if to := q.Get("date_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, errors.New("date_to must be YYYY-MM-DD"))
			return
		}
		filters.DateTo = &t
	}

	result, err := h.Store.Search(r.Context(), filters)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"articles": result.Articles,
		"total":    result.Total,
		"page":     result.Page,
		"size":     result.Size,
		"took":     result.Took.Milliseconds(),
	})
}

// GetArticleHandler serves GET /articles/{id}.
//
// @Summary      記事詳細取得
// @Tags         articles
// @Produce      json
// @Param        id path string true "記事ID"
// @Success      200 "記事詳細"
// @Failure      404 "記事が見つからない"
// @Router       /articles/{id} [get]
type GetArticleHandler struct {
	Store search.Store
}

func (h *GetArticleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/articles/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	article, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, search.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, article)
}

// LatestHandler serves GET /articles/latest.
//
// @Summary      最新記事取得
// @Tags         articles
// @Produce      json
// @Param        limit query int false "取得件数" default(20) minimum(1) maximum(100)
// @Param        source query string false "ソースでフィルタ"
// @Param        language query string false "言語でフィルタ"
// @Success      200 "最新記事一覧"
// @Router       /articles/latest [get]
type LatestHandler struct {
	Store search.Store
}

func (h *LatestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			respond.Error(w, http.StatusBadRequest, errors.New("limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	articles, err := h.Store.Latest(r.Context(), limit, q.Get("source"), q.Get("language"))
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, articles)
}

// StatsHandler serves GET /stats.
//
// @Summary      コーパス統計取得
// @Tags         stats
// @Produce      json
// @Success      200 "集計結果"
// @Router       /stats [get]
type StatsHandler struct {
	Store search.Store
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"total_articles": stats.TotalArticles,
		"sources":        stats.Sources,
		"languages":      stats.Languages,
		"sentiments":     stats.Sentiments,
		"daily_counts":   stats.DailyCounts,
	})
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
