package news

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
)

const (
	defaultPageSize     = 20
	maxPageSize         = 100
	breakingLimit       = 5
	defaultCategorySize = 10
)

// Service serves the news endpoints. View counts live in memory for the
// life of the process.
type Service struct {
	catalog *Catalog
	views   map[string]*atomic.Int64 // fixed key set, so no lock
}

// NewService creates a news service over catalog.
func NewService(catalog *Catalog) *Service {
	views := make(map[string]*atomic.Int64, catalog.Len())
	for _, a := range catalog.articles {
		views[a.ID] = new(atomic.Int64)
	}
	return &Service{catalog: catalog, views: views}
}

// Pagination describes one page of the feed.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ListResponse is the body of GET /news.
type ListResponse struct {
	Data       []Article  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// DataResponse wraps every other news body.
type DataResponse struct {
	Data any `json:"data"`
}

// List returns one page of articles, optionally restricted to category.
func (s *Service) List(category string, page, limit int) (ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	keep, err := categoryFilter(category)
	if err != nil {
		return ListResponse{}, err
	}
	all := s.catalog.Filter(keep)
	n := len(all)

	start := n
	if page-1 <= n/limit {
		start = min((page-1)*limit, n)
	}
	end := n
	if limit < n-start {
		end = start + limit
	}
	pages := n / limit
	if n%limit != 0 {
		pages++
	}
	return ListResponse{
		Data:       s.withViews(all[start:end]),
		Pagination: Pagination{Page: page, Limit: limit, Total: n, Pages: pages},
	}, nil
}

// Breaking returns the most recent breaking articles.
func (s *Service) Breaking() []Article {
	out := s.catalog.Filter(func(a Article) bool { return a.Breaking })
	if len(out) > breakingLimit {
		out = out[:breakingLimit]
	}
	return s.withViews(out)
}

// Read returns an article and counts the view.
func (s *Service) Read(id string) (Article, error) {
	a, ok := s.catalog.Get(id)
	if !ok {
		return Article{}, fmt.Errorf("%w: news article %s", model.ErrNotFound, id)
	}
	a.Views = s.views[id].Add(1)
	metrics.NewsViews.WithLabelValues(string(a.Category)).Inc()
	return a, nil
}

func (s *Service) withViews(articles []Article) []Article {
	out := make([]Article, len(articles))
	for i, a := range articles {
		a.Views = s.views[a.ID].Load()
		out[i] = a
	}
	return out
}

// categoryFilter maps "" and "all" to no filter.
func categoryFilter(raw string) (func(Article) bool, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return nil, nil
	}
	c, ok := ParseCategory(raw)
	if !ok {
		return nil, &model.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", raw)}
	}
	return func(a Article) bool { return a.Category == c }, nil
}

// --- HTTP handlers ---

// GetNews handles GET /api/v1/news?category&page&limit
func (s *Service) GetNews(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httpx.Page(r, defaultPageSize, maxPageSize)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	resp, err := s.List(r.URL.Query().Get("category"), page, limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetBreaking handles GET /api/v1/news/breaking
func (s *Service) GetBreaking(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, DataResponse{Data: s.Breaking()})
}

// GetArticle handles GET /api/v1/news/{articleID}
func (s *Service) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.Read(chi.URLParam(r, "articleID"))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, DataResponse{Data: a})
}

// GetByCategory handles GET /api/v1/news/category/{category}?limit
func (s *Service) GetByCategory(w http.ResponseWriter, r *http.Request) {
	limit := defaultCategorySize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteDomainError(w, r, &model.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, maxPageSize)
	}
	category := chi.URLParam(r, "category")
	if _, ok := ParseCategory(strings.ToLower(category)); !ok {
		httpx.WriteDomainError(w, r, &model.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)})
		return
	}
	resp, err := s.List(category, 1, limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, DataResponse{Data: resp.Data})
}
