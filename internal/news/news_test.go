package news

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var latest = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/news", svc.GetNews)
	r.Get("/api/v1/news/breaking", svc.GetBreaking)
	r.Get("/api/v1/news/category/{category}", svc.GetByCategory)
	r.Get("/api/v1/news/{articleID}", svc.GetArticle)
	return r
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog([]Article{{ID: "a", Title: "A", Category: "sports"}})
	assert.Error(t, err)
	_, err = NewCatalog([]Article{{ID: "a", Title: "A", Category: CategoryNFT}, {ID: "a", Title: "B", Category: CategoryNFT}})
	assert.Error(t, err)
	_, err = NewCatalog([]Article{{Title: "no id", Category: CategoryNFT}})
	assert.Error(t, err)
}

func TestDefaultCatalog_NewestFirst(t *testing.T) {
	c := DefaultCatalog(latest)
	require.Equal(t, 12, c.Len())

	all := c.Filter(nil)
	assert.Equal(t, "bitcoin-100k", all[0].ID)
	assert.Equal(t, latest, all[0].PublishedAt)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].PublishedAt.After(all[i].PublishedAt))
	}
}

func TestList_PaginatesAndFilters(t *testing.T) {
	svc := NewService(DefaultCatalog(latest))

	page, err := svc.List("", 2, 5)
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)
	assert.Equal(t, Pagination{Page: 2, Limit: 5, Total: 12, Pages: 3}, page.Pagination)

	page, err = svc.List("all", 3, 5)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)

	page, err = svc.List("Regulation", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	for _, a := range page.Data {
		assert.Equal(t, CategoryRegulation, a.Category)
	}

	_, err = svc.List("sports", 1, 20)
	assert.Error(t, err)
}

func TestList_HugePageIsEmpty(t *testing.T) {
	svc := NewService(DefaultCatalog(latest))
	h := newRouter(svc)

	var resp ListResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news?page=184467440737095517&limit=100", &resp))
	assert.Empty(t, resp.Data)
	assert.Equal(t, 12, resp.Pagination.Total)
}

func TestHandlers(t *testing.T) {
	svc := NewService(DefaultCatalog(latest))
	h := newRouter(svc)

	var list ListResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news", &list))
	assert.Len(t, list.Data, 12)
	assert.Equal(t, 20, list.Pagination.Limit)

	var breaking struct {
		Data []Article `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news/breaking", &breaking))
	require.Len(t, breaking.Data, 4)
	for _, a := range breaking.Data {
		assert.True(t, a.Breaking)
	}

	var byCat struct {
		Data []Article `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news/category/bitcoin?limit=1", &byCat))
	require.Len(t, byCat.Data, 1)
	assert.Equal(t, "bitcoin-100k", byCat.Data[0].ID)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/news/category/sports", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/news/category/bitcoin?limit=0", nil))

	var one struct {
		Data Article `json:"data"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news/nft-recovery", &one))
	assert.Equal(t, int64(1), one.Data.Views)
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/news/nft-recovery", &one))
	assert.Equal(t, int64(2), one.Data.Views)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/news/missing", nil))

	page, err := svc.List("nft", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(2), page.Data[0].Views)
}
