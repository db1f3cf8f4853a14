package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newscrawler/internal/config"
	"newscrawler/internal/domain"
)

type apiRepoStub struct {
	recent    []domain.Article
	lastLimit int
	listErr   error
	pingErr   error
}

func (r *apiRepoStub) Ensure(ctx context.Context) error { return nil }
func (r *apiRepoStub) Ping(ctx context.Context) error   { return r.pingErr }

func (r *apiRepoStub) UpsertArticle(ctx context.Context, c domain.ArticleCandidate) error {
	return nil
}

func (r *apiRepoStub) ListRecent(ctx context.Context, limit int) ([]domain.Article, error) {
	r.lastLimit = limit
	return r.recent, r.listErr
}

func (r *apiRepoStub) ListWindow(ctx context.Context, start, end time.Time, limit int) ([]domain.Article, error) {
	return nil, nil
}

func (r *apiRepoStub) ListWindowByCategory(ctx context.Context, start, end time.Time, category string, limit int) ([]domain.Article, error) {
	return nil, nil
}

func (r *apiRepoStub) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(repo *apiRepoStub) *Server {
	categories := []config.CategoryConfig{
		{URL: "http://news.example/rss.xml?mkind=1", Key: "security"},
	}
	return NewServer(repo, nil, categories, 100, testLogger())
}

type articlesPayload struct {
	Articles []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Category string `json:"category"`
		PubDate  string `json:"pub_date"`
	} `json:"articles"`
}

func TestListArticlesMapsCategories(t *testing.T) {
	fetched := time.Date(2026, time.September, 1, 7, 30, 0, 0, time.UTC)
	repo := &apiRepoStub{recent: []domain.Article{
		{ID: 1, Title: "mapped", Link: "http://news.example/1", Category: "http://news.example/rss.xml?mkind=1", FetchedAt: fetched},
		{ID: 2, Title: "unmapped", Link: "http://news.example/2", Category: "http://news.example/rss.xml?kind=9", FetchedAt: fetched},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	testServer(repo).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload articlesPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Articles, 2)

	assert.Equal(t, "security", payload.Articles[0].Category)
	// unknown feed URLs pass through unchanged
	assert.Equal(t, "http://news.example/rss.xml?kind=9", payload.Articles[1].Category)
	assert.Equal(t, "2026-09-01T07:30:00Z", payload.Articles[0].PubDate)
	assert.Equal(t, 100, repo.lastLimit)
}

func TestListArticlesLimitParameter(t *testing.T) {
	repo := &apiRepoStub{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/articles?limit=5", nil)
	testServer(repo).Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, repo.lastLimit)
}

func TestListArticlesRejectsBadLimit(t *testing.T) {
	repo := &apiRepoStub{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/articles?limit=nope", nil)
	testServer(repo).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListArticlesStorageError(t *testing.T) {
	repo := &apiRepoStub{listErr: errors.New("connection dropped")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	testServer(repo).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSendSummaryWithoutTransport(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/send-summary", nil)
	testServer(&apiRepoStub{}).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	testServer(&apiRepoStub{}).Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	testServer(&apiRepoStub{pingErr: errors.New("refused")}).Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
