package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"newscrawler/internal/config"
	"newscrawler/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher(retryMax int) *Fetcher {
	f := NewFetcher(config.HTTPConfig{TimeoutSeconds: 5, RetryMax: retryMax}, "boannews", testLogger())
	f.client.RetryWaitMin = time.Millisecond
	f.client.RetryWaitMax = 5 * time.Millisecond
	return f
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Sample Feed</title>
    <link>http://example.com/</link>
    <item>
      <title>First headline</title>
      <link>http://example.com/articles/1</link>
      <description>First summary</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 +0900</pubDate>
      <dc:creator>Jane Doe</dc:creator>
    </item>
    <item>
      <title>Undated headline</title>
      <link>http://example.com/articles/2</link>
      <description>Second summary</description>
    </item>
  </channel>
</rss>`

func TestFetchParsesEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	f := testFetcher(0)
	endpoint := domain.FeedEndpoint{URL: server.URL, Origin: domain.OriginFallback}

	before := time.Now()
	candidates, err := f.Fetch(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Link != "http://example.com/articles/1" {
		t.Fatalf("unexpected link: %s", first.Link)
	}
	if first.Title != "First headline" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.Summary != "First summary" {
		t.Fatalf("unexpected summary: %s", first.Summary)
	}
	if first.Author != "Jane Doe" {
		t.Fatalf("unexpected author: %s", first.Author)
	}
	if first.Source != "boannews" {
		t.Fatalf("unexpected source: %s", first.Source)
	}
	if first.Category != server.URL {
		t.Fatalf("category should be the endpoint URL, got %s", first.Category)
	}

	want := time.Date(2006, time.January, 2, 15, 4, 5, 0, time.FixedZone("KST", 9*60*60))
	if !first.Published.Equal(want) {
		t.Fatalf("unexpected published: %v", first.Published)
	}

	// no published or updated timestamp: falls back to parse time
	second := candidates[1]
	if second.Published.Before(before) || second.Published.After(time.Now().Add(5*time.Second)) {
		t.Fatalf("expected published close to parse time, got %v", second.Published)
	}
}

func TestFetchDropsEntriesWithoutLink(t *testing.T) {
	t.Parallel()

	feedXML := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sample Feed</title>
    <item>
      <title>Has a link</title>
      <link>http://example.com/articles/1</link>
    </item>
    <item>
      <title>No link at all</title>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML))
	}))
	defer server.Close()

	f := testFetcher(0)
	candidates, err := f.Fetch(context.Background(), domain.FeedEndpoint{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Link != "http://example.com/articles/1" {
		t.Fatalf("unexpected link: %s", candidates[0].Link)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	f := testFetcher(3)
	candidates, err := f.Fetch(context.Background(), domain.FeedEndpoint{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch should succeed within the retry budget: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
}

func TestFetchClientErrorIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := testFetcher(3)
	if _, err := f.Fetch(context.Background(), domain.FeedEndpoint{URL: server.URL}); err == nil {
		t.Fatal("expected error for client error status")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", got)
	}
}

func TestFetchMalformedFeedFails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed at all"))
	}))
	defer server.Close()

	f := testFetcher(0)
	if _, err := f.Fetch(context.Background(), domain.FeedEndpoint{URL: server.URL}); err == nil {
		t.Fatal("expected parse error for malformed payload")
	}
}

func TestFetchDecodesEUCKR(t *testing.T) {
	t.Parallel()

	const title = "보안 업데이트 발표"
	feedXML := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sample Feed</title>
    <item>
      <title>` + title + `</title>
      <link>http://example.com/articles/kr</link>
    </item>
  </channel>
</rss>`

	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), feedXML)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=euc-kr")
		_, _ = w.Write([]byte(encoded))
	}))
	defer server.Close()

	f := testFetcher(0)
	candidates, err := f.Fetch(context.Background(), domain.FeedEndpoint{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Title != title {
		t.Fatalf("expected decoded title %q, got %q", title, candidates[0].Title)
	}
}
