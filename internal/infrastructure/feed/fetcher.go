package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"newscrawler/internal/config"
	"newscrawler/internal/domain"
	"newscrawler/internal/ports"
)

const userAgent = "newscrawler/1.0"

// Fetcher downloads one feed and parses it into article candidates.
// Server-side errors are retried with exponential backoff within the
// configured budget; everything else is terminal for the attempt.
type Fetcher struct {
	client *retryablehttp.Client
	parser *gofeed.Parser
	source string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.FeedSource = (*Fetcher)(nil)

// NewFetcher builds a fetcher for one publisher identified by source.
func NewFetcher(cfg config.HTTPConfig, source string, logger *slog.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.Timeout()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.Logger = nil
	client.CheckRetry = serverErrorRetryPolicy

	return &Fetcher{
		client: client,
		parser: gofeed.NewParser(),
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// serverErrorRetryPolicy retries transport failures and 5xx responses only.
// Client errors never consume the retry budget.
func serverErrorRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode >= http.StatusInternalServerError, nil
}

// Fetch returns all candidates parseable from the endpoint. Entries without
// a link are dropped: link is the dedup and persistence key.
func (f *Fetcher) Fetch(ctx context.Context, endpoint domain.FeedEndpoint) ([]domain.ArticleCandidate, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	parsed, err := f.parser.Parse(f.decode(raw, resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	candidates := make([]domain.ArticleCandidate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		cand, ok := f.normalize(item, endpoint)
		if !ok {
			f.logger.Warn("dropping entry without link", "feed", endpoint.URL)
			continue
		}
		candidates = append(candidates, cand)
	}

	return candidates, nil
}

// decode picks the best reader for the payload based on the declared
// content type and byte sniffing; when detection fails the raw bytes are
// read as UTF-8 with invalid sequences tolerated downstream.
func (f *Fetcher) decode(raw []byte, contentType string) io.Reader {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		f.logger.Warn("charset detection failed, assuming utf-8", "error", err)
		return bytes.NewReader(raw)
	}
	return reader
}

// normalize maps one parsed entry to a candidate. Every optional field
// degrades to its zero value; published falls back to the entry's updated
// timestamp and finally to parse time, so it is never absent.
func (f *Fetcher) normalize(item *gofeed.Item, endpoint domain.FeedEndpoint) (domain.ArticleCandidate, bool) {
	if item == nil || strings.TrimSpace(item.Link) == "" {
		return domain.ArticleCandidate{}, false
	}

	published := f.now()
	switch {
	case item.PublishedParsed != nil:
		published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = *item.UpdatedParsed
	}

	var author string
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	return domain.ArticleCandidate{
		Link:      strings.TrimSpace(item.Link),
		Title:     strings.TrimSpace(item.Title),
		Published: published,
		Summary:   strings.TrimSpace(item.Description),
		Source:    f.source,
		Category:  endpoint.URL,
		Author:    strings.TrimSpace(author),
	}, true
}
