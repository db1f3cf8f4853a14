package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newscrawler/internal/config"
	"newscrawler/internal/domain"
	"newscrawler/internal/ports"
)

// Registry resolves the set of feed endpoints to poll. It scrapes the
// publisher's index pages for feed links and degrades to the static
// fallback list when discovery finds nothing or fails.
type Registry struct {
	client    *http.Client
	indexURLs []string
	fallback  []string
	marker    string
	logger    *slog.Logger
}

var _ ports.FeedRegistry = (*Registry)(nil)

// NewRegistry wires an HTTP client; a nil client gets a bounded default.
func NewRegistry(client *http.Client, cfg config.FeedsConfig, logger *slog.Logger) *Registry {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	marker := cfg.Marker
	if marker == "" {
		marker = "rss"
	}
	return &Registry{
		client:    client,
		indexURLs: cfg.IndexURLs,
		fallback:  cfg.Fallback,
		marker:    marker,
		logger:    logger,
	}
}

// Endpoints scans every index page and unions discovered feed URLs into a
// set. Discovery never aborts the cycle: any failure is logged and the
// fallback list is returned when nothing was found.
func (r *Registry) Endpoints(ctx context.Context) []domain.FeedEndpoint {
	seen := map[string]struct{}{}
	var discovered []domain.FeedEndpoint

	for _, indexURL := range r.indexURLs {
		urls, err := r.discover(ctx, indexURL)
		if err != nil {
			r.logger.Warn("feed discovery failed", "index", indexURL, "error", err)
			continue
		}
		for _, u := range urls {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			discovered = append(discovered, domain.FeedEndpoint{URL: u, Origin: domain.OriginDiscovered})
		}
	}

	if len(discovered) == 0 {
		r.logger.Info("discovery yielded no feeds, using fallback list", "feeds", len(r.fallback))
		fallback := make([]domain.FeedEndpoint, 0, len(r.fallback))
		for _, u := range r.fallback {
			fallback = append(fallback, domain.FeedEndpoint{URL: u, Origin: domain.OriginFallback})
		}
		return fallback
	}

	r.logger.Info("discovered feeds", "count", len(discovered))
	return discovered
}

func (r *Registry) discover(ctx context.Context, indexURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request index page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index url %s: %w", indexURL, err)
	}

	var found []string
	doc.Find("a[href], link[href], input[value]").Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr("href")
		if !ok {
			raw, ok = sel.Attr("value")
		}
		if !ok {
			return
		}
		if abs, ok := r.resolveFeedURL(base, raw); ok {
			found = append(found, abs)
		}
	})

	return found, nil
}

// resolveFeedURL keeps only links whose path looks like a feed document and
// normalizes relative references against the index page origin.
func (r *Registry) resolveFeedURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	path := strings.ToLower(resolved.Path)
	if !strings.HasSuffix(path, ".xml") || !strings.Contains(path, r.marker) {
		return "", false
	}
	return resolved.String(), true
}
