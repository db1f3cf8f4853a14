package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newscrawler/internal/domain"
	"newscrawler/internal/metrics"
	"newscrawler/internal/ports"
)

// Collector runs one full collection cycle: discovery, concurrent
// fetch-and-parse across all endpoints, first-seen-wins deduplication,
// and per-candidate persistence.
type Collector struct {
	registry ports.FeedRegistry
	source   ports.FeedSource
	repo     ports.ArticleRepository
	logger   *slog.Logger
}

// NewCollector constructs the orchestration component.
func NewCollector(registry ports.FeedRegistry, source ports.FeedSource, repo ports.ArticleRepository, logger *slog.Logger) *Collector {
	return &Collector{
		registry: registry,
		source:   source,
		repo:     repo,
		logger:   logger,
	}
}

// feedResult tags one feed's outcome so a failure can never cancel or
// corrupt sibling fetches.
type feedResult struct {
	endpoint   domain.FeedEndpoint
	candidates []domain.ArticleCandidate
	err        error
}

// Collect executes one cycle and returns the number of candidates saved.
// Only an unreachable database is fatal; per-feed and per-record failures
// are logged and skipped.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	started := time.Now()

	if err := c.repo.Ping(ctx); err != nil {
		return 0, fmt.Errorf("database unreachable: %w", err)
	}

	endpoints := c.registry.Endpoints(ctx)
	merged := c.fetchAll(ctx, endpoints)
	deduped := Dedup(merged)

	saved := 0
	for _, cand := range deduped {
		if err := c.repo.UpsertArticle(ctx, cand); err != nil {
			c.logger.Error("persist article failed", "link", cand.Link, "error", err)
			metrics.ArticlesPersisted.WithLabelValues("error").Inc()
			continue
		}
		metrics.ArticlesPersisted.WithLabelValues("ok").Inc()
		saved++
	}

	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	c.logger.Info("collection cycle done",
		"feeds", len(endpoints),
		"candidates", len(merged),
		"unique", len(deduped),
		"saved", saved)
	return saved, nil
}

// fetchAll launches one goroutine per endpoint before awaiting any result,
// then merges candidate lists in completion order. In-feed entry order is
// preserved inside each list.
func (c *Collector) fetchAll(ctx context.Context, endpoints []domain.FeedEndpoint) []domain.ArticleCandidate {
	results := make(chan feedResult, len(endpoints))
	for _, ep := range endpoints {
		go func(ep domain.FeedEndpoint) {
			defer func() {
				if rec := recover(); rec != nil {
					results <- feedResult{endpoint: ep, err: fmt.Errorf("feed panic: %v", rec)}
				}
			}()
			candidates, err := c.source.Fetch(ctx, ep)
			results <- feedResult{endpoint: ep, candidates: candidates, err: err}
		}(ep)
	}

	var merged []domain.ArticleCandidate
	for range endpoints {
		res := <-results
		if res.err != nil {
			c.logger.Warn("feed failed, contributing no candidates", "feed", res.endpoint.URL, "error", res.err)
			metrics.FeedFetches.WithLabelValues(res.endpoint.URL, "error").Inc()
			continue
		}
		metrics.FeedFetches.WithLabelValues(res.endpoint.URL, "ok").Inc()
		merged = append(merged, res.candidates...)
	}
	return merged
}

// Dedup collapses the merged candidate list to one record per distinct
// link. The first candidate in traversal order wins; later duplicates are
// discarded before persistence is attempted.
func Dedup(candidates []domain.ArticleCandidate) []domain.ArticleCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.ArticleCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if _, ok := seen[cand.Link]; ok {
			continue
		}
		seen[cand.Link] = struct{}{}
		out = append(out, cand)
	}
	return out
}
