package ports

import (
	"context"
	"time"

	"newscrawler/internal/domain"
)

// FeedRegistry produces the set of feed endpoints to poll this cycle.
// Implementations never fail; discovery problems degrade to a fallback set.
type FeedRegistry interface {
	Endpoints(ctx context.Context) []domain.FeedEndpoint
}

// FeedSource fetches one feed endpoint and parses it into candidates.
type FeedSource interface {
	Fetch(ctx context.Context, endpoint domain.FeedEndpoint) ([]domain.ArticleCandidate, error)
}

// ArticleRepository persists articles and owns the two-table lifecycle.
type ArticleRepository interface {
	Ensure(ctx context.Context) error
	Ping(ctx context.Context) error
	UpsertArticle(ctx context.Context, candidate domain.ArticleCandidate) error
	ListRecent(ctx context.Context, limit int) ([]domain.Article, error)
	ListWindow(ctx context.Context, start, end time.Time, limit int) ([]domain.Article, error)
	ListWindowByCategory(ctx context.Context, start, end time.Time, category string, limit int) ([]domain.Article, error)
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Mailer delivers a composed message to the configured recipients.
type Mailer interface {
	Send(subject, htmlBody string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Add(spec string, job func()) error
	Start()
	Stop(ctx context.Context) error
}
