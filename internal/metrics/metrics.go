package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Collection pipeline metrics
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of per-feed fetch attempts",
		},
		[]string{"feed", "status"},
	)

	ArticlesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_persisted_total",
			Help: "Total number of article upserts attempted",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collection_cycle_duration_seconds",
			Help:    "Duration of one full collect cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Archival metrics
	ArticlesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_archived_total",
			Help: "Total number of rows moved to the archive table",
		},
	)

	ArchiveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_failures_total",
			Help: "Total number of archive runs rolled back",
		},
	)
)
