package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newscrawler/internal/metrics"
	"newscrawler/internal/ports"
)

// Archiver demotes aged active rows into the archive table. The repository
// keeps the move atomic; the mutex enforces the single-writer assumption
// the select-then-delete-by-id scheme depends on, so overlapping runs
// serialize instead of racing.
type Archiver struct {
	repo          ports.ArticleRepository
	thresholdDays int
	logger        *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewArchiver wires the repository with the configured age threshold.
func NewArchiver(repo ports.ArticleRepository, thresholdDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		repo:          repo,
		thresholdDays: thresholdDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Run moves every active row whose fetched_at is at or before now minus the
// threshold. A failed run rolls back entirely and leaves the active table
// untouched; rerunning with no new qualifying rows is a no-op.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().AddDate(0, 0, -a.thresholdDays)
	moved, err := a.repo.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		metrics.ArchiveFailures.Inc()
		return 0, fmt.Errorf("archive run: %w", err)
	}

	if moved > 0 {
		metrics.ArticlesArchived.Add(float64(moved))
	}
	a.logger.Info("archive run done", "cutoff", cutoff, "moved", moved)
	return moved, nil
}
