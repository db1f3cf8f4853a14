package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"newscrawler/internal/domain"
	"newscrawler/internal/ports"
)

const (
	activeTable  = "articles"
	archiveTable = "articles_old"
)

// Both tables share one shape; the conflict target is the link column.
const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL UNIQUE,
    published TIMESTAMPTZ NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS articles_old (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL UNIQUE,
    published TIMESTAMPTZ NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    fetched_at TIMESTAMPTZ NOT NULL
);
`

var articleColumns = []string{"title", "link", "published", "summary", "source", "category", "author"}

// PostgresRepository owns all reads and writes against the active and
// archive article tables.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ArticleRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Ensure creates both article tables if they do not exist yet.
func (r *PostgresRepository) Ensure(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping verifies the connection before a cycle touches any table.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// UpsertArticle inserts the candidate or, when its link already exists,
// updates the mutable fields. fetched_at always reflects this call.
func (r *PostgresRepository) UpsertArticle(ctx context.Context, c domain.ArticleCandidate) error {
	query, args, err := r.sb.Insert(activeTable).
		Columns(articleColumns...).
		Values(c.Title, c.Link, c.Published, c.Summary, c.Source, c.Category, c.Author).
		Suffix(`ON CONFLICT (link) DO UPDATE SET
            title = EXCLUDED.title,
            published = EXCLUDED.published,
            summary = EXCLUDED.summary,
            category = EXCLUDED.category,
            author = EXCLUDED.author,
            fetched_at = now()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article %s: %w", c.Link, err)
	}
	return nil
}

// ListRecent returns the most recently fetched active rows.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]domain.Article, error) {
	builder := r.selectArticles().
		OrderBy("fetched_at DESC").
		Limit(uint64(limit))
	return r.queryArticles(ctx, builder)
}

// ListWindow returns active rows fetched inside [start, end), oldest first.
func (r *PostgresRepository) ListWindow(ctx context.Context, start, end time.Time, limit int) ([]domain.Article, error) {
	builder := r.selectArticles().
		Where(sq.GtOrEq{"fetched_at": start}).
		Where(sq.Lt{"fetched_at": end}).
		OrderBy("fetched_at ASC").
		Limit(uint64(limit))
	return r.queryArticles(ctx, builder)
}

// ListWindowByCategory narrows ListWindow to one raw feed category.
func (r *PostgresRepository) ListWindowByCategory(ctx context.Context, start, end time.Time, category string, limit int) ([]domain.Article, error) {
	builder := r.selectArticles().
		Where(sq.GtOrEq{"fetched_at": start}).
		Where(sq.Lt{"fetched_at": end}).
		Where(sq.Eq{"category": category}).
		OrderBy("fetched_at ASC").
		Limit(uint64(limit))
	return r.queryArticles(ctx, builder)
}

// ArchiveOlderThan moves every active row with fetched_at at or before the
// cutoff into the archive table and deletes it from the active table, as one
// transaction. The delete targets the ids captured by the initial select,
// never a re-evaluated age predicate, so rows ingested mid-run survive.
// Returns the number of rows moved; zero qualifying rows is a no-op.
func (r *PostgresRepository) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectSQL, selectArgs, err := r.selectArticles().
		Where(sq.LtOrEq{"fetched_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build archive select: %w", err)
	}

	rows, err := tx.QueryContext(ctx, selectSQL, selectArgs...)
	if err != nil {
		return 0, fmt.Errorf("select aged rows: %w", err)
	}
	aged, err := scanArticles(rows)
	if err != nil {
		return 0, fmt.Errorf("scan aged rows: %w", err)
	}

	if len(aged) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(aged))
	for _, a := range aged {
		insertSQL, insertArgs, err := r.sb.Insert(archiveTable).
			Columns(append(articleColumns, "fetched_at")...).
			Values(a.Title, a.Link, a.Published, a.Summary, a.Source, a.Category, a.Author, a.FetchedAt).
			Suffix(`ON CONFLICT (link) DO UPDATE SET
                title = EXCLUDED.title,
                published = EXCLUDED.published,
                summary = EXCLUDED.summary,
                category = EXCLUDED.category,
                author = EXCLUDED.author,
                fetched_at = EXCLUDED.fetched_at`).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build archive insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
			return 0, fmt.Errorf("archive row %s: %w", a.Link, err)
		}
		ids = append(ids, a.ID)
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", activeTable)
	if _, err := tx.ExecContext(ctx, deleteSQL, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("delete archived rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}

	return int64(len(ids)), nil
}

func (r *PostgresRepository) selectArticles() sq.SelectBuilder {
	return r.sb.Select(append([]string{"id"}, append(articleColumns, "fetched_at")...)...).
		From(activeTable)
}

func (r *PostgresRepository) queryArticles(ctx context.Context, builder sq.SelectBuilder) ([]domain.Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]domain.Article, error) {
	defer rows.Close()
	var out []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.Published, &a.Summary, &a.Source, &a.Category, &a.Author, &a.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
