package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"newscrawler/internal/config"
	"newscrawler/internal/domain"
	"newscrawler/internal/ports"
)

const (
	overallHeadlines  = 5
	categoryHeadlines = 3
)

var (
	tagExpr   = regexp.MustCompile(`<[^>]*>`)
	spaceExpr = regexp.MustCompile(`\s+`)
)

// Summary composes and sends the daily headline mail. It only reads the
// active table; it never mutates pipeline state.
type Summary struct {
	repo       ports.ArticleRepository
	mailer     ports.Mailer
	categories []config.CategoryConfig
	windowHour int
	logger     *slog.Logger
	now        func() time.Time
}

// NewSummary wires repository, transport, and the category order used for
// the mail sections.
func NewSummary(repo ports.ArticleRepository, mailer ports.Mailer, categories []config.CategoryConfig, windowHour int, logger *slog.Logger) *Summary {
	return &Summary{
		repo:       repo,
		mailer:     mailer,
		categories: categories,
		windowHour: windowHour,
		logger:     logger,
		now:        time.Now,
	}
}

type section struct {
	key      string
	articles []domain.Article
}

// SendDaily mails the headlines collected in [yesterday windowHour, today
// windowHour).
func (s *Summary) SendDaily(ctx context.Context) error {
	now := s.now()
	end := time.Date(now.Year(), now.Month(), now.Day(), s.windowHour, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -1)
	return s.SendWindow(ctx, start, end)
}

// SendWindow mails the headlines collected in [start, end).
func (s *Summary) SendWindow(ctx context.Context, start, end time.Time) error {
	overall, err := s.repo.ListWindow(ctx, start, end, overallHeadlines)
	if err != nil {
		return fmt.Errorf("load headlines: %w", err)
	}

	shown := make(map[string]struct{}, len(overall))
	for _, a := range overall {
		shown[a.Title] = struct{}{}
	}

	sections := []section{{key: "all", articles: overall}}
	for _, cat := range s.categories {
		rows, err := s.repo.ListWindowByCategory(ctx, start, end, cat.URL, categoryHeadlines)
		if err != nil {
			return fmt.Errorf("load %s headlines: %w", cat.Key, err)
		}
		// titles already shown in the overall section are skipped
		kept := rows[:0]
		for _, a := range rows {
			if _, ok := shown[a.Title]; ok {
				continue
			}
			kept = append(kept, a)
		}
		sections = append(sections, section{key: cat.Key, articles: kept})
	}

	total := 0
	for _, sec := range sections {
		total += len(sec.articles)
	}

	subject := fmt.Sprintf("[newscrawler] %s news headlines", start.Format("2006-01-02"))
	body := composeBody(start, end, sections, total)

	if err := s.mailer.Send(subject, body); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	s.logger.Info("summary mail sent", "start", start, "end", end, "articles", total)
	return nil
}

func composeBody(start, end time.Time, sections []section, total int) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Arial, sans-serif;">`)
	fmt.Fprintf(&b, "<h2>%s news headlines</h2>", start.Format("2006-01-02"))
	fmt.Fprintf(&b, "<p>Articles collected between %s and %s</p>",
		start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))

	if total == 0 {
		b.WriteString("<p><b>No articles were collected.</b></p>")
	} else {
		for _, sec := range sections {
			if len(sec.articles) == 0 {
				continue
			}
			fmt.Fprintf(&b, "<h3>[%s]</h3><ol>", html.EscapeString(sec.key))
			for _, a := range sec.articles {
				fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`,
					a.Link, html.EscapeString(cleanTitle(a.Title)))
			}
			b.WriteString("</ol>")
		}
	}

	b.WriteString("</body></html>")
	return b.String()
}

// cleanTitle strips markup that upstream feeds occasionally leave inside
// titles and collapses runs of whitespace.
func cleanTitle(s string) string {
	s = tagExpr.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}
