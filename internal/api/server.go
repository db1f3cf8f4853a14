package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newscrawler/internal/config"
	"newscrawler/internal/ports"
	"newscrawler/internal/usecase"
)

// Server exposes the stored articles and the manual summary trigger. It
// reads core state but never writes it.
type Server struct {
	repo         ports.ArticleRepository
	summary      *usecase.Summary
	categoryKeys map[string]string
	defaultLimit int
	logger       *slog.Logger
}

// NewServer maps the raw feed categories onto their stable topic keys.
func NewServer(repo ports.ArticleRepository, summary *usecase.Summary, categories []config.CategoryConfig, defaultLimit int, logger *slog.Logger) *Server {
	keys := make(map[string]string, len(categories))
	for _, cat := range categories {
		keys[cat.URL] = cat.Key
	}
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &Server{
		repo:         repo,
		summary:      summary,
		categoryKeys: keys,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/articles", s.listArticles)
	router.GET("/send-summary", s.sendSummary)
	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

type articleResponse struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Category string `json:"category"`
	PubDate  string `json:"pub_date"`
}

func (s *Server) listArticles(c *gin.Context) {
	limit := s.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	rows, err := s.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	out := make([]articleResponse, 0, len(rows))
	for _, row := range rows {
		category := row.Category
		if key, ok := s.categoryKeys[category]; ok {
			category = key
		}
		out = append(out, articleResponse{
			ID:       row.ID,
			Title:    row.Title,
			Link:     row.Link,
			Category: category,
			PubDate:  row.FetchedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"articles": out})
}

func (s *Server) sendSummary(c *gin.Context) {
	if s.summary == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mail transport not configured"})
		return
	}
	if err := s.summary.SendDaily(c.Request.Context()); err != nil {
		s.logger.Error("summary mail failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary mail failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "summary mail sent"})
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
