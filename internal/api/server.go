// ABOUTME: HTTP transport for chat, scripture lookups and health, built on echo
// ABOUTME: Routes live under /api/v1; health probes sit at the root for orchestrators
package api

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/harper/bible-chat/internal/app"
)

// Server serves one App over HTTP
type Server struct {
	app      *app.App
	echo     *echo.Echo
	upgrader websocket.Upgrader
	version  string
}

// NewServer builds the echo router for a
func NewServer(a *app.App, version string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		app:     a,
		echo:    e,
		version: version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(a.Config.CORSOrigins),
		},
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: a.Config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.handleInfo)
	e.GET("/health", s.handleHealth)
	e.GET("/health/live", s.handleLive)
	e.GET("/health/ready", s.handleReady)

	v1 := e.Group("/api/v1")
	v1.GET("/config", s.handleConfig)

	chat := v1.Group("/chat")
	chat.POST("", s.handleChat)
	chat.POST("/stream", s.handleChatStream)
	chat.GET("/ws", s.handleChatWS)
	chat.GET("/verse/:book/:chapter/:verse", s.handleExplainVerse)

	scripture := v1.Group("/scripture")
	scripture.GET("/search", s.handleSearch)
	scripture.POST("/search", s.handleSearchPost)
	scripture.GET("/search/text", s.handleTextSearch)
	scripture.GET("/verse/:book/:chapter/:verse", s.handleVerse)
	scripture.GET("/chapter/:book/:chapter", s.handleChapter)
	scripture.GET("/range/:book/:chapter/:start/:end", s.handleRange)
	scripture.GET("/context/:book/:chapter/:verse", s.handleContext)
	scripture.GET("/reference", s.handleReference)
	scripture.GET("/books", s.handleBooks)
	scripture.GET("/stats", s.handleStats)
	scripture.GET("/translations", s.handleTranslations)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get(echo.HeaderOrigin)
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":    "bible-chat",
		"version": s.version,
		"health":  "/health",
		"api":     "/api/v1",
	})
}

func (s *Server) handleConfig(c echo.Context) error {
	cfg := s.app.Config
	return c.JSON(http.StatusOK, map[string]any{
		"llm": map[string]any{
			"provider":    cfg.LLMProvider,
			"model":       cfg.LLMModel,
			"temperature": cfg.Temperature,
			"maxTokens":   cfg.MaxTokens,
		},
		"embedding": map[string]any{
			"provider":   cfg.EmbeddingProvider,
			"model":      cfg.EmbeddingModel,
			"dimensions": cfg.EmbeddingDimensions,
		},
		"chat": map[string]any{
			"maxContextVerses":       cfg.MaxContextVerses,
			"maxContextPassages":     cfg.MaxContextPassages,
			"maxConversationHistory": cfg.MaxHistory,
			"similarityThreshold":    cfg.SimilarityThreshold,
			"defaultTranslation":     s.app.Resolver.Catalog().Default(),
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	report := s.app.Health(c.Request().Context())
	status := http.StatusOK
	if report.Status == app.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

func (s *Server) handleLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReady(c echo.Context) error {
	db := s.app.CheckDatabase(c.Request().Context())
	if db.Status != app.StatusHealthy {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_unavailable",
			"error":  db.Error,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready", "databaseLatencyMs": db.LatencyMS})
}
