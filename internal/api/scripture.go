// ABOUTME: Scripture endpoints: semantic and text search, verse lookups and corpus listings
// ABOUTME: Query limits are validated here; the services clamp whatever gets through
package api

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/core"
)

const (
	minQueryRunes      = 2
	defaultContextSize = 3
	maxContextSize     = 10
)

type searchQuery struct {
	Query       string  `query:"q"`
	Translation string  `query:"translation"`
	MaxVerses   int     `query:"max_verses"`
	MaxPassages int     `query:"max_passages"`
	Threshold   float64 `query:"threshold"`
}

func validateSearch(req core.SearchRequest) error {
	if utf8.RuneCountInString(strings.TrimSpace(req.Query)) < minQueryRunes {
		return apperr.NewValidation("q", "must be at least 2 characters")
	}
	if req.MaxVerses < 1 || req.MaxVerses > core.MaxVersesLimit {
		return apperr.NewValidation("max_verses", "must be between 1 and 20")
	}
	if req.MaxPassages < 0 || req.MaxPassages > core.MaxPassagesLimit {
		return apperr.NewValidation("max_passages", "must be between 0 and 5")
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return apperr.NewValidation("threshold", "must be between 0 and 1")
	}
	return nil
}

func (s *Server) handleSearch(c echo.Context) error {
	q := searchQuery{MaxVerses: core.DefaultMaxVerses, MaxPassages: core.DefaultMaxPassages}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return apperr.NewValidation("query", "invalid search parameters")
	}
	return s.search(c, core.SearchRequest{
		Query:       q.Query,
		Translation: q.Translation,
		MaxVerses:   q.MaxVerses,
		MaxPassages: q.MaxPassages,
		Threshold:   q.Threshold,
	})
}

func (s *Server) handleSearchPost(c echo.Context) error {
	req := core.NewSearchRequest("", "")
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidation("body", "invalid search request")
	}
	return s.search(c, req)
}

func (s *Server) search(c echo.Context, req core.SearchRequest) error {
	if err := validateSearch(req); err != nil {
		return err
	}
	resp, err := s.app.Search.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTextSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if utf8.RuneCountInString(strings.TrimSpace(q)) < minQueryRunes {
		return apperr.NewValidation("q", "must be at least 2 characters")
	}
	limit, err := queryInt(c, "limit", core.DefaultTextLimit)
	if err != nil {
		return err
	}
	if limit < 1 || limit > core.MaxTextLimit {
		return apperr.NewValidation("limit", "must be between 1 and 100")
	}
	resp, err := s.app.Search.TextSearch(c.Request().Context(), q, c.QueryParam("translation"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerse(c echo.Context) error {
	chapter, verse, err := chapterVerse(c, "verse")
	if err != nil {
		return err
	}
	return s.lookup(c)(s.app.Scripture.Verse(c.Request().Context(), c.Param("book"), chapter, verse, c.QueryParam("translation")))
}

func (s *Server) handleChapter(c echo.Context) error {
	chapter, err := pathInt(c, "chapter")
	if err != nil {
		return err
	}
	return s.lookup(c)(s.app.Scripture.Chapter(c.Request().Context(), c.Param("book"), chapter, c.QueryParam("translation")))
}

func (s *Server) handleRange(c echo.Context) error {
	chapter, start, err := chapterVerse(c, "start")
	if err != nil {
		return err
	}
	end, err := pathInt(c, "end")
	if err != nil {
		return err
	}
	if end < start {
		return apperr.NewValidation("end", "must not be before start")
	}
	return s.lookup(c)(s.app.Scripture.Range(c.Request().Context(), c.Param("book"), chapter, start, end, c.QueryParam("translation")))
}

func (s *Server) handleContext(c echo.Context) error {
	chapter, verse, err := chapterVerse(c, "verse")
	if err != nil {
		return err
	}
	size, err := queryInt(c, "size", defaultContextSize)
	if err != nil {
		return err
	}
	if size < 0 || size > maxContextSize {
		return apperr.NewValidation("size", "must be between 0 and 10")
	}
	return s.lookup(c)(s.app.Scripture.Context(c.Request().Context(), c.Param("book"), chapter, verse, size, c.QueryParam("translation")))
}

func (s *Server) handleReference(c echo.Context) error {
	ref := strings.TrimSpace(c.QueryParam("ref"))
	if ref == "" {
		return apperr.NewValidation("ref", "cannot be empty")
	}
	return s.lookup(c)(s.app.Scripture.Reference(c.Request().Context(), ref, c.QueryParam("translation")))
}

func (s *Server) handleBooks(c echo.Context) error {
	books, err := s.app.Scripture.Books(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"books": books, "count": len(books)})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.app.Scripture.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTranslations(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"translations": s.app.Scripture.Translations(),
		"default":      s.app.Resolver.Catalog().Default(),
	})
}

// lookup renders a lookup result or passes its error to the error handler
func (s *Server) lookup(c echo.Context) func(*core.Lookup, error) error {
	return func(l *core.Lookup, err error) error {
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, l)
	}
}

func chapterVerse(c echo.Context, verseParam string) (int, int, error) {
	chapter, err := pathInt(c, "chapter")
	if err != nil {
		return 0, 0, err
	}
	verse, err := pathInt(c, verseParam)
	if err != nil {
		return 0, 0, err
	}
	return chapter, verse, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewValidation(name, "must be a number")
	}
	return n, nil
}
