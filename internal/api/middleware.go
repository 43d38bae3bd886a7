// ABOUTME: Request middleware: request IDs carried into the context and one log line per request
// ABOUTME: Also maps domain errors onto HTTP status codes and a {error, hint} body
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/logging"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	})
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logging.HTTPRequest(req.Context(), req.Method, req.URL.Path, c.Response().Status, time.Since(start))
			return nil
		}
	}
}

// errorStatus maps err onto a status code and a body safe to return
func errorStatus(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, ErrorBody{Error: http.StatusText(he.Code), Hint: hintOf(he.Message)}
	}

	var uf *apperr.UserFacingError
	if errors.As(err, &uf) {
		body := ErrorBody{Error: uf.Message, Hint: uf.Hint}
		switch {
		case errors.Is(err, apperr.ErrProviderRateLimited):
			return http.StatusTooManyRequests, body
		case errors.Is(err, apperr.ErrProviderUnavailable):
			return http.StatusServiceUnavailable, body
		default:
			return http.StatusBadGateway, body
		}
	}

	switch {
	case errors.Is(err, apperr.ErrTranslationNotFound), errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Error: err.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Error: err.Error()}
	case errors.Is(err, apperr.ErrProviderRateLimited):
		return http.StatusTooManyRequests, ErrorBody{Error: "Too many requests. Please try again shortly."}
	case apperr.IsProviderFailure(err):
		return http.StatusServiceUnavailable, ErrorBody{Error: "A backing service is unavailable. Please try again later."}
	case apperr.IsFatal(err):
		return http.StatusInternalServerError, ErrorBody{Error: "The service is misconfigured.", Hint: "check embedding model and dimensions"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Error: "The request timed out."}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "Internal server error"}
	}
}

func hintOf(msg any) string {
	if s, ok := msg.(string); ok && s != http.StatusText(http.StatusNotFound) {
		return s
	}
	return ""
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ctx := c.Request().Context()
	if errors.Is(err, context.Canceled) {
		c.Response().WriteHeader(499)
		return
	}

	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request_failed", "path", c.Request().URL.Path, "status", status, "error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if jerr := c.JSON(status, body); jerr != nil {
		logging.FromContext(ctx).Warn("error_response_failed", "error", jerr)
	}
}
