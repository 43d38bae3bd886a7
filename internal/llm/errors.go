// ABOUTME: Maps transport and SDK failures onto the provider error kinds
// ABOUTME: 401/403 -> auth, 429 -> rate limited, everything else -> unavailable
package llm

import (
	"errors"
	"net/http"

	"github.com/harper/bible-chat/internal/apperr"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// kindForStatus returns the error kind for an HTTP status code
func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.ErrProviderAuth
	case http.StatusTooManyRequests:
		return apperr.ErrProviderRateLimited
	default:
		return apperr.ErrProviderUnavailable
	}
}

// classify wraps err as a ProviderError, extracting a status code from the
// SDK error types we know about. Errors that are already classified pass through.
func classify(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *apperr.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var dm *apperr.DimensionMismatchError
	if errors.As(err, &dm) {
		return err
	}

	status := statusOf(err)
	return apperr.NewProviderError(provider, op, kindForStatus(status), status, err)
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return genaiErrPtr.Code
	}
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return httpErr.status
	}
	return 0
}

// httpStatusError is returned by adapters that speak HTTP directly
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return http.StatusText(e.status)
	}
	return http.StatusText(e.status) + ": " + e.body
}
