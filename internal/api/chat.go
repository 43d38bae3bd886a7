// ABOUTME: Chat endpoints: blocking JSON, server-sent events and verse explanation
// ABOUTME: The SSE stream ends with a done frame carrying citations, then [DONE]
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
)

// doneFrame closes a stream with everything not known up front
type doneFrame struct {
	Done                bool                    `json:"done"`
	MessageID           string                  `json:"messageId"`
	DetectedTranslation string                  `json:"detectedTranslation"`
	TranslationInfo     *models.TranslationInfo `json:"translationInfo,omitempty"`
	VersesCited         []string                `json:"versesCited"`
	Provider            string                  `json:"provider"`
	Model               string                  `json:"model"`
}

func newDoneFrame(cs *core.ChatStream) (doneFrame, error) {
	resp, err := cs.Result()
	if err != nil {
		return doneFrame{}, err
	}
	return doneFrame{
		Done:                true,
		MessageID:           resp.MessageID,
		DetectedTranslation: resp.DetectedTranslation,
		TranslationInfo:     resp.TranslationInfo,
		VersesCited:         resp.VersesCited,
		Provider:            resp.Provider,
		Model:               resp.Model,
	}, nil
}

func bindChat(c echo.Context) (core.ChatRequest, error) {
	req := core.ChatRequest{IncludeSearch: true}
	if err := c.Bind(&req); err != nil {
		return req, apperr.NewValidation("body", "invalid chat request")
	}
	return req, nil
}

func (s *Server) handleChat(c echo.Context) error {
	req, err := bindChat(c)
	if err != nil {
		return err
	}
	resp, err := s.app.Chat.Chat(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChatStream(c echo.Context) error {
	req, err := bindChat(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	cs, err := s.app.Chat.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = cs.Close()
		logging.FromContext(ctx).Debug("chat_stream_closed", "message_id", cs.Meta().MessageID, "state", cs.State())
	}()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for chunk := range cs.Chunks() {
		if err := writeEvent(w, map[string]string{"content": chunk}); err != nil {
			return nil
		}
	}

	done, err := newDoneFrame(cs)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		_, body := errorStatus(err)
		_ = writeEvent(w, map[string]string{"error": body.Error})
		return nil
	}
	if err := writeEvent(w, done); err != nil {
		return nil
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
	return nil
}

func writeEvent(w *echo.Response, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func (s *Server) handleExplainVerse(c echo.Context) error {
	chapter, err := pathInt(c, "chapter")
	if err != nil {
		return err
	}
	verse, err := pathInt(c, "verse")
	if err != nil {
		return err
	}
	resp, err := s.app.Chat.ExplainVerse(c.Request().Context(), core.ExplainRequest{
		Book:        c.Param("book"),
		Chapter:     chapter,
		Verse:       verse,
		Translation: c.QueryParam("translation"),
		Question:    c.QueryParam("question"),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func pathInt(c echo.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, apperr.NewValidation(name, "must be a number")
	}
	return n, nil
}
