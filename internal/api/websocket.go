// ABOUTME: WebSocket chat: each inbound request is answered with chunk frames and a done frame
// ABOUTME: A {"type":"cancel"} message or a closed socket stops the generation in flight
package api

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/logging"
)

const maxWSMessageBytes = 64 << 10

// Frame types sent to websocket clients
const (
	FrameChunk     = "chunk"
	FrameDone      = "done"
	FrameError     = "error"
	FrameCancelled = "cancelled"
)

type wsInbound struct {
	Type string `json:"type"`
	core.ChatRequest
}

type wsFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Hint      string `json:"hint,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

type wsDone struct {
	Type string `json:"type"`
	doneFrame
}

// wsSession tracks the generation a cancel message should stop
type wsSession struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (ws *wsSession) set(cancel context.CancelFunc) {
	ws.mu.Lock()
	ws.cancel = cancel
	ws.mu.Unlock()
}

func (ws *wsSession) stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.cancel != nil {
		ws.cancel()
	}
}

func (s *Server) handleChatWS(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(maxWSMessageBytes)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	logger := logging.FromContext(ctx)

	session := &wsSession{}
	inbound := make(chan core.ChatRequest)
	go func() {
		defer close(inbound)
		defer cancel()
		for {
			msg := wsInbound{ChatRequest: core.ChatRequest{IncludeSearch: true}}
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket_closed", "error", err)
				}
				return
			}
			if msg.Type == "cancel" {
				session.stop()
				continue
			}
			select {
			case inbound <- msg.ChatRequest:
			case <-ctx.Done():
				return
			}
		}
	}()

	for req := range inbound {
		if err := s.streamWS(ctx, conn, session, req); err != nil {
			logger.Debug("websocket_write_failed", "error", err)
			return nil
		}
	}
	return nil
}

// streamWS answers one request. Only connection write failures are returned.
func (s *Server) streamWS(ctx context.Context, conn *websocket.Conn, session *wsSession, req core.ChatRequest) error {
	streamCtx, stop := context.WithCancel(ctx)
	session.set(stop)
	defer func() {
		session.set(nil)
		stop()
	}()

	cs, err := s.app.Chat.ChatStream(streamCtx, req)
	if err != nil {
		return writeWSError(conn, err)
	}
	defer func() { _ = cs.Close() }()

	for chunk := range cs.Chunks() {
		if err := conn.WriteJSON(wsFrame{Type: FrameChunk, Content: chunk}); err != nil {
			return err
		}
	}

	done, err := newDoneFrame(cs)
	switch {
	case err == nil:
		return conn.WriteJSON(wsDone{Type: FrameDone, doneFrame: done})
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.Canceled):
		return conn.WriteJSON(wsFrame{Type: FrameCancelled, MessageID: cs.Meta().MessageID})
	default:
		return writeWSError(conn, err)
	}
}

func writeWSError(conn *websocket.Conn, err error) error {
	_, body := errorStatus(err)
	return conn.WriteJSON(wsFrame{Type: FrameError, Error: body.Error, Hint: body.Hint})
}
