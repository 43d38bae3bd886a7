// ABOUTME: MCP tool handler implementations for the scripture chat server
// ABOUTME: Failures become tool errors carrying messages that are safe to show the agent
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/bible-chat/internal/app"
	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/citation"
	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
)

const maxContextVerses = 10

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	app *app.App
	// loadPrefs and savePrefs default to the XDG preferences file
	loadPrefs func() (*models.Preferences, error)
	savePrefs func(*models.Preferences) error
}

// NewHandlers creates handlers over a
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{
		app:       a,
		loadPrefs: models.LoadPreferences,
		savePrefs: (*models.Preferences).Save,
	}
}

// SearchScripture handles the search_scripture tool
func (h *Handlers) SearchScripture(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	req := core.NewSearchRequest(query, request.GetString("translation", ""))
	req.MaxVerses = request.GetInt("max_verses", core.DefaultMaxVerses)
	req.MaxPassages = request.GetInt("max_passages", core.DefaultMaxPassages)

	resp, err := h.app.Search.Search(ctx, req)
	if err != nil {
		return toolError(ctx, "search failed", err), nil
	}
	return jsonResult(resp)
}

// LookupVerse handles the lookup_verse tool
func (h *Handlers) LookupVerse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference, err := request.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError("reference argument is required and must be a string"), nil
	}
	translation := request.GetString("translation", "")

	size := request.GetInt("context", 0)
	if size < 0 || size > maxContextVerses {
		return mcp.NewToolResultError(fmt.Sprintf("context must be between 0 and %d", maxContextVerses)), nil
	}

	var lookup *core.Lookup
	if size > 0 {
		ref, perr := citation.Parse(reference)
		if perr != nil {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		if ref.IsRange() {
			return mcp.NewToolResultError("context is only supported for a single verse"), nil
		}
		lookup, err = h.app.Scripture.Context(ctx, ref.Canonical, ref.Chapter, ref.Verse, size, translation)
	} else {
		lookup, err = h.app.Scripture.Reference(ctx, reference, translation)
	}
	if err != nil {
		return toolError(ctx, "lookup failed", err), nil
	}
	return jsonResult(lookup)
}

// ExplainVerse handles the explain_verse tool
func (h *Handlers) ExplainVerse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference, err := request.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError("reference argument is required and must be a string"), nil
	}
	ref, err := citation.Parse(reference)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ref.IsRange() {
		return mcp.NewToolResultError("explain_verse takes a single verse; use lookup_verse for ranges"), nil
	}

	resp, err := h.app.Chat.ExplainVerse(ctx, core.ExplainRequest{
		Book:        ref.Canonical,
		Chapter:     ref.Chapter,
		Verse:       ref.Verse,
		Translation: request.GetString("translation", ""),
		Question:    request.GetString("question", ""),
	})
	if err != nil {
		return toolError(ctx, "explanation failed", err), nil
	}
	return jsonResult(resp)
}

// Chat handles the chat tool
func (h *Handlers) Chat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}

	history, err := extractHistory(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := core.ChatRequest{
		Message:              message,
		History:              history,
		IncludeSearch:        request.GetBool("include_search", true),
		PreferredTranslation: request.GetString("translation", ""),
	}
	if prefs, err := h.loadPrefs(); err == nil {
		req.StoredPreference = prefs.Translation
	} else {
		logging.FromContext(ctx).Warn("preferences_unreadable", "error", err)
	}

	resp, err := h.app.Chat.Chat(ctx, req)
	if err != nil {
		return toolError(ctx, "chat failed", err), nil
	}
	return jsonResult(resp)
}

// ListTranslations handles the list_translations tool
func (h *Handlers) ListTranslations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"translations": h.app.Scripture.Translations(),
		"default":      h.app.Resolver.Catalog().Default(),
	}
	if prefs, err := h.loadPrefs(); err == nil && prefs.Translation != "" {
		response["preferred"] = prefs.Translation
	}
	return jsonResult(response)
}

// SetTranslation handles the set_translation tool
func (h *Handlers) SetTranslation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code argument is required and must be a string"), nil
	}

	prefs, err := h.loadPrefs()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load preferences: %v", err)), nil
	}
	prefs.Merge(models.Preferences{Translation: code})

	t, ok := h.app.Resolver.Catalog().Get(prefs.Translation)
	if !ok {
		return mcp.NewToolResultError((&apperr.TranslationNotFoundError{Code: prefs.Translation}).Error()), nil
	}
	prefs.Language = t.LanguageCode

	if err := h.savePrefs(prefs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save preferences: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"success":     true,
		"translation": t,
	})
}

// extractHistory reads the optional history argument
func extractHistory(args map[string]any) ([]models.ConversationTurn, error) {
	raw, ok := args["history"]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("history must be an array of {role, content} objects")
	}

	history := make([]models.ConversationTurn, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("history[%d] must be an object", i)
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		turn, err := models.NewConversationTurn(role, content)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		history = append(history, *turn)
	}
	return history, nil
}

// toolError renders err for the agent. Internal causes are logged, not returned.
func toolError(ctx context.Context, op string, err error) *mcp.CallToolResult {
	var uf *apperr.UserFacingError
	switch {
	case errors.As(err, &uf):
		return mcp.NewToolResultError(uf.Message)
	case errors.Is(err, apperr.ErrInvalidInput), errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrTranslationNotFound):
		return mcp.NewToolResultError(err.Error())
	}
	logging.FromContext(ctx).Error("mcp_tool_failed", "op", op, "error", err)
	if apperr.IsFatal(err) {
		return mcp.NewToolResultError(op + ": the server's embedding configuration does not match the corpus")
	}
	return mcp.NewToolResultError(op)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
