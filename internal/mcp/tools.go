// ABOUTME: MCP tool definitions and registration for the scripture chat server
// ABOUTME: Exposes search, lookup, explanation, chat and translation preference tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/bible-chat/internal/app"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, a *app.App) *Handlers {
	handlers := NewHandlers(a)

	translationProp := map[string]interface{}{
		"type":        "string",
		"description": "Translation code such as web, kjv or ita1927 (default: detected from the text or stored preference)",
	}

	server.AddTool(mcp.Tool{
		Name:        "search_scripture",
		Description: "Semantic search over Bible verses and curated passages. Returns the closest matches with similarity scores.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to search for, e.g. 'comfort in grief'",
				},
				"translation": translationProp,
				"max_verses": map[string]interface{}{
					"type":        "number",
					"description": "Maximum verses to return, 1-20 (default: 5)",
					"default":     5,
				},
				"max_passages": map[string]interface{}{
					"type":        "number",
					"description": "Maximum passages to return, 0-5 (default: 2)",
					"default":     2,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchScripture)

	server.AddTool(mcp.Tool{
		Name:        "lookup_verse",
		Description: "Look up a verse or range by reference, e.g. 'John 3:16', 'Psalm 23:1-6' or 'Giovanni 3:16'.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reference": map[string]interface{}{
					"type":        "string",
					"description": "Verse reference in any supported language",
				},
				"translation": translationProp,
				"context": map[string]interface{}{
					"type":        "number",
					"description": "Verses of surrounding context for a single verse, 0-10 (default: 0)",
					"default":     0,
				},
			},
			Required: []string{"reference"},
		},
	}, handlers.LookupVerse)

	server.AddTool(mcp.Tool{
		Name:        "explain_verse",
		Description: "Explain a verse with its surrounding context: background, themes and application.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"reference": map[string]interface{}{
					"type":        "string",
					"description": "Single verse reference, e.g. 'Romans 8:28'",
				},
				"translation": translationProp,
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Optional question about the verse",
				},
			},
			Required: []string{"reference"},
		},
	}, handlers.ExplainVerse)

	server.AddTool(mcp.Tool{
		Name:        "chat",
		Description: "Ask for encouragement or guidance. Answers are grounded in retrieved scripture and list the verses cited.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The user's message",
				},
				"translation": translationProp,
				"include_search": map[string]interface{}{
					"type":        "boolean",
					"description": "Retrieve scripture before answering (default: true)",
					"default":     true,
				},
				"history": map[string]interface{}{
					"type":        "array",
					"description": "Earlier turns, oldest first",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"role":    map[string]interface{}{"type": "string", "enum": []string{"user", "assistant"}},
							"content": map[string]interface{}{"type": "string"},
						},
						"required": []string{"role", "content"},
					},
				},
			},
			Required: []string{"message"},
		},
	}, handlers.Chat)

	server.AddTool(mcp.Tool{
		Name:        "list_translations",
		Description: "List available translations, the default, and the stored preference.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListTranslations)

	server.AddTool(mcp.Tool{
		Name:        "set_translation",
		Description: "Remember a preferred translation for later chats.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Translation code to remember",
				},
			},
			Required: []string{"code"},
		},
	}, handlers.SetTranslation)

	return handlers
}
