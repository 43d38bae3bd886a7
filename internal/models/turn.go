// ABOUTME: ConversationTurn is one caller-owned message of chat history
// ABOUTME: Also defines the ChatResponse returned by the chat orchestrator
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single message in caller-supplied history
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewConversationTurn creates a turn with validation
func NewConversationTurn(role, content string) (*ConversationTurn, error) {
	turn := &ConversationTurn{Role: strings.ToLower(strings.TrimSpace(role)), Content: content}
	if err := turn.Validate(); err != nil {
		return nil, err
	}
	return turn, nil
}

// Validate checks role and content
func (t ConversationTurn) Validate() error {
	if t.Role != RoleUser && t.Role != RoleAssistant {
		return fmt.Errorf("role must be %q or %q, got %q", RoleUser, RoleAssistant, t.Role)
	}
	if strings.TrimSpace(t.Content) == "" {
		return errors.New("message content cannot be empty")
	}
	return nil
}

// TrailingWindow returns the last n turns of history. n <= 0 returns nil.
func TrailingWindow(history []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ScriptureContext is the retrieval attached to a chat response
type ScriptureContext struct {
	Query    string         `json:"query"`
	Verses   []SearchResult `json:"verses"`
	Passages []SearchResult `json:"passages"`
	Degraded bool           `json:"degraded,omitempty"`
}

// TranslationInfo describes the translation a response was grounded in
type TranslationInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Language  string `json:"language"`
}

// Info returns the display fields of t
func (t Translation) Info() *TranslationInfo {
	return &TranslationInfo{Code: t.Code, Name: t.Name, ShortName: t.ShortName, Language: t.Language}
}

// ChatResponse is the packaged result of one chat request
type ChatResponse struct {
	Message             string            `json:"message"`
	ScriptureContext    *ScriptureContext `json:"scriptureContext,omitempty"`
	DetectedTranslation string            `json:"detectedTranslation,omitempty"`
	TranslationInfo     *TranslationInfo  `json:"translationInfo,omitempty"`
	VersesCited         []string          `json:"versesCited"`
	Provider            string            `json:"provider"`
	Model               string            `json:"model"`
	MessageID           string            `json:"messageId"`
}
