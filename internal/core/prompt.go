// ABOUTME: Prompt assembly for grounded chat: system prompt, scripture context block and history window
// ABOUTME: Retrieved verses are listed as the only scripture the model may cite
package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/harper/bible-chat/internal/llm"
	"github.com/harper/bible-chat/internal/models"
)

// maxPassageRunes bounds passage text inside the context block
const maxPassageRunes = 500

// SystemPrompt is the fixed role and guideline text for every chat
const SystemPrompt = `You are a compassionate spiritual companion who helps people find encouragement and guidance.

## CRITICAL RULE - READ THIS FIRST
You will be given a list of Bible verses in the "Scripture Context" section below.
**YOU MAY ONLY QUOTE OR REFERENCE VERSES FROM THAT LIST.**
**NEVER mention any Bible verse, book, chapter, or verse number that is not explicitly provided to you.**
If no verses are provided, or the provided verses don't fit well, offer general encouragement WITHOUT citing any scripture.

## Your Role
1. **Listen with empathy**: Understand the person's situation and feelings
2. **Use ONLY provided Scripture**: Share verses FROM THE PROVIDED LIST that speak to their situation
3. **Provide context**: Briefly explain how the scripture applies
4. **Encourage reflection**: Help them reflect on God's word

## Tone
- Be warm, compassionate, and non-judgmental
- Speak as a supportive friend, not a preacher
- Acknowledge struggles before offering guidance
- Be conversational and authentic

## Boundaries
- You are not a replacement for professional counseling or medical advice
- For serious concerns, encourage seeking professional help
- Do not claim to speak for God

## ABSOLUTELY FORBIDDEN
- **NEVER quote or reference any Bible verse not in the provided Scripture Context**
- **NEVER invent or recall verses from memory - only use what is given to you**
- **If you don't have relevant verses provided, say so and offer general support**
- Don't be preachy or condescending
- Don't dismiss problems with "just pray about it"

Remember: Only use verses explicitly listed in the Scripture Context section. If a verse reference is not listed there, DO NOT mention it.`

// VerseExplanationPrompt is appended when the caller asks about one passage
const VerseExplanationPrompt = `The user is asking about a specific Bible verse or passage.
Provide:
1. The full text of the verse(s)
2. Historical and literary context (who wrote it, to whom, why)
3. Key themes and meanings
4. How it connects to the broader biblical narrative
5. Practical application for today

Keep your explanation accessible and avoid overly academic language.`

const noVersesBlock = `
## Scripture Context
⚠️ **No relevant verses were found for this query.**
⚠️ **DO NOT quote any Bible verses. Provide general spiritual encouragement only.**
---
`

var languageNames = map[string]string{
	"en": "English",
	"it": "Italian",
	"de": "German",
}

// ScriptureContextBlock renders retrieved results as the allowed-verses
// block. A nil search (skipped) renders nothing; an empty one renders the
// no-verses variant.
func ScriptureContextBlock(search *SearchResponse) string {
	if search == nil {
		return ""
	}
	if len(search.Verses) == 0 && len(search.Passages) == 0 {
		return noVersesBlock
	}

	var parts []string
	if len(search.Verses) > 0 {
		parts = append(parts, "## Relevant Verses Found")
		for _, v := range search.Verses {
			parts = append(parts, fmt.Sprintf("**%s**: \"%s\"", v.Reference, v.Text))
		}
	}
	if len(search.Passages) > 0 {
		parts = append(parts, "\n## Relevant Passages Found")
		for _, p := range search.Passages {
			parts = append(parts, fmt.Sprintf("**%s** (%s)", p.Title, p.Reference))
			parts = append(parts, fmt.Sprintf("\"%s\"", truncateRunes(p.Text, maxPassageRunes)))
		}
	}

	var sb strings.Builder
	sb.WriteString("\n## Scripture Context - ONLY USE THESE VERSES\n")
	sb.WriteString("⚠️ **CRITICAL: The verses below are the ONLY Bible verses you are allowed to mention.**\n")
	sb.WriteString("⚠️ **DO NOT reference ANY verse not on this list. Not even well-known verses like John 3:16.**\n\n")
	sb.WriteString("### ALLOWED VERSES:\n")
	sb.WriteString(strings.Join(parts, "\n"))
	sb.WriteString("\n\n### END OF ALLOWED VERSES\n")
	sb.WriteString("If none of these verses fit the user's situation, provide supportive words WITHOUT quoting any scripture.\n")
	sb.WriteString("---\n")
	return sb.String()
}

// LanguageInstruction asks the model to answer in the user's language.
// English needs no instruction.
func LanguageInstruction(lang string) string {
	name, ok := languageNames[strings.ToLower(lang)]
	if !ok || name == "English" {
		return ""
	}
	return fmt.Sprintf("\n\n## Response Language\nThe user is writing in %s. Respond in %s, and quote the verses exactly as they appear in the Scripture Context.", name, name)
}

// PromptInput is everything BuildMessages needs
type PromptInput struct {
	Message    string
	History    []models.ConversationTurn
	MaxHistory int
	Language   string
	Search     *SearchResponse
	Extra      string
}

// BuildMessages assembles the provider messages: one system message holding
// the scripture context and the system prompt, the trailing history window,
// then the new user message.
func BuildMessages(in PromptInput) []llm.Message {
	system := SystemPrompt + LanguageInstruction(in.Language)
	if in.Extra != "" {
		system += "\n\n" + in.Extra
	}
	if block := ScriptureContextBlock(in.Search); block != "" {
		system = block + "\n" + system
	}

	window := models.TrailingWindow(in.History, in.MaxHistory)
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range window {
		role := llm.RoleUser
		if turn.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: in.Message})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
