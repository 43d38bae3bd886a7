// ABOUTME: CLI chat: one-shot when a message is given, interactive otherwise
// ABOUTME: Streams answers by default and remembers the conversation within a session
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/core"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/util"
)

var chatRetryBaseDelay = 500 * time.Millisecond

var (
	chatTranslation string
	chatStream      bool
	chatNoSearch    bool
	chatRetries     int
	chatShowVerses  bool
)

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with scripture-grounded answers",
		Long: `Chat with scripture-grounded answers.

With a message, answers once and exits. Without one, starts an
interactive session that keeps the conversation history; type "exit"
or press Ctrl-D to leave.

The translation is chosen from --translation, then the language of
your message, then the preference saved with "translations set".

Examples:
  biblechat chat "I feel anxious about tomorrow"
  biblechat chat --translation ita1927 "Mi sento solo"
  biblechat chat --no-stream --format json "What is grace?"
  biblechat chat`,
		RunE: runChat,
	}

	cmd.Flags().StringVarP(&chatTranslation, "translation", "t", "", "Translation code for retrieval and quotes")
	cmd.Flags().BoolVar(&chatStream, "stream", true, "Print the answer as it is generated")
	cmd.Flags().BoolVar(&chatNoSearch, "no-search", false, "Answer without retrieving scripture")
	cmd.Flags().IntVar(&chatRetries, "retries", 2, "Retries when the language model is busy or unreachable")
	cmd.Flags().BoolVar(&chatShowVerses, "show-verses", false, "List the retrieved verses after each answer")

	return cmd
}

// chatSession holds conversation state for one CLI invocation
type chatSession struct {
	chat       *core.ChatService
	out        io.Writer
	history    []models.ConversationTurn
	preference string
	stream     bool
	retries    int
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	if err := validateRange(chatRetries, 0, 10, "retries"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	session := &chatSession{
		chat:    a.Chat,
		out:     cmd.OutOrStdout(),
		stream:  chatStream && !jsonOutput(),
		retries: chatRetries,
	}
	if prefs, err := models.LoadPreferences(); err == nil {
		session.preference = prefs.Translation
	} else {
		logging.Logger().Warn("preferences_unreadable", "error", err)
	}

	if len(args) > 0 {
		return session.ask(ctx, strings.Join(args, " "))
	}
	return session.repl(ctx, cmd.InOrStdin())
}

func (s *chatSession) repl(ctx context.Context, in io.Reader) error {
	if !quiet {
		fmt.Fprintln(s.out, `Bible Chat. Type "exit" to quit.`)
	}
	scanner := bufio.NewScanner(in)
	for {
		if !quiet {
			fmt.Fprint(s.out, "\n> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		}

		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// ask answers one message and appends both turns to the history
func (s *chatSession) ask(ctx context.Context, message string) error {
	req := core.ChatRequest{
		Message:              message,
		History:              s.history,
		IncludeSearch:        !chatNoSearch,
		PreferredTranslation: chatTranslation,
		StoredPreference:     s.preference,
	}

	var (
		resp *models.ChatResponse
		err  error
	)
	if s.stream {
		resp, err = withRetries(ctx, s.retries, func() (*models.ChatResponse, error) {
			return s.streamOnce(ctx, req)
		})
	} else {
		resp, err = withRetries(ctx, s.retries, func() (*models.ChatResponse, error) {
			return s.chat.Chat(ctx, req)
		})
	}
	if err != nil {
		return err
	}

	s.history = append(s.history,
		models.ConversationTurn{Role: models.RoleUser, Content: message},
		models.ConversationTurn{Role: models.RoleAssistant, Content: resp.Message},
	)

	if jsonOutput() {
		return writeJSON(s.out, resp)
	}
	if !s.stream {
		fmt.Fprintln(s.out, resp.Message)
	}
	s.printCitations(resp)
	return nil
}

// streamOnce prints chunks as they arrive. Only a failure to open the
// stream is retried; once text is printed the error is final.
func (s *chatSession) streamOnce(ctx context.Context, req core.ChatRequest) (*models.ChatResponse, error) {
	cs, err := s.chat.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cs.Close() }()

	printed := false
	for chunk := range cs.Chunks() {
		fmt.Fprint(s.out, chunk)
		printed = true
	}
	if printed {
		fmt.Fprintln(s.out)
	}
	resp, err := cs.Result()
	if err != nil && printed {
		return nil, permanent{err}
	}
	return resp, err
}

func (s *chatSession) printCitations(resp *models.ChatResponse) {
	if quiet {
		return
	}
	if len(resp.VersesCited) > 0 {
		fmt.Fprintf(s.out, "\nCited: %s\n", strings.Join(resp.VersesCited, ", "))
	}
	if chatShowVerses && resp.ScriptureContext != nil {
		for _, v := range resp.ScriptureContext.Verses {
			fmt.Fprintf(s.out, "  %s  %s\n", v.Reference, truncate(v.Text, 80))
		}
	}
}

// permanent marks an error that must not be retried
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

func retryable(err error) bool {
	var p permanent
	if errors.As(err, &p) {
		return false
	}
	return errors.Is(err, apperr.ErrProviderRateLimited) || errors.Is(err, apperr.ErrProviderUnavailable)
}

// withRetries calls fn until it succeeds, fails permanently, or retries run out
func withRetries[T any](ctx context.Context, retries int, fn func() (T, error)) (T, error) {
	var result T
	policy := util.Policy{
		Retries:   retries,
		BaseDelay: chatRetryBaseDelay,
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logging.FromContext(ctx).Debug("chat_retry", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		},
	}
	err := policy.Do(ctx, func() error {
		var err error
		result, err = fn()
		return err
	})
	var p permanent
	if errors.As(err, &p) {
		err = p.err
	}
	return result, err
}
