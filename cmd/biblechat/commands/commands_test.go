// ABOUTME: Tests for subcommand structure: usage, flags, defaults and examples
// ABOUTME: Commands that need a corpus are exercised through their helpers instead

package commands

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestSubcommandFlags(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		use      string
		flag     string
		defValue string
	}{
		{"search limit", NewSearchCmd(), "search <query>", "limit", "5"},
		{"search passages", NewSearchCmd(), "search <query>", "passages", "2"},
		{"search text", NewSearchCmd(), "search <query>", "text", "false"},
		{"chat stream", NewChatCmd(), "chat [message]", "stream", "true"},
		{"chat retries", NewChatCmd(), "chat [message]", "retries", "2"},
		{"chat translation", NewChatCmd(), "chat [message]", "translation", ""},
		{"verse context", NewVerseCmd(), "verse <reference>", "context", "0"},
		{"verse explain", NewVerseCmd(), "verse <reference>", "explain", "false"},
		{"serve addr", NewServeCmd(), "serve", "addr", ""},
		{"eval scenarios", NewEvalCmd(), "eval", "scenarios", ""},
		{"eval only", NewEvalCmd(), "eval", "only", "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cmd.Use != tt.use {
				t.Errorf("Use = %q, want %q", tt.cmd.Use, tt.use)
			}
			if tt.cmd.Short == "" || tt.cmd.Long == "" {
				t.Error("Short and Long descriptions should not be empty")
			}
			flag := tt.cmd.Flags().Lookup(tt.flag)
			if flag == nil {
				t.Fatalf("--%s flag not found", tt.flag)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("--%s default = %q, want %q", tt.flag, flag.DefValue, tt.defValue)
			}
		})
	}
}

func TestSubcommandExamples(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"search", NewSearchCmd().Long, []string{"--limit", "--text", "--format json"}},
		{"verse", NewVerseCmd().Long, []string{"Giovanni 3:16", "--context"}},
		{"chat", NewChatCmd().Long, []string{"--translation", "translations set"}},
		{"mcp", NewMCPCmd().Example, []string{"claude_desktop_config", `"args": ["mcp"]`}},
		{"serve", NewServeCmd().Long, []string{"/api/v1", "/health/ready"}},
		{"eval", NewEvalCmd().Example, []string{"--scenarios", "--only", "--output"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, part := range tt.want {
				if !findSubstring(tt.text, part) {
					t.Errorf("help text should contain %q", part)
				}
			}
		})
	}
}

func TestTranslationsCmd_SetSubcommand(t *testing.T) {
	cmd := NewTranslationsCmd()

	var found bool
	for _, sub := range cmd.Commands() {
		if sub.Use == "set <code>" {
			found = true
			if err := sub.Args(sub, []string{}); err == nil {
				t.Error("set should require a code")
			}
		}
	}
	if !found {
		t.Error("translations should have a set subcommand")
	}
}

func TestArgsValidation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     *cobra.Command
		args    []string
		wantErr bool
	}{
		{"search needs a query", NewSearchCmd(), nil, true},
		{"search takes one query", NewSearchCmd(), []string{"hope"}, false},
		{"verse needs a reference", NewVerseCmd(), nil, true},
		{"verse joins words", NewVerseCmd(), []string{"1", "John", "4:8"}, false},
		{"serve takes no args", NewServeCmd(), []string{"extra"}, true},
		{"eval takes no args", NewEvalCmd(), []string{"extra"}, true},
		{"mcp takes no args", NewMCPCmd(), []string{"extra"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Args(tt.cmd, tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("Args(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}
