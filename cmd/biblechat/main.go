// ABOUTME: Entry point for the biblechat binary
// ABOUTME: Build metadata is injected with -ldflags and handed to the command tree
package main

import (
	"fmt"
	"os"

	"github.com/harper/bible-chat/cmd/biblechat/commands"
)

// Overridden at link time: -ldflags "-X main.version=v1.0.0 -X main.commit=... -X main.date=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
