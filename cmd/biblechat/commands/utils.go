// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Output formatting, truncation and flag validation used by search, verse and chat
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// containsString checks if a slice contains a string, ignoring case
func containsString(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// validateRange returns error if n is outside [lo, hi]
func validateRange(n, lo, hi int, name string) error {
	if n < lo || n > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, n)
	}
	return nil
}

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == "json"
}

// validateFormat rejects unknown --format values
func validateFormat() error {
	if !containsString([]string{"auto", "table", "json"}, outputFormat) {
		return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
	}
	return nil
}

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", jsonData)
	return err
}
