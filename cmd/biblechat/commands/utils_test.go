// ABOUTME: Tests for shared utility functions used by CLI commands
// ABOUTME: Verifies truncate, containsString, validation helpers and JSON output

package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"very short maxLen", "hello", 2, "he"},
		{"maxLen equals 3", "hello", 3, "hel"},
		{"empty string", "", 10, ""},
		{"accented text counts runes", "Poiché Iddio ha tanto amato", 9, "Poiché..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestContainsString(t *testing.T) {
	slice := []string{"auto", "table", "json"}

	tests := []struct {
		item string
		want bool
	}{
		{"json", true},
		{"JSON", true},
		{"yaml", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := containsString(slice, tt.item); got != tt.want {
			t.Errorf("containsString(%q) = %v, want %v", tt.item, got, tt.want)
		}
	}
}

func TestValidatePositiveInt(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{1, false},
		{100, false},
		{0, true},
		{-5, true},
	}

	for _, tt := range tests {
		err := validatePositiveInt(tt.n, "limit")
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePositiveInt(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
		if err != nil && !strings.Contains(err.Error(), "limit") {
			t.Errorf("error should name the flag: %v", err)
		}
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{0, false},
		{5, false},
		{-1, true},
		{6, true},
	}

	for _, tt := range tests {
		if err := validateRange(tt.n, 0, 5, "passages"); (err != nil) != tt.wantErr {
			t.Errorf("validateRange(%d) error = %v, wantErr %v", tt.n, err, tt.wantErr)
		}
	}
}

func TestValidateFormat(t *testing.T) {
	defer func() { outputFormat = "auto" }()

	for _, format := range []string{"auto", "table", "json"} {
		outputFormat = format
		if err := validateFormat(); err != nil {
			t.Errorf("validateFormat(%q) error = %v", format, err)
		}
	}

	outputFormat = "xml"
	if err := validateFormat(); err == nil {
		t.Error("validateFormat(xml) should fail")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"verses": 3}); err != nil {
		t.Fatalf("writeJSON() error = %v", err)
	}
	if buf.String() != "{\n  \"verses\": 3\n}\n" {
		t.Errorf("writeJSON() = %q", buf.String())
	}
}

// findSubstring checks if a string contains a substring
func findSubstring(s, substr string) bool {
	return strings.Contains(s, substr)
}
