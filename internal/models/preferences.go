// ABOUTME: Preferences holds the caller's remembered translation and language choice
// ABOUTME: Stored as JSON in the XDG config directory and read by the CLI before resolving translations
package models

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Preferences is what the CLI remembers between invocations
type Preferences struct {
	Translation string    `json:"translation,omitempty"`
	Language    string    `json:"language,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// PreferencesPath returns ~/.config/bible-chat/preferences.json, honouring XDG_CONFIG_HOME
func PreferencesPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = xdg.ConfigHome
	}
	return filepath.Join(configHome, "bible-chat", "preferences.json")
}

// LoadPreferences reads stored preferences. A missing file yields empty
// preferences and no error.
func LoadPreferences() (*Preferences, error) {
	data, err := os.ReadFile(PreferencesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Preferences{}, nil
		}
		return nil, err
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Save writes preferences, creating the config directory if needed
func (p *Preferences) Save() error {
	path := PreferencesPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	p.LastUpdated = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Merge applies non-empty values from update. Codes are lower-cased.
func (p *Preferences) Merge(update Preferences) {
	if code := strings.ToLower(strings.TrimSpace(update.Translation)); code != "" {
		p.Translation = code
	}
	if lang := strings.ToLower(strings.TrimSpace(update.Language)); lang != "" {
		p.Language = lang
	}
	p.LastUpdated = time.Now()
}
