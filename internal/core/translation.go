// ABOUTME: Translation catalog and resolver deciding which translation answers a request
// ABOUTME: Order is explicit code, detected language, stored preference, then the catalog default
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/bible-chat/internal/apperr"
	"github.com/harper/bible-chat/internal/logging"
	"github.com/harper/bible-chat/internal/models"
	"github.com/harper/bible-chat/internal/storage"
)

// FallbackTranslation is used when the catalog has no default of its own
const FallbackTranslation = "web"

// Catalog is the immutable set of known translations, in repository order
type Catalog struct {
	translations []models.Translation
	byCode       map[string]int
}

// NewCatalog validates and indexes translations. Codes must be unique and
// at most one translation may be flagged default.
func NewCatalog(translations []models.Translation) (*Catalog, error) {
	c := &Catalog{
		translations: make([]models.Translation, 0, len(translations)),
		byCode:       make(map[string]int, len(translations)),
	}

	defaults := 0
	for _, t := range translations {
		code := normalizeCode(t.Code)
		if code == "" {
			return nil, fmt.Errorf("%w: translation with empty code", apperr.ErrInvalidConfig)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("%w: duplicate translation code %q", apperr.ErrInvalidConfig, code)
		}
		if t.IsDefault {
			defaults++
		}
		t.Code = code
		c.byCode[code] = len(c.translations)
		c.translations = append(c.translations, t)
	}

	if defaults > 1 {
		return nil, fmt.Errorf("%w: %d translations flagged default, want at most one", apperr.ErrInvalidConfig, defaults)
	}
	return c, nil
}

// LoadCatalog reads the translation list from the repository
func LoadCatalog(ctx context.Context, repo storage.Repository) (*Catalog, error) {
	translations, err := repo.ListTranslations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}
	return NewCatalog(translations)
}

// Get returns the translation for a code, ignoring case and surrounding space
func (c *Catalog) Get(code string) (models.Translation, bool) {
	i, ok := c.byCode[normalizeCode(code)]
	if !ok {
		return models.Translation{}, false
	}
	return c.translations[i], true
}

// All returns a copy of every translation in catalog order
func (c *Catalog) All() []models.Translation {
	out := make([]models.Translation, len(c.translations))
	copy(out, c.translations)
	return out
}

// Len reports how many translations are known
func (c *Catalog) Len() int { return len(c.translations) }

// ForLanguage returns the translations for a language, the default
// translation first and the rest in catalog order.
func (c *Catalog) ForLanguage(lang string) []models.Translation {
	lang = strings.ToLower(lang)
	var first, rest []models.Translation
	for _, t := range c.translations {
		if !strings.EqualFold(t.LanguageCode, lang) {
			continue
		}
		if t.IsDefault {
			first = append(first, t)
		} else {
			rest = append(rest, t)
		}
	}
	return append(first, rest...)
}

// Default returns the translation flagged default, else "web", else the
// first translation. An empty catalog yields "".
func (c *Catalog) Default() string {
	for _, t := range c.translations {
		if t.IsDefault {
			return t.Code
		}
	}
	if _, ok := c.byCode[FallbackTranslation]; ok {
		return FallbackTranslation
	}
	if len(c.translations) > 0 {
		return c.translations[0].Code
	}
	return ""
}

// Resolution sources
const (
	SourceExplicit   = "explicit"
	SourceDetected   = "detected"
	SourcePreference = "preference"
	SourceDefault    = "default"
)

// ResolveInput carries everything the resolver may consult. StoredPreference
// is opaque to the core: callers look it up and pass it in.
type ResolveInput struct {
	Explicit         string
	Message          string
	StoredPreference string
}

// Resolution is the chosen translation and why it was chosen
type Resolution struct {
	Code        string             `json:"code"`
	Source      string             `json:"source"`
	Language    string             `json:"language"`
	Translation models.Translation `json:"translation"`
}

// Resolver picks the translation for a request
type Resolver struct {
	catalog     *Catalog
	detector    LanguageDetector
	defaultCode string
}

// NewResolver creates a resolver. A nil detector disables language detection.
// defaultCode is the configured default, consulted after the catalog's own.
func NewResolver(catalog *Catalog, detector LanguageDetector, defaultCode string) *Resolver {
	return &Resolver{catalog: catalog, detector: detector, defaultCode: normalizeCode(defaultCode)}
}

// Catalog returns the catalog the resolver consults
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Resolve applies the decision order. Only an unknown explicit code is an error.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	logger := logging.FromContext(ctx)

	if code := normalizeCode(in.Explicit); code != "" {
		t, ok := r.catalog.Get(code)
		if !ok {
			return Resolution{}, &apperr.TranslationNotFoundError{Code: code}
		}
		return r.resolution(t, SourceExplicit, ""), nil
	}

	if r.detector != nil {
		if lang, ok := r.detector.Detect(in.Message); ok {
			if candidates := r.catalog.ForLanguage(lang); len(candidates) > 0 {
				logger.Debug("language_detected", "language", lang, "translation", candidates[0].Code)
				return r.resolution(candidates[0], SourceDetected, lang), nil
			}
			logger.Debug("language_without_translation", "language", lang)
		}
	}

	if code := normalizeCode(in.StoredPreference); code != "" {
		if t, ok := r.catalog.Get(code); ok {
			return r.resolution(t, SourcePreference, ""), nil
		}
		logger.Debug("stored_preference_ignored", "translation", code)
	}

	return r.resolution(r.defaultTranslation(), SourceDefault, ""), nil
}

// defaultTranslation prefers the catalog's flagged default, then the
// configured default, then whatever Catalog.Default falls back to.
func (r *Resolver) defaultTranslation() models.Translation {
	for _, t := range r.catalog.translations {
		if t.IsDefault {
			return t
		}
	}
	if t, ok := r.catalog.Get(r.defaultCode); ok {
		return t
	}
	if t, ok := r.catalog.Get(r.catalog.Default()); ok {
		return t
	}
	code := r.defaultCode
	if code == "" {
		code = FallbackTranslation
	}
	return models.Translation{Code: code, LanguageCode: "en"}
}

func (r *Resolver) resolution(t models.Translation, source, detected string) Resolution {
	lang := detected
	if lang == "" {
		lang = strings.ToLower(t.LanguageCode)
	}
	if lang == "" {
		lang = "en"
	}
	return Resolution{Code: t.Code, Source: source, Language: lang, Translation: t}
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
