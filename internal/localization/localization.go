// Package localization holds the message catalogs used for moderator alerts.
// Each language lives in its own JSON object of key to format string.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed locales/*.json
var bundled embed.FS

// DefaultLanguage is the reference catalog: every other catalog must cover
// its keys, and lookups in an unknown language or for a missing key use it.
const DefaultLanguage = "ru"

type catalog map[string]string

// Localizer is immutable once built and safe for concurrent use.
type Localizer struct {
	catalogs map[string]catalog
}

// NewLocalizer loads every *.json at the root of fsys; the file name
// without extension is the language code. Loading fails when the default
// catalog is present and another catalog lacks one of its keys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}

	l := &Localizer{catalogs: make(map[string]catalog, len(names))}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", name, err)
		}
		var c catalog
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", name, err)
		}
		l.catalogs[normalize(strings.TrimSuffix(path.Base(name), ".json"))] = c
	}

	if err := l.checkCoverage(); err != nil {
		return nil, err
	}
	return l, nil
}

// Bundled returns a Localizer over the catalogs compiled into the binary.
func Bundled() (*Localizer, error) {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		return nil, err
	}
	return NewLocalizer(sub)
}

func (l *Localizer) checkCoverage() error {
	ref, ok := l.catalogs[DefaultLanguage]
	if !ok {
		return nil
	}
	for lang, c := range l.catalogs {
		var missing []string
		for key := range ref {
			if _, ok := c[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("catalog %q is missing keys: %s", lang, strings.Join(missing, ", "))
		}
	}
	return nil
}

// GetString resolves key in lang, then in DefaultLanguage, and finally
// returns the key itself. lang is matched on its primary subtag, so "en-US"
// and "EN" both use the en catalog.
func (l *Localizer) GetString(lang, key string) string {
	if v, ok := l.catalogs[normalize(lang)][key]; ok {
		return v
	}
	if v, ok := l.catalogs[DefaultLanguage][key]; ok {
		return v
	}
	return key
}

// Format looks up key and applies fmt.Sprintf with args.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
