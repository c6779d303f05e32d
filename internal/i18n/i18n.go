// Package i18n resolves localized bot strings from YAML catalogs.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultDir = "internal/i18n/locales"

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Tf(key string, args ...any) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	catalogs    map[string]map[string]string
	defaultLang string
}

// Load loads translations from the default locales directory.
func Load(defaultLang string) (*Manager, error) {
	return LoadFromDir(defaultDir, defaultLang)
}

// LoadFromDir loads translations from a directory of <lang>.yaml files.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir %q: %w", dir, err)
	}

	catalogs := make(map[string]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		lang := strings.TrimSuffix(name, ".yaml")
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304: catalog paths come from the deployment
		if err != nil {
			return nil, fmt.Errorf("read locale %q: %w", name, err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", name, err)
		}

		flat := make(map[string]string)
		flatten("", raw, flat)
		catalogs[lang] = flat
	}

	if defaultLang == "" {
		defaultLang = "en"
	}

	if _, ok := catalogs[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{catalogs: catalogs, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language, falling back
// to the default language for unknown languages and missing keys.
func (m *Manager) Translator(lang string) Translator {
	norm := strings.ToLower(strings.TrimSpace(lang))
	if norm == "" || m.catalogs[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:     norm,
		catalog:  m.catalogs[norm],
		fallback: m.catalogs[m.defaultLang],
	}
}

type translator struct {
	lang     string
	catalog  map[string]string
	fallback map[string]string
}

func (t translator) T(key string) string {
	if v, ok := t.catalog[key]; ok {
		return v
	}
	if v, ok := t.fallback[key]; ok {
		return v
	}
	return key
}

func (t translator) Tf(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}

func (t translator) Lang() string {
	return t.lang
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}
