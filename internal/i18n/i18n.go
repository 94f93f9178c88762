// Package i18n serves the chat texts from YAML catalogs compiled into the binary.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// F renders the value of key as a text/template with data.
	F(key string, data any) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
	templates    *templateCache
}

// Load loads the embedded catalogs.
func Load(defaultLang string) (*Manager, error) {
	sub, err := fs.Sub(locales, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: open embedded locales: %w", err)
	}
	return LoadFromFS(sub, defaultLang)
}

// LoadFromFS loads translations from the YAML files at the root of fsys.
func LoadFromFS(fsys fs.FS, defaultLang string) (*Manager, error) {
	catalog, err := parseDir(fsys)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = "en"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang, templates: newTemplateCache()}, nil
}

// MustLoad is Load for callers that treat a broken catalog as a programming error.
func MustLoad(defaultLang string) *Manager {
	m, err := Load(defaultLang)
	if err != nil {
		panic(err)
	}
	return m
}

// Variants returns the value of key in every loaded language. It lets the
// chat front-end recognise a menu button whatever language it was rendered in.
func (m *Manager) Variants(key string) []string {
	if m == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, lang := range m.Languages() {
		value, ok := m.translations[lang][key]
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// Translator returns a translator for the requested language.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := strings.ToLower(strings.TrimSpace(lang))
	if norm == "" || m.translations[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
		templates:    m.templates,
	}
}

// Languages returns all loaded languages.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	languages := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
	templates    *templateCache
}

func (t translator) F(key string, data any) string {
	text := t.T(key)
	if t.templates == nil {
		return text
	}
	return t.templates.render(t.lang+":"+key, text, data)
}

func (t translator) Lang() string {
	return t.lang
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if value := t.lookup(t.lang, key); value != "" {
		return value
	}

	if value := t.lookup(t.fallback, key); value != "" {
		return value
	}

	return key
}

func (t translator) lookup(lang, key string) string {
	if lang == "" || t.translations == nil {
		return ""
	}

	if entries := t.translations[lang]; entries != nil {
		if value, ok := entries[key]; ok {
			return value
		}
	}

	return ""
}

// parseDir merges every YAML file at the root of fsys. Each file maps a
// language code to a tree of keys; nested keys are joined with dots.
func parseDir(fsys fs.FS) (map[string]map[string]string, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("i18n: list locales: %w", err)
		}
		names = append(names, matches...)
	}
	if len(names) == 0 {
		return nil, errors.New("i18n: no yaml files found")
	}
	sort.Strings(names)

	catalog := make(map[string]map[string]string)
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", name, err)
		}

		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", name, err)
		}

		for lang, tree := range doc {
			lang = strings.ToLower(strings.TrimSpace(lang))
			if lang == "" {
				continue
			}
			if catalog[lang] == nil {
				catalog[lang] = make(map[string]string)
			}
			if err := flatten(catalog[lang], "", tree); err != nil {
				return nil, fmt.Errorf("i18n: %s: %s: %w", name, lang, err)
			}
		}
	}

	return catalog, nil
}

// flatten writes the string leaves of node into out. Any other scalar is
// rejected so a typo such as an unquoted number fails at startup.
func flatten(out map[string]string, prefix string, node any) error {
	switch v := node.(type) {
	case nil:
		return nil
	case string:
		if prefix == "" {
			return errors.New("text without a key")
		}
		out[prefix] = v
		return nil
	case map[string]any:
		for key, child := range v {
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := flatten(out, key, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("key %q: expected text, got %T", prefix, node)
	}
}
