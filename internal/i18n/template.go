package i18n

import (
	"strings"
	"sync"
	"text/template"
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes the characters that carry meaning in Telegram's
// legacy Markdown parse mode.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

var funcs = template.FuncMap{
	"md": EscapeMarkdown,
}

type templateCache struct {
	mu    sync.RWMutex
	byKey map[string]*template.Template
}

func newTemplateCache() *templateCache {
	return &templateCache{byKey: make(map[string]*template.Template)}
}

// render falls back to the raw text when it is not a valid template.
func (c *templateCache) render(cacheKey, text string, data any) string {
	if !strings.Contains(text, "{{") {
		return text
	}

	c.mu.RLock()
	tpl, ok := c.byKey[cacheKey]
	c.mu.RUnlock()

	if !ok {
		parsed, err := template.New(cacheKey).Funcs(funcs).Option("missingkey=zero").Parse(text)
		if err != nil {
			return text
		}
		c.mu.Lock()
		c.byKey[cacheKey] = parsed
		c.mu.Unlock()
		tpl = parsed
	}

	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return text
	}
	return b.String()
}
