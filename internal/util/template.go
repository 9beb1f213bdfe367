package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate replaces template variables using Go's text/template package.
// Prompts are plain text, so no HTML escaping is applied.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("prompt").Funcs(template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"bullets": func(items []string) string {
			var b strings.Builder
			for _, it := range items {
				fmt.Fprintf(&b, "- %s\n", it)
			}
			return b.String()
		},
	}).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// MustRender is RenderTemplate for compile-time constant templates; it
// panics on malformed templates.
func MustRender(text string, data map[string]any) string {
	out, err := RenderTemplate(text, data)
	if err != nil {
		panic(fmt.Sprintf("render template: %v", err))
	}
	return out
}
