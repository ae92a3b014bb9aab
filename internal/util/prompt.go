package util

import "strings"

// RenderPrompt substitutes {{NAME}} placeholders with the mapped values
// using exact placeholder match. Placeholders without a mapping are left
// verbatim: partially specified templates are a legitimate operating
// mode, not an error.
func RenderPrompt(template string, variables map[string]string) string {
	if !strings.Contains(template, "{{") { // fast path: no placeholders
		return template
	}
	out := template
	for name, value := range variables {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
