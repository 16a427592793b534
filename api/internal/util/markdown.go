package util

import "strings"

var markdownEscaper = strings.NewReplacer(
	"`", "'",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
)

// EscapeMarkdown makes s safe to embed in a legacy Markdown message.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
