package render

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Telegram legacy Markdown only knows these four control characters.
var legacyMarkdown = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown escapes user text for parse_mode=Markdown.
func EscapeMarkdown(s string) string { return legacyMarkdown.Replace(s) }

// Link renders [text](url). An empty url degrades to the bare text.
func Link(text, url string) string {
	if url == "" {
		return text
	}
	return "[" + text + "](" + url + ")"
}

// TruncateRunes keeps the first n runes of s and appends suffix when
// something was cut.
func TruncateRunes(s string, n int, suffix string) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + suffix
		}
		i++
	}
	return s
}

// Len is the length Telegram checks against its message limit (UTF-16 code units).
func Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// LastSegment returns what follows the final '/' in ref ("refs/heads/main" -> "main").
func LastSegment(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
