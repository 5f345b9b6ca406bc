package media

import (
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// PlainText converts an HTML fragment from the rich text editor to markdown.
// Input without markup passes through trimmed. On a conversion error the raw
// input is returned so callers never lose the author's text.
func PlainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" || !strings.ContainsAny(html, "<&") {
		return html
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}

// TextLength is the length in characters of the normalized text.
func TextLength(html string) int {
	return utf8.RuneCountInString(PlainText(html))
}
