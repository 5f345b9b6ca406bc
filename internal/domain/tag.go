package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Tag is a global label attached to stories. Text is the identity used for
// membership checks; two tags never share the same normalized text.
type Tag struct {
	Lifecycle
	Text       string `json:"text"`
	StoryCount int    `json:"story_count,omitempty"`
}

// NormalizeTagText applies NFC normalization and trims surrounding space, so
// visually identical text typed on different keyboards compares equal.
func NormalizeTagText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}
