// Package id generates the string identifiers the server hands out.
// Domain entities use integer keys from SQLite; these ids cover sessions,
// backups and public share tokens.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// shareAlphabet is restricted to alphanumerics so share tokens survive
// being pasted into chat apps and query strings unescaped.
const shareAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShareTokenLength is the length of shortened URL tokens.
const ShareTokenLength = 5

// Generate creates a prefixed unique ID, e.g. "sess-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// ShareToken returns a short alphanumeric token for shortened URLs.
// Tokens are short enough to collide; callers must check uniqueness.
func ShareToken() (string, error) {
	tok, err := gonanoid.Generate(shareAlphabet, ShareTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return tok, nil
}
