package domain

import "strings"

// Language is an entry of the language registry.
type Language struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// Country is an entry of the country registry used to resolve a story's
// country of origin.
type Country struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// NormalizeCode lowercases and trims a language or country code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
