package backup

import "time"

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

const manifestName = "manifest.json"

// Entity files inside the archive, in restore order.
const (
	fileLanguages = "entities/languages.jsonl"
	fileCountries = "entities/countries.jsonl"
	fileUsers     = "entities/users.jsonl"
	fileTags      = "entities/tags.jsonl"
	fileStories   = "entities/stories.jsonl"
	fileEvents    = "entities/events.jsonl"
	fileShortURLs = "entities/short_urls.jsonl"
)

// Manifest describes backup contents and metadata.
type Manifest struct {
	Version       string       `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	CreatedBy     string       `json:"created_by,omitempty"`
	ServerVersion string       `json:"server_version"`
	Counts        EntityCounts `json:"counts"`
}

// EntityCounts tracks entity counts for validation and progress reporting.
type EntityCounts struct {
	Languages int `json:"languages"`
	Countries int `json:"countries"`
	Users     int `json:"users"`
	Tags      int `json:"tags"`
	Stories   int `json:"stories"`
	MapPoints int `json:"map_points"`
	Elements  int `json:"elements"`
	Events    int `json:"events"`
	ShortURLs int `json:"short_urls"`
}
