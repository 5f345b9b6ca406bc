package backup

import "time"

// CreateOptions configures backup creation.
type CreateOptions struct {
	CreatedBy string
}

// RestoreMode determines how to handle existing data.
type RestoreMode string

const (
	// RestoreModeFull wipes stories, tags, events and share links, then
	// restores from the backup. Accounts are replaced row by row.
	RestoreModeFull RestoreMode = "full"

	// RestoreModeMerge inserts rows missing locally and keeps local rows.
	RestoreModeMerge RestoreMode = "merge"
)

// Valid returns true if the restore mode is recognized.
func (m RestoreMode) Valid() bool {
	return m == RestoreModeFull || m == RestoreModeMerge
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	Mode   RestoreMode
	DryRun bool // read and count without writing
}

// Info describes an archive in the backup directory.
type Info struct {
	ID        string    `json:"id"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Result contains the outcome of a backup operation.
type Result struct {
	Info
	Counts   EntityCounts  `json:"counts"`
	Duration time.Duration `json:"duration,format:nano"`
}

// RestoreResult contains the outcome of a restore operation.
type RestoreResult struct {
	Mode     RestoreMode    `json:"mode"`
	DryRun   bool           `json:"dry_run"`
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
	Errors   []RestoreError `json:"errors,omitempty"`
	Duration time.Duration  `json:"duration,format:nano"`
}

// RestoreError describes a record that could not be restored.
type RestoreError struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Error      string `json:"error"`
}

// ValidationResult describes backup validity.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}
