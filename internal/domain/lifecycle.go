package domain

import "time"

// RecordStatus is the soft-delete lifecycle of a persisted record.
// Deleted records stay in the database so they can be listed in the
// recycle bin and restored.
type RecordStatus string

const (
	// RecordActive is the default status; active records appear in listings.
	RecordActive RecordStatus = "active"
	// RecordDeleted marks a soft-deleted record.
	RecordDeleted RecordStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	return s == RecordActive || s == RecordDeleted
}

// Lifecycle provides identity, timestamps and soft-delete status.
// It is embedded in every aggregate the store persists.
type Lifecycle struct {
	ID        int64        `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Status    RecordStatus `json:"status"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (l *Lifecycle) Touch() {
	l.UpdatedAt = time.Now()
}

// InitTimestamps sets both timestamps to now and marks the record active.
// Call this when creating a new entity.
func (l *Lifecycle) InitTimestamps() {
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Status = RecordActive
	l.DeletedAt = nil
}

// IsDeleted returns true if this entity has been soft-deleted.
func (l *Lifecycle) IsDeleted() bool {
	return l.Status == RecordDeleted
}

// MarkDeleted moves the entity to the recycle bin.
func (l *Lifecycle) MarkDeleted() {
	now := time.Now()
	l.Status = RecordDeleted
	l.DeletedAt = &now
	l.UpdatedAt = now
}

// Restore brings a soft-deleted entity back.
func (l *Lifecycle) Restore() {
	l.Status = RecordActive
	l.DeletedAt = nil
	l.UpdatedAt = time.Now()
}
