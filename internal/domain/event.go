package domain

import "time"

// Operation is the kind of action recorded in the event log.
type Operation string

const (
	OpCreated              Operation = "CREATED"
	OpModified             Operation = "MODIFIED"
	OpDeleted              Operation = "DELETED"
	OpSignIn               Operation = "SIGN_IN"
	OpSignOut              Operation = "SIGN_OUT"
	OpPasswordChange       Operation = "PASSWORD_CHANGE"
	OpRequestPasswordReset Operation = "REQUEST_PASSWORD_RESET"
)

// ItemType names the kind of entity an event refers to.
type ItemType string

const (
	ItemStory    ItemType = "story"
	ItemMapPoint ItemType = "map_point"
	ItemElement  ItemType = "element"
	ItemTag      ItemType = "tag"
	ItemUser     ItemType = "user"
	ItemBackup   ItemType = "backup"
)

// Event is an append-only audit record.
// Events produced by one logical action share a CorrelationID.
type Event struct {
	ID            int64     `json:"id"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Operation     Operation `json:"operation"`
	ItemType      ItemType  `json:"item_type"`
	ItemID        int64     `json:"item_id"`
	Description   string    `json:"description,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// UserEvent is an event row annotated for per-user reports.
// First marks the earliest event of that user in the result.
type UserEvent struct {
	Event
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	First     bool   `json:"first"`
}

// StoryTimelineEntry is one row of the story events report.
type StoryTimelineEntry struct {
	StoryID          int64      `json:"story_id"`
	OccurredAt       time.Time  `json:"occurred_at"`
	Operation        Operation  `json:"operation"`
	ActorFirstName   string     `json:"actor_first_name"`
	ActorLastName    string     `json:"actor_last_name"`
	Description      string     `json:"description"`
	Title            string     `json:"title"`
	AsylumSeekerName string     `json:"asylum_seeker_name"`
	State            StoryState `json:"state"`
}
