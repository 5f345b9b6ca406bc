package domain

import "time"

// ShortURL maps a random token to a set of tag ids for shareable filtered views.
type ShortURL struct {
	Token     string    `json:"token"`
	TagIDs    []int64   `json:"tag_ids"`
	CreatedAt time.Time `json:"created_at"`
}
