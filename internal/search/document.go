// Package search provides full-text search over stories using Bleve.
package search

import (
	"strconv"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// StoryDocument is the indexed form of a story. Tag texts, languages and the
// country name are denormalized so a single query covers them.
type StoryDocument struct {
	ID               string
	Title            string
	Description      string
	AsylumSeekerName string
	Country          string
	CountryCode      string
	State            string
	Tags             []string
	Languages        []string
	CreatedAt        int64 // Unix millis
	UpdatedAt        int64
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *StoryDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"state":      d.State,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.AsylumSeekerName != "" {
		m["asylum_seeker_name"] = d.AsylumSeekerName
	}
	if d.Country != "" {
		m["country"] = d.Country
	}
	if d.CountryCode != "" {
		m["country_code"] = d.CountryCode
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if len(d.Languages) > 0 {
		m["languages"] = d.Languages
	}
	return m
}

// DocID is the index key of a story.
func DocID(storyID int64) string {
	return strconv.FormatInt(storyID, 10)
}

// StoryToDocument converts a story aggregate. Deleted tags are skipped.
func StoryToDocument(s *domain.Story) *StoryDocument {
	doc := &StoryDocument{
		ID:               DocID(s.ID),
		Title:            s.Title,
		Description:      s.DescriptionText,
		AsylumSeekerName: s.AsylumSeekerName,
		Country:          s.CountryName,
		CountryCode:      s.CountryCode,
		State:            string(s.State),
		Languages:        s.LanguageCodes(),
		CreatedAt:        s.CreatedAt.UnixMilli(),
		UpdatedAt:        s.UpdatedAt.UnixMilli(),
	}
	if doc.Description == "" {
		doc.Description = s.Description
	}
	for _, t := range s.LiveTags() {
		doc.Tags = append(doc.Tags, t.Text)
	}
	return doc
}
