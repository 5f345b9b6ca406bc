package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// StoryState is the editorial state of a story.
type StoryState string

const (
	StoryDraft        StoryState = "DRAFT"
	StoryPrepublished StoryState = "PREPUBLISHED"
	StoryPublished    StoryState = "PUBLISHED"
	StoryArchived     StoryState = "ARCHIVED"
)

// StoryStates lists every state, in editorial order.
var StoryStates = []StoryState{StoryDraft, StoryPrepublished, StoryPublished, StoryArchived}

// ParseStoryState parses a state name, case-insensitively.
func ParseStoryState(s string) (StoryState, bool) {
	st := StoryState(strings.ToUpper(strings.TrimSpace(s)))
	return st, slices.Contains(StoryStates, st)
}

// ErrLanguageNotPresent is returned when removing a language the story does not carry.
var ErrLanguageNotPresent = errors.New("language not present on story")

// Story is the aggregate root: an ordered list of map points plus the derived
// language set and the tag set.
//
// Languages is derived from the elements reachable through MapPoints and is
// kept in sync by the aggregate synchronizer, not edited directly.
type Story struct {
	Lifecycle
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	DescriptionText  string      `json:"description_text,omitempty"`
	AsylumSeekerName string      `json:"asylum_seeker_name"`
	CountryCode      string      `json:"country_code,omitempty"`
	CountryName      string      `json:"country_name,omitempty"`
	ContentRating    string      `json:"content_rating,omitempty"`
	State            StoryState  `json:"state"`
	CreatorID        int64       `json:"creator_id"`
	CreatorUsername  string      `json:"creator_username,omitempty"`
	AvailableFrom    *time.Time  `json:"available_from,omitempty"`
	AvailableUntil   *time.Time  `json:"available_until,omitempty"`
	MapPoints        []*MapPoint `json:"map_points"`
	Languages        []Language  `json:"languages"`
	Tags             []*Tag      `json:"tags"`
}

// IsPublic reports whether anonymous visitors may see the story.
func (s *Story) IsPublic() bool {
	return s.State == StoryPublished && !s.IsDeleted()
}

// MapPoint returns the map point with the given id, or nil.
func (s *Story) MapPoint(id int64) *MapPoint {
	for _, mp := range s.MapPoints {
		if mp.ID == id {
			return mp
		}
	}
	return nil
}

// UpsertMapPoint replaces the slot holding the same map point id, or appends.
func (s *Story) UpsertMapPoint(mp *MapPoint) {
	mp.StoryID = s.ID
	for i, existing := range s.MapPoints {
		if existing.ID == mp.ID {
			s.MapPoints[i] = mp
			return
		}
	}
	s.MapPoints = append(s.MapPoints, mp)
}

// RemoveMapPoint drops a map point slot; it reports whether one was removed.
func (s *Story) RemoveMapPoint(id int64) bool {
	for i, existing := range s.MapPoints {
		if existing.ID == id {
			s.MapPoints = append(s.MapPoints[:i], s.MapPoints[i+1:]...)
			return true
		}
	}
	return false
}

// HasLanguage reports whether the language code is in the derived set.
func (s *Story) HasLanguage(code string) bool {
	return slices.ContainsFunc(s.Languages, func(l Language) bool { return l.Code == code })
}

// AddLanguage adds a language with set semantics. It reports whether the set changed.
func (s *Story) AddLanguage(l Language) bool {
	if s.HasLanguage(l.Code) {
		return false
	}
	s.Languages = append(s.Languages, l)
	slices.SortFunc(s.Languages, func(a, b Language) int { return strings.Compare(a.Code, b.Code) })
	return true
}

// RemoveLanguage removes a language from the set.
func (s *Story) RemoveLanguage(code string) error {
	i := slices.IndexFunc(s.Languages, func(l Language) bool { return l.Code == code })
	if i < 0 {
		return ErrLanguageNotPresent
	}
	s.Languages = slices.Delete(s.Languages, i, i+1)
	return nil
}

// LanguageCodes returns the codes of the derived language set.
func (s *Story) LanguageCodes() []string {
	codes := make([]string, len(s.Languages))
	for i, l := range s.Languages {
		codes[i] = l.Code
	}
	return codes
}

// CountLanguage counts live elements with the code across every map point.
func (s *Story) CountLanguage(code string) int {
	n := 0
	for _, mp := range s.MapPoints {
		n += mp.CountLanguage(code)
	}
	return n
}

// RetainLanguages drops languages no longer used by any live element.
// Used after a whole map point is removed.
func (s *Story) RetainLanguages() {
	s.Languages = slices.DeleteFunc(s.Languages, func(l Language) bool {
		return s.CountLanguage(l.Code) == 0
	})
}

// HasTagText reports whether a tag with equal text is attached.
// Membership is by text, not identity.
func (s *Story) HasTagText(text string) bool {
	return slices.ContainsFunc(s.Tags, func(t *Tag) bool { return t.Text == text })
}

// AddTag adds a tag unless one with the same text is present.
func (s *Story) AddTag(t *Tag) bool {
	if s.HasTagText(t.Text) {
		return false
	}
	s.Tags = append(s.Tags, t)
	return true
}

// RemoveTag removes a tag by id and reports whether it was present.
func (s *Story) RemoveTag(tagID int64) bool {
	n := len(s.Tags)
	s.Tags = slices.DeleteFunc(s.Tags, func(t *Tag) bool { return t.ID == tagID })
	return len(s.Tags) != n
}

// HasAnyTag reports whether any of the ids is attached to the story.
func (s *Story) HasAnyTag(ids []int64) bool {
	for _, t := range s.Tags {
		if slices.Contains(ids, t.ID) {
			return true
		}
	}
	return false
}

// ElementCount returns the number of live elements in the story.
func (s *Story) ElementCount() int {
	n := 0
	for _, mp := range s.MapPoints {
		for _, e := range mp.Elements {
			if !e.IsDeleted() {
				n++
			}
		}
	}
	return n
}

// LiveTags returns the attached tags that are not in the recycle bin.
// Deleted tags stay associated so a restore brings them back.
func (s *Story) LiveTags() []*Tag {
	out := make([]*Tag, 0, len(s.Tags))
	for _, t := range s.Tags {
		if !t.IsDeleted() {
			out = append(out, t)
		}
	}
	return out
}
