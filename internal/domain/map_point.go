package domain

// MapPoint is a geo-located container of content elements within a Story.
// Elements keep the order in which they were first attached.
type MapPoint struct {
	Lifecycle
	StoryID   int64             `json:"story_id"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Zoom      int               `json:"zoom"`
	Elements  []*ContentElement `json:"elements"`
}

// UpsertElement replaces the element with the same id in place, or appends
// it when absent. It reports whether an existing entry was replaced.
func (m *MapPoint) UpsertElement(e *ContentElement) bool {
	e.MapPointID = m.ID
	for i, existing := range m.Elements {
		if existing.ID == e.ID {
			m.Elements[i] = e
			return true
		}
	}
	m.Elements = append(m.Elements, e)
	return false
}

// RemoveElement drops the element with the given id, preserving the order of
// the rest. It returns the removed element, or nil when absent.
func (m *MapPoint) RemoveElement(id int64) *ContentElement {
	for i, existing := range m.Elements {
		if existing.ID == id {
			m.Elements = append(m.Elements[:i], m.Elements[i+1:]...)
			return existing
		}
	}
	return nil
}

// Element returns the element with the given id, or nil.
func (m *MapPoint) Element(id int64) *ContentElement {
	for _, e := range m.Elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// CountLanguage counts live elements carrying the language code.
func (m *MapPoint) CountLanguage(code string) int {
	n := 0
	for _, e := range m.Elements {
		if !e.IsDeleted() && e.LanguageCode == code {
			n++
		}
	}
	return n
}

// HasFileName reports whether a live element already stores a file with this name.
func (m *MapPoint) HasFileName(name string) bool {
	for _, e := range m.Elements {
		if !e.IsDeleted() && e.FileName == name {
			return true
		}
	}
	return false
}
