package domain

import (
	"fmt"
	"strings"
)

// ElementKind discriminates the ContentElement union.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementImage ElementKind = "image"
	ElementAudio ElementKind = "audio"
	ElementVideo ElementKind = "video"
)

// ParseElementKind parses a kind name, case-insensitively.
func ParseElementKind(s string) (ElementKind, error) {
	switch k := ElementKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ElementText, ElementImage, ElementAudio, ElementVideo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown element kind %q", s)
	}
}

// KindFromContentType maps an uploaded file's MIME type to an element kind.
// Only image, audio and video uploads are accepted.
func KindFromContentType(contentType string) (ElementKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return ElementImage, true
	case strings.HasPrefix(ct, "video/"):
		return ElementVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return ElementAudio, true
	default:
		return "", false
	}
}

// ElementState is the editorial state of an element.
type ElementState string

const (
	ElementDraft    ElementState = "DRAFT"
	ElementArchived ElementState = "ARCHIVED"
)

// TextAttrs holds attributes specific to text elements.
type TextAttrs struct {
	Body   string `json:"body"`
	Length int    `json:"length"`
}

// ImageAttrs holds attributes specific to image elements.
type ImageAttrs struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Caption  string `json:"caption,omitempty"`
	BlurHash string `json:"blur_hash,omitempty"`
}

// MediaAttrs holds attributes shared by audio and video elements.
type MediaAttrs struct {
	LengthSeconds float64 `json:"length_seconds"`
}

// ContentElement is a single piece of text or media attached to a MapPoint.
//
// Exactly one of Text, Image or Media is set, selected by Kind.
// MapPointID is zero while the element is not attached.
type ContentElement struct {
	Lifecycle
	MapPointID   int64        `json:"map_point_id,omitempty"`
	Kind         ElementKind  `json:"kind"`
	LanguageCode string       `json:"language_code,omitempty"`
	Description  string       `json:"description"`
	FilePath     string       `json:"file_path,omitempty"`
	FileName     string       `json:"file_name,omitempty"`
	FileSize     int64        `json:"file_size"`
	ContentType  string       `json:"content_type,omitempty"`
	State        ElementState `json:"state"`

	Text  *TextAttrs  `json:"text,omitempty"`
	Image *ImageAttrs `json:"image,omitempty"`
	Media *MediaAttrs `json:"media,omitempty"`
}

// HasLanguage reports whether the element participates in language derivation.
func (e *ContentElement) HasLanguage() bool {
	return e.LanguageCode != ""
}

// Normalize fills defaults and clears payloads that do not match Kind.
func (e *ContentElement) Normalize() {
	e.LanguageCode = NormalizeCode(e.LanguageCode)
	if e.State == "" {
		e.State = ElementDraft
	}
	switch e.Kind {
	case ElementText:
		if e.Text == nil {
			e.Text = &TextAttrs{}
		}
		e.Image, e.Media = nil, nil
	case ElementImage:
		if e.Image == nil {
			e.Image = &ImageAttrs{}
		}
		e.Text, e.Media = nil, nil
	case ElementAudio, ElementVideo:
		if e.Media == nil {
			e.Media = &MediaAttrs{}
		}
		e.Text, e.Image = nil, nil
	}
}

// Validate checks that the kind and payload agree.
func (e *ContentElement) Validate() error {
	if _, err := ParseElementKind(string(e.Kind)); err != nil {
		return err
	}
	if e.State != ElementDraft && e.State != ElementArchived {
		return fmt.Errorf("unknown element state %q", e.State)
	}
	set := 0
	for _, ok := range []bool{e.Text != nil, e.Image != nil, e.Media != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("element must carry exactly one %s payload", e.Kind)
	}
	switch e.Kind {
	case ElementText:
		if e.Text == nil {
			return fmt.Errorf("text element missing text payload")
		}
	case ElementImage:
		if e.Image == nil {
			return fmt.Errorf("image element missing image payload")
		}
	case ElementAudio, ElementVideo:
		if e.Media == nil {
			return fmt.Errorf("%s element missing media payload", e.Kind)
		}
	}
	return nil
}

// SetArchived applies an archive action: "archive" archives, anything else
// returns the element to draft.
func (e *ContentElement) SetArchived(action string) {
	if strings.EqualFold(strings.TrimSpace(action), "archive") {
		e.State = ElementArchived
	} else {
		e.State = ElementDraft
	}
	e.Touch()
}

// Clone returns a deep copy of the element.
func (e *ContentElement) Clone() *ContentElement {
	c := *e
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	if e.Image != nil {
		i := *e.Image
		c.Image = &i
	}
	if e.Media != nil {
		m := *e.Media
		c.Media = &m
	}
	return &c
}
