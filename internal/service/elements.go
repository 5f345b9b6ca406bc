package service

import (
	"context"
	"errors"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/store"
)

// ElementRequest carries an element's mutable fields. Only the payload
// fields matching Kind are used.
type ElementRequest struct {
	Kind         string `json:"kind" validate:"required,oneof=text image audio video"`
	LanguageCode string `json:"language_code,omitempty" validate:"omitempty,max=16"`
	Description  string `json:"description" validate:"max=10000"`
	State        string `json:"state,omitempty" validate:"omitempty,oneof=DRAFT ARCHIVED"`

	FilePath    string `json:"file_path,omitempty" validate:"max=2048"`
	FileName    string `json:"file_name,omitempty" validate:"max=512"`
	FileSize    int64  `json:"file_size,omitempty" validate:"gte=0"`
	ContentType string `json:"content_type,omitempty" validate:"max=255"`

	Body          string  `json:"body,omitempty"`
	Width         int     `json:"width,omitempty" validate:"gte=0"`
	Height        int     `json:"height,omitempty" validate:"gte=0"`
	Caption       string  `json:"caption,omitempty" validate:"max=2000"`
	BlurHash      string  `json:"blur_hash,omitempty" validate:"max=128"`
	LengthSeconds float64 `json:"length_seconds,omitempty" validate:"gte=0"`
}

// toElement builds an element from the request. Text length is computed
// from the body, never taken from the client.
func (r ElementRequest) toElement() (*domain.ContentElement, error) {
	kind, err := domain.ParseElementKind(r.Kind)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	e := &domain.ContentElement{
		Kind:         kind,
		LanguageCode: r.LanguageCode,
		Description:  strings.TrimSpace(r.Description),
		FilePath:     r.FilePath,
		FileName:     r.FileName,
		FileSize:     r.FileSize,
		ContentType:  r.ContentType,
		State:        domain.ElementState(r.State),
	}
	switch kind {
	case domain.ElementText:
		e.Text = &domain.TextAttrs{Body: r.Body, Length: media.TextLength(r.Body)}
	case domain.ElementImage:
		e.Image = &domain.ImageAttrs{Width: r.Width, Height: r.Height, Caption: r.Caption, BlurHash: r.BlurHash}
	case domain.ElementAudio, domain.ElementVideo:
		e.Media = &domain.MediaAttrs{LengthSeconds: r.LengthSeconds}
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	return e, nil
}

// CreateElement persists a new element and attaches it to the map point in
// the same transaction.
func (s *ContentService) CreateElement(ctx context.Context, actor *Actor, storyID, mapPointID int64, req ElementRequest) (*domain.ContentElement, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	e, err := req.toElement()
	if err != nil {
		return nil, err
	}
	return s.createAndAttach(ctx, actor, storyID, mapPointID, e)
}

// createAndAttach is shared by CreateElement and file uploads.
func (s *ContentService) createAndAttach(ctx context.Context, actor *Actor, storyID, mapPointID int64, e *domain.ContentElement) (*domain.ContentElement, error) {
	e.InitTimestamps()

	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateElement(ctx, e); err != nil {
			return storeErr(err, "create element")
		}
		var err error
		story, err = s.sync.AttachElement(ctx, e, mapPointID, storyID)
		if err != nil {
			return err
		}

		correlationID := NewCorrelationID()
		if err := s.events.Record(ctx, actor, domain.OpCreated, domain.ItemElement, e.ID, string(e.Kind), correlationID); err != nil {
			return err
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, storyID, "element added", correlationID)
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)

	s.logger.Info("element created",
		"element_id", e.ID,
		"kind", e.Kind,
		"map_point_id", mapPointID,
		"story_id", storyID,
	)
	return e, nil
}

// EditElement replaces an element's mutable fields and re-attaches it in
// place. The kind cannot change. When the language changes and no other
// element still uses the old one, the story drops it.
func (s *ContentService) EditElement(ctx context.Context, actor *Actor, storyID, mapPointID, elementID int64, req ElementRequest) (*domain.ContentElement, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	updated, err := req.toElement()
	if err != nil {
		return nil, err
	}

	var story *domain.Story
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.elementInMapPoint(ctx, elementID, mapPointID)
		if err != nil {
			return err
		}
		if current.Kind != updated.Kind {
			return domainerrors.Validationf("element kind cannot change from %s to %s", current.Kind, updated.Kind)
		}

		updated.Lifecycle = current.Lifecycle
		updated.MapPointID = current.MapPointID
		if req.State == "" {
			updated.State = current.State
		}
		updated.Touch()
		if err := s.store.UpdateElement(ctx, updated); err != nil {
			return storeErr(err, "update element")
		}

		story, err = s.sync.AttachElement(ctx, updated, mapPointID, storyID)
		if err != nil {
			return err
		}

		if old := current.LanguageCode; old != "" && old != updated.LanguageCode && story.CountLanguage(old) == 0 {
			if err := story.RemoveLanguage(old); err == nil {
				if err := s.store.SaveStory(ctx, story); err != nil {
					return storeErr(err, "save story")
				}
			}
		}

		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemElement, updated.ID, "", "")
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)
	return updated, nil
}

// DeleteElement detaches the element and hard-deletes it in one transaction.
func (s *ContentService) DeleteElement(ctx context.Context, actor *Actor, storyID, mapPointID, elementID int64) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}

	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.elementInMapPoint(ctx, elementID, mapPointID)
		if err != nil {
			return err
		}
		story, err = s.sync.DetachElement(ctx, e, mapPointID, storyID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteElement(ctx, elementID); err != nil {
			return storeErr(err, "delete element")
		}

		correlationID := NewCorrelationID()
		if err := s.events.Record(ctx, actor, domain.OpDeleted, domain.ItemElement, elementID, string(e.Kind), correlationID); err != nil {
			return err
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, storyID, "element removed", correlationID)
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)
	return story, nil
}

// SetElementArchived archives the element for action "archive" and returns
// it to draft for anything else.
func (s *ContentService) SetElementArchived(ctx context.Context, actor *Actor, elementID int64, action string) (*domain.ContentElement, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}

	var e *domain.ContentElement
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.getElement(ctx, elementID)
		if err != nil {
			return err
		}
		e.SetArchived(action)
		if err := s.store.UpdateElement(ctx, e); err != nil {
			return storeErr(err, "update element")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemElement, e.ID, string(e.State), "")
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetElement returns a single element.
func (s *ContentService) GetElement(ctx context.Context, elementID int64) (*domain.ContentElement, error) {
	return s.getElement(ctx, elementID)
}

// ListElements returns the live elements of a map point in display order.
func (s *ContentService) ListElements(ctx context.Context, actor *Actor, mapPointID int64, filter store.ElementFilter) ([]*domain.ContentElement, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMapPoint(ctx, mapPointID); err != nil {
		return nil, storeErr(err, "get map point")
	}
	elements, err := s.store.ListElements(ctx, mapPointID, filter)
	return elements, storeErr(err, "list elements")
}

// CheckFileNameExists reports whether the map point already holds a file
// with this name.
func (s *ContentService) CheckFileNameExists(ctx context.Context, fileName string, mapPointID int64) (bool, error) {
	exists, err := s.store.ElementFileExists(ctx, mapPointID, fileName)
	return exists, storeErr(err, "check file name")
}

func (s *ContentService) getElement(ctx context.Context, id int64) (*domain.ContentElement, error) {
	e, err := s.store.GetElement(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFound("element not found")
	}
	if err != nil {
		return nil, storeErr(err, "get element")
	}
	if e.IsDeleted() {
		return nil, domainerrors.NotFound("element not found")
	}
	return e, nil
}

// elementInMapPoint loads an element and checks it is attached to mapPointID.
func (s *ContentService) elementInMapPoint(ctx context.Context, elementID, mapPointID int64) (*domain.ContentElement, error) {
	e, err := s.getElement(ctx, elementID)
	if err != nil {
		return nil, err
	}
	if e.MapPointID != mapPointID {
		return nil, domainerrors.NotFound("element not found in map point")
	}
	return e, nil
}
