package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// Synchronizer keeps a story aggregate consistent with element mutations.
//
// Every call loads the map point and story, edits them in memory and saves
// both inside one transaction, so concurrent edits of the same story
// serialize instead of overwriting each other.
type Synchronizer struct {
	store  store.Store
	logger *slog.Logger
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store store.Store, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: store, logger: logger}
}

// AttachElement puts e into the map point (replacing an entry with the same
// id in place, or appending), adds e's language to the story when it
// resolves, and returns the saved story.
//
// The map point must already exist. An element whose language code is not
// registered is still attached; the story's languages are left unchanged.
func (s *Synchronizer) AttachElement(ctx context.Context, e *domain.ContentElement, mapPointID, storyID int64) (*domain.Story, error) {
	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		mp, err := s.store.GetMapPoint(ctx, mapPointID)
		if err != nil {
			return storeErr(err, "load map point")
		}
		if mp.StoryID != storyID {
			return storeErr(store.ErrNotFound.WithMessage("map point not found in story"), "load map point")
		}

		mp.UpsertElement(e)
		mp.Touch()
		if err := s.store.SaveMapPoint(ctx, mp); err != nil {
			return storeErr(err, "save map point")
		}

		story, err = s.store.GetStory(ctx, storyID)
		if err != nil {
			return storeErr(err, "load story")
		}

		if e.HasLanguage() {
			lang, err := s.store.GetLanguage(ctx, e.LanguageCode)
			switch {
			case err == nil:
				story.AddLanguage(*lang)
			case errors.Is(err, store.ErrNotFound):
				s.logger.Warn("element language not registered, story languages unchanged",
					"element_id", e.ID,
					"language", e.LanguageCode,
					"story_id", storyID,
				)
			default:
				return storeErr(err, "resolve language")
			}
		}

		story.UpsertMapPoint(mp)
		story.Touch()
		return storeErr(s.store.SaveStory(ctx, story), "save story")
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

// DetachElement removes e from the map point. The story drops e's language
// once no live element in any of its map points still uses it.
//
// A failure to drop the language is logged and the story keeps its set.
func (s *Synchronizer) DetachElement(ctx context.Context, e *domain.ContentElement, mapPointID, storyID int64) (*domain.Story, error) {
	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		mp, err := s.store.GetMapPoint(ctx, mapPointID)
		if err != nil {
			return storeErr(err, "load map point")
		}
		if mp.StoryID != storyID {
			return storeErr(store.ErrNotFound.WithMessage("map point not found in story"), "load map point")
		}

		mp.RemoveElement(e.ID)
		mp.Touch()
		if err := s.store.SaveMapPoint(ctx, mp); err != nil {
			return storeErr(err, "save map point")
		}

		story, err = s.store.GetStory(ctx, storyID)
		if err != nil {
			return storeErr(err, "load story")
		}

		if e.HasLanguage() && story.CountLanguage(e.LanguageCode) == 0 {
			if err := story.RemoveLanguage(e.LanguageCode); err != nil {
				s.logger.Warn("could not drop story language",
					"story_id", storyID,
					"language", e.LanguageCode,
					"error", err,
				)
			}
		}

		story.Touch()
		return storeErr(s.store.SaveStory(ctx, story), "save story")
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}
