package service

import (
	"context"
	"log/slog"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/store"
)

// TagService manages the global tag list and story tagging.
// Tags are shared across stories and identified by their normalized text.
type TagService struct {
	store   store.Store
	events  *EventService
	content *ContentService
	logger  *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store store.Store, events *EventService, content *ContentService, logger *slog.Logger) *TagService {
	return &TagService{
		store:   store,
		events:  events,
		content: content,
		logger:  logger,
	}
}

// AddTagToStory attaches the tag with the given text to a story, creating
// the tag on first use. It returns the story and whether it changed.
// A story already carrying equal text is left as is.
func (s *TagService) AddTagToStory(ctx context.Context, actor *Actor, storyID int64, rawText string) (*domain.Story, bool, error) {
	if err := requireCurator(actor); err != nil {
		return nil, false, err
	}

	// 1. Normalize input.
	text := domain.NormalizeTagText(rawText)
	if text == "" {
		return nil, false, domainerrors.Validation("tag text is required")
	}
	if len(text) > 100 {
		return nil, false, domainerrors.Validation("tag text must be at most 100 characters")
	}

	var (
		story   *domain.Story
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		// 2. Load the story; a story already carrying the text is a no-op.
		var err error
		story, err = s.store.GetStory(ctx, storyID)
		if err != nil {
			return storeErr(err, "get story")
		}
		if story.IsDeleted() {
			return domainerrors.NotFound("story not found")
		}
		if story.HasTagText(text) {
			return nil
		}

		// 3. Find or create the tag. A tag in the recycle bin comes back.
		tag, created, err := s.store.FindOrCreateTag(ctx, text)
		if err != nil {
			return storeErr(err, "find or create tag")
		}
		correlationID := NewCorrelationID()
		switch {
		case created:
			if err := s.events.Record(ctx, actor, domain.OpCreated, domain.ItemTag, tag.ID, tag.Text, correlationID); err != nil {
				return err
			}
		case tag.IsDeleted():
			tag.Restore()
			if err := s.store.UpdateTag(ctx, tag); err != nil {
				return storeErr(err, "restore tag")
			}
		}

		// 4. Attach and save.
		changed = story.AddTag(tag)
		story.Touch()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "save story")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, story.ID, "tag "+tag.Text+" added", correlationID)
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.content.reindex(story)
		s.logger.Info("tag added to story", "story_id", storyID, "tag", text)
	}
	return story, changed, nil
}

// RemoveTagFromStory detaches a tag. Removing a tag the story does not
// carry changes nothing and is not an error.
func (s *TagService) RemoveTagFromStory(ctx context.Context, actor *Actor, storyID, tagID int64) (*domain.Story, bool, error) {
	if err := requireCurator(actor); err != nil {
		return nil, false, err
	}

	var (
		story   *domain.Story
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		story, err = s.store.GetStory(ctx, storyID)
		if err != nil {
			return storeErr(err, "get story")
		}
		if story.IsDeleted() {
			return domainerrors.NotFound("story not found")
		}
		if changed = story.RemoveTag(tagID); !changed {
			return nil
		}
		story.Touch()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "save story")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, story.ID, "tag removed", NewCorrelationID())
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.content.reindex(story)
	}
	return story, changed, nil
}

// ListTags returns the live tags with their story counts.
func (s *TagService) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	tags, err := s.store.ListTags(ctx, domain.RecordActive)
	return tags, storeErr(err, "list tags")
}

// ListDeletedTags returns the tag recycle bin.
func (s *TagService) ListDeletedTags(ctx context.Context, actor *Actor) ([]*domain.Tag, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	tags, err := s.store.ListTags(ctx, domain.RecordDeleted)
	return tags, storeErr(err, "list deleted tags")
}

// DeleteTag moves a tag to the recycle bin. Stories keep the association;
// listings hide the tag until it is restored.
func (s *TagService) DeleteTag(ctx context.Context, actor *Actor, id int64) error {
	return s.setTagDeleted(ctx, actor, id, true)
}

// RestoreTag brings a tag back from the recycle bin.
func (s *TagService) RestoreTag(ctx context.Context, actor *Actor, id int64) error {
	return s.setTagDeleted(ctx, actor, id, false)
}

func (s *TagService) setTagDeleted(ctx context.Context, actor *Actor, id int64, deleted bool) error {
	if err := requireCurator(actor); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		tag, err := s.store.GetTag(ctx, id)
		if err != nil {
			return storeErr(err, "get tag")
		}
		if tag.IsDeleted() == deleted {
			return domainerrors.NotModified("tag unchanged")
		}

		op := domain.OpModified
		if deleted {
			tag.MarkDeleted()
			op = domain.OpDeleted
		} else {
			tag.Restore()
		}
		if err := s.store.UpdateTag(ctx, tag); err != nil {
			return storeErr(err, "update tag")
		}
		return s.events.Record(ctx, actor, op, domain.ItemTag, tag.ID, tag.Text, "")
	})
}
