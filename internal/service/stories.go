package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/store"
)

// StoryRequest carries the scalar fields of a story. Create and update both
// replace every field; map points, languages and tags are never touched.
type StoryRequest struct {
	Title            string     `json:"title" validate:"notblank,max=500"`
	Description      string     `json:"description" validate:"max=100000"`
	AsylumSeekerName string     `json:"asylum_seeker_name" validate:"max=200"`
	CountryCode      string     `json:"country_code,omitempty" validate:"omitempty,max=8"`
	ContentRating    string     `json:"content_rating,omitempty" validate:"omitempty,max=32"`
	State            string     `json:"state,omitempty" validate:"omitempty,oneof=DRAFT PREPUBLISHED PUBLISHED ARCHIVED draft prepublished published archived"`
	AvailableFrom    *time.Time `json:"available_from,omitempty"`
	AvailableUntil   *time.Time `json:"available_until,omitempty"`
}

// StoryListFilter narrows curator listings.
type StoryListFilter struct {
	State          domain.StoryState
	IncludeDeleted bool
	WithAggregates bool
}

// CreateStory creates a story owned by the actor. The state defaults to DRAFT.
func (s *ContentService) CreateStory(ctx context.Context, actor *Actor, req StoryRequest) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	story := &domain.Story{CreatorID: actor.UserID, State: domain.StoryDraft}
	story.InitTimestamps()

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.applyStoryRequest(ctx, story, req); err != nil {
			return err
		}
		if err := s.store.CreateStory(ctx, story); err != nil {
			return storeErr(err, "create story")
		}
		return s.events.Record(ctx, actor, domain.OpCreated, domain.ItemStory, story.ID, story.Title, "")
	})
	if err != nil {
		return nil, err
	}

	story, err = s.store.GetStory(ctx, story.ID)
	if err != nil {
		return nil, storeErr(err, "reload story")
	}
	s.reindex(story)

	s.logger.Info("story created", "story_id", story.ID, "creator_id", actor.UserID)
	return story, nil
}

// applyStoryRequest copies request fields onto story, resolving the country
// name and deriving the plain text used for search.
func (s *ContentService) applyStoryRequest(ctx context.Context, story *domain.Story, req StoryRequest) error {
	if req.AvailableFrom != nil && req.AvailableUntil != nil && req.AvailableUntil.Before(*req.AvailableFrom) {
		return domainerrors.Validation("available_until must not be before available_from")
	}

	story.Title = strings.TrimSpace(req.Title)
	story.Description = req.Description
	story.DescriptionText = media.PlainText(req.Description)
	story.AsylumSeekerName = strings.TrimSpace(req.AsylumSeekerName)
	story.ContentRating = strings.TrimSpace(req.ContentRating)
	story.AvailableFrom = req.AvailableFrom
	story.AvailableUntil = req.AvailableUntil

	if req.State != "" {
		state, ok := domain.ParseStoryState(req.State)
		if !ok {
			return domainerrors.Validationf("unknown story state %q", req.State)
		}
		story.State = state
	}

	story.CountryCode, story.CountryName = "", ""
	if code := domain.NormalizeCode(req.CountryCode); code != "" {
		country, err := s.store.GetCountry(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.Validationf("unknown country code %q", req.CountryCode)
		}
		if err != nil {
			return storeErr(err, "resolve country")
		}
		story.CountryCode, story.CountryName = country.Code, country.Name
	}
	return nil
}

// GetStory returns the full aggregate. Deleted stories are only visible to
// admins, and unpublished ones only to curators.
func (s *ContentService) GetStory(ctx context.Context, actor *Actor, id int64) (*domain.Story, error) {
	story, err := s.store.GetStory(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get story")
	}
	if story.IsDeleted() && !actor.IsAdmin() {
		return nil, domainerrors.NotFound("story not found")
	}
	if !story.IsPublic() && !actor.CanCurate() {
		return nil, domainerrors.NotFound("story not found")
	}
	return story, nil
}

// UpdateStory replaces the story's scalar fields.
func (s *ContentService) UpdateStory(ctx context.Context, actor *Actor, id int64, req StoryRequest) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.mutateStory(ctx, actor, id, func(ctx context.Context, story *domain.Story) error {
		return s.applyStoryRequest(ctx, story, req)
	})
}

// SetStoryState moves the story to another editorial state.
func (s *ContentService) SetStoryState(ctx context.Context, actor *Actor, id int64, state string) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	st, ok := domain.ParseStoryState(state)
	if !ok {
		return nil, domainerrors.Validationf("unknown story state %q", state)
	}
	return s.mutateStory(ctx, actor, id, func(_ context.Context, story *domain.Story) error {
		story.State = st
		return nil
	})
}

// mutateStory loads a live story, applies fn, saves it and logs MODIFIED,
// all in one transaction.
func (s *ContentService) mutateStory(ctx context.Context, actor *Actor, id int64, fn func(context.Context, *domain.Story) error) (*domain.Story, error) {
	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		story, err = s.store.GetStory(ctx, id)
		if err != nil {
			return storeErr(err, "get story")
		}
		if story.IsDeleted() {
			return domainerrors.NotFound("story not found")
		}
		if err := fn(ctx, story); err != nil {
			return err
		}
		story.Touch()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "save story")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, story.ID, story.Title, "")
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)
	return story, nil
}

// DeleteStory moves the story to the recycle bin.
func (s *ContentService) DeleteStory(ctx context.Context, actor *Actor, id int64) error {
	if err := requireCurator(actor); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		story, err := s.store.GetStory(ctx, id)
		if err != nil {
			return storeErr(err, "get story")
		}
		if story.IsDeleted() {
			return domainerrors.NotModified("story already deleted")
		}
		story.MarkDeleted()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "delete story")
		}
		return s.events.Record(ctx, actor, domain.OpDeleted, domain.ItemStory, story.ID, story.Title, "")
	})
	if err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteStory(id); err != nil {
			s.logger.Warn("failed to remove story from index", "story_id", id, "error", err)
		}
	}
	s.logger.Info("story deleted", "story_id", id, "actor_id", actor.UserID)
	return nil
}

// RestoreStory takes the story out of the recycle bin.
func (s *ContentService) RestoreStory(ctx context.Context, actor *Actor, id int64) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		story, err = s.store.GetStory(ctx, id)
		if err != nil {
			return storeErr(err, "get story")
		}
		if !story.IsDeleted() {
			return domainerrors.NotModified("story is not deleted")
		}
		story.Restore()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "restore story")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, story.ID, "restored", "")
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)
	return story, nil
}

// ListStories lists stories for curators.
func (s *ContentService) ListStories(ctx context.Context, actor *Actor, filter StoryListFilter) ([]*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	statuses := []domain.RecordStatus{domain.RecordActive}
	if filter.IncludeDeleted {
		statuses = append(statuses, domain.RecordDeleted)
	}

	var out []*domain.Story
	for _, status := range statuses {
		stories, err := s.store.ListStories(ctx, store.StoryFilter{
			State:          filter.State,
			Status:         status,
			WithAggregates: filter.WithAggregates,
		})
		if err != nil {
			return nil, storeErr(err, "list stories")
		}
		out = append(out, stories...)
	}
	slices.SortStableFunc(out, func(a, b *domain.Story) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// ListDeletedStories returns the story recycle bin.
func (s *ContentService) ListDeletedStories(ctx context.Context, actor *Actor) ([]*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	stories, err := s.store.ListStories(ctx, store.StoryFilter{Status: domain.RecordDeleted})
	return stories, storeErr(err, "list deleted stories")
}

// ListPublishedStories returns every live PUBLISHED story with its map points.
func (s *ContentService) ListPublishedStories(ctx context.Context) ([]*domain.Story, error) {
	stories, err := s.store.ListStories(ctx, store.StoryFilter{
		State:          domain.StoryPublished,
		Status:         domain.RecordActive,
		WithAggregates: true,
	})
	return stories, storeErr(err, "list published stories")
}

// ReindexAll rebuilds the search index from the database.
func (s *ContentService) ReindexAll(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	stories, err := s.store.ListStories(ctx, store.StoryFilter{Status: domain.RecordActive})
	if err != nil {
		return 0, storeErr(err, "list stories")
	}
	if bulk, ok := s.index.(interface {
		IndexStories([]*domain.Story) error
	}); ok {
		if err := bulk.IndexStories(stories); err != nil {
			return 0, fmt.Errorf("index stories: %w", err)
		}
		return len(stories), nil
	}
	for _, story := range stories {
		if err := s.index.IndexStory(story); err != nil {
			return 0, fmt.Errorf("index story %d: %w", story.ID, err)
		}
	}
	return len(stories), nil
}
