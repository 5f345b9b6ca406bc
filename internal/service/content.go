package service

import (
	"context"
	"log/slog"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
	"github.com/asylumproject/asylum-server/internal/validation"
)

// StoryIndexer receives story changes for the search index.
type StoryIndexer interface {
	IndexStory(story *domain.Story) error
	DeleteStory(id int64) error
}

// ContentService manages stories, map points and content elements.
// Element mutations go through the Synchronizer so the story's derived
// language set always matches its elements.
type ContentService struct {
	store     store.Store
	sync      *Synchronizer
	events    *EventService
	index     StoryIndexer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewContentService creates a content service. index may be nil.
func NewContentService(
	store store.Store,
	sync *Synchronizer,
	events *EventService,
	index StoryIndexer,
	validator *validation.Validator,
	logger *slog.Logger,
) *ContentService {
	return &ContentService{
		store:     store,
		sync:      sync,
		events:    events,
		index:     index,
		validator: validator,
		logger:    logger,
	}
}

// reindex pushes a committed story to the search index. Index failures
// are logged; the database stays the source of truth.
func (s *ContentService) reindex(story *domain.Story) {
	if s.index == nil || story == nil {
		return
	}
	if err := s.index.IndexStory(story); err != nil {
		s.logger.Warn("failed to index story", "story_id", story.ID, "error", err)
	}
}

// reindexByID reloads the story before indexing it.
func (s *ContentService) reindexByID(ctx context.Context, storyID int64) {
	if s.index == nil {
		return
	}
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		s.logger.Warn("failed to reload story for indexing", "story_id", storyID, "error", err)
		return
	}
	s.reindex(story)
}
