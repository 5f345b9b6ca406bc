package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerStoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPublishedStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/stories/published",
		Summary:     "List published stories",
		Description: "Every PUBLISHED story with its map points, elements, languages and tags",
		Tags:        []string{"Stories"},
	}, s.handleListPublishedStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/stories",
		Summary:     "List stories",
		Description: "Curator listing, optionally filtered by state",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeletedStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/stories/deleted",
		Summary:     "List deleted stories",
		Description: "The story recycle bin",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeletedStories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createStory",
		Method:        http.MethodPost,
		Path:          "/api/v1/stories",
		Summary:       "Create story",
		Tags:          []string{"Stories"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStory",
		Method:      http.MethodGet,
		Path:        "/api/v1/stories/{id}",
		Summary:     "Get story",
		Description: "The full story aggregate. Anonymous callers only see published stories.",
		Tags:        []string{"Stories"},
	}, s.handleGetStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateStory",
		Method:      http.MethodPut,
		Path:        "/api/v1/stories/{id}",
		Summary:     "Update story",
		Description: "Replaces every scalar field. Map points, languages and tags are untouched.",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "setStoryState",
		Method:      http.MethodPut,
		Path:        "/api/v1/stories/{id}/state",
		Summary:     "Set story state",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetStoryState)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteStory",
		Method:      http.MethodDelete,
		Path:        "/api/v1/stories/{id}",
		Summary:     "Delete story",
		Description: "Soft delete; the story moves to the recycle bin",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreStory",
		Method:      http.MethodPost,
		Path:        "/api/v1/stories/{id}/restore",
		Summary:     "Restore story",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreStory)
}

// === DTOs ===

// StoryRequest carries a story's scalar fields.
type StoryRequest struct {
	Title            string     `json:"title" minLength:"1" maxLength:"500"`
	Description      string     `json:"description,omitempty" maxLength:"100000" doc:"HTML or plain text"`
	AsylumSeekerName string     `json:"asylum_seeker_name,omitempty" maxLength:"200"`
	CountryCode      string     `json:"country_code,omitempty" maxLength:"8"`
	ContentRating    string     `json:"content_rating,omitempty" maxLength:"32"`
	State            string     `json:"state,omitempty" doc:"DRAFT, PREPUBLISHED, PUBLISHED or ARCHIVED"`
	AvailableFrom    *time.Time `json:"available_from,omitempty"`
	AvailableUntil   *time.Time `json:"available_until,omitempty"`
}

func (r StoryRequest) toService() service.StoryRequest {
	return service.StoryRequest{
		Title:            r.Title,
		Description:      r.Description,
		AsylumSeekerName: r.AsylumSeekerName,
		CountryCode:      r.CountryCode,
		ContentRating:    r.ContentRating,
		State:            r.State,
		AvailableFrom:    r.AvailableFrom,
		AvailableUntil:   r.AvailableUntil,
	}
}

// StoryInput creates a story.
type StoryInput struct {
	Body StoryRequest
}

// UpdateStoryInput replaces a story's fields.
type UpdateStoryInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body StoryRequest
}

// StoryIDInput addresses a story.
type StoryIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

// SetStoryStateInput moves a story through its workflow.
type SetStoryStateInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body struct {
		State string `json:"state" minLength:"1" doc:"DRAFT, PREPUBLISHED, PUBLISHED or ARCHIVED"`
	}
}

// ListStoriesInput filters curator listings.
type ListStoriesInput struct {
	State          string `query:"state" doc:"Only stories in this state"`
	IncludeDeleted bool   `query:"include_deleted"`
	Full           bool   `query:"full" doc:"Load map points, elements, languages and tags"`
}

// StoryOutput is one story.
type StoryOutput struct {
	Body *domain.Story
}

// StoriesOutput lists stories.
type StoriesOutput struct {
	Body []*domain.Story
}

// === Handlers ===

func (s *Server) handleListPublishedStories(ctx context.Context, _ *struct{}) (*StoriesOutput, error) {
	stories, err := s.services.Content.ListPublishedStories(ctx)
	if err != nil {
		return nil, err
	}
	return &StoriesOutput{Body: stories}, nil
}

func (s *Server) handleListStories(ctx context.Context, input *ListStoriesInput) (*StoriesOutput, error) {
	filter := service.StoryListFilter{IncludeDeleted: input.IncludeDeleted, WithAggregates: input.Full}
	if input.State != "" {
		st, ok := domain.ParseStoryState(input.State)
		if !ok {
			return nil, domainerrors.Validationf("unknown story state %q", input.State)
		}
		filter.State = st
	}

	stories, err := s.services.Content.ListStories(ctx, ActorFrom(ctx), filter)
	if err != nil {
		return nil, err
	}
	return &StoriesOutput{Body: stories}, nil
}

func (s *Server) handleListDeletedStories(ctx context.Context, _ *struct{}) (*StoriesOutput, error) {
	stories, err := s.services.Content.ListDeletedStories(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &StoriesOutput{Body: stories}, nil
}

func (s *Server) handleCreateStory(ctx context.Context, input *StoryInput) (*StoryOutput, error) {
	story, err := s.services.Content.CreateStory(ctx, ActorFrom(ctx), input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}

func (s *Server) handleGetStory(ctx context.Context, input *StoryIDInput) (*StoryOutput, error) {
	story, err := s.services.Content.GetStory(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}

func (s *Server) handleUpdateStory(ctx context.Context, input *UpdateStoryInput) (*StoryOutput, error) {
	story, err := s.services.Content.UpdateStory(ctx, ActorFrom(ctx), input.ID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}

func (s *Server) handleSetStoryState(ctx context.Context, input *SetStoryStateInput) (*StoryOutput, error) {
	story, err := s.services.Content.SetStoryState(ctx, ActorFrom(ctx), input.ID, input.Body.State)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}

func (s *Server) handleDeleteStory(ctx context.Context, input *StoryIDInput) (*struct{}, error) {
	return nil, s.services.Content.DeleteStory(ctx, ActorFrom(ctx), input.ID)
}

func (s *Server) handleRestoreStory(ctx context.Context, input *StoryIDInput) (*StoryOutput, error) {
	story, err := s.services.Content.RestoreStory(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}
