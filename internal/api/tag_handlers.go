package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Every live tag ordered by text",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "listDeletedTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/deleted",
		Summary:     "List deleted tags",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDeletedTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Description: "Soft delete. Stories keep the association but listings hide the tag.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags/{id}/restore",
		Summary:     "Restore tag",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRestoreTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "addTagToStory",
		Method:      http.MethodPost,
		Path:        "/api/v1/stories/{id}/tags",
		Summary:     "Add tag to story",
		Description: "Finds the tag by its normalized text or creates it, then adds it to the story. Adding a tag twice changes nothing.",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAddTagToStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeTagFromStory",
		Method:      http.MethodDelete,
		Path:        "/api/v1/stories/{id}/tags/{tagID}",
		Summary:     "Remove tag from story",
		Description: "Removing a tag the story does not carry changes nothing",
		Tags:        []string{"Tags"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRemoveTagFromStory)
}

// === DTOs ===

// TagsOutput lists tags.
type TagsOutput struct {
	Body []*domain.Tag
}

// TagIDInput addresses a tag.
type TagIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

// AddTagInput adds a tag to a story.
type AddTagInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body struct {
		Text string `json:"text" minLength:"1" maxLength:"200"`
	}
}

// RemoveTagInput removes a tag from a story.
type RemoveTagInput struct {
	ID    int64 `path:"id" minimum:"1"`
	TagID int64 `path:"tagID" minimum:"1"`
}

// StoryTagsResponse is the story after a tag change.
type StoryTagsResponse struct {
	Story   *domain.Story `json:"story"`
	Changed bool          `json:"changed" doc:"False when the call had no effect"`
}

// StoryTagsOutput wraps StoryTagsResponse.
type StoryTagsOutput struct {
	Body StoryTagsResponse
}

// === Handlers ===

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*TagsOutput, error) {
	tags, err := s.services.Tags.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	return &TagsOutput{Body: tags}, nil
}

func (s *Server) handleListDeletedTags(ctx context.Context, _ *struct{}) (*TagsOutput, error) {
	tags, err := s.services.Tags.ListDeletedTags(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &TagsOutput{Body: tags}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *TagIDInput) (*struct{}, error) {
	return nil, s.services.Tags.DeleteTag(ctx, ActorFrom(ctx), input.ID)
}

func (s *Server) handleRestoreTag(ctx context.Context, input *TagIDInput) (*struct{}, error) {
	return nil, s.services.Tags.RestoreTag(ctx, ActorFrom(ctx), input.ID)
}

func (s *Server) handleAddTagToStory(ctx context.Context, input *AddTagInput) (*StoryTagsOutput, error) {
	story, changed, err := s.services.Tags.AddTagToStory(ctx, ActorFrom(ctx), input.ID, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &StoryTagsOutput{Body: StoryTagsResponse{Story: story, Changed: changed}}, nil
}

func (s *Server) handleRemoveTagFromStory(ctx context.Context, input *RemoveTagInput) (*StoryTagsOutput, error) {
	story, changed, err := s.services.Tags.RemoveTagFromStory(ctx, ActorFrom(ctx), input.ID, input.TagID)
	if err != nil {
		return nil, err
	}
	return &StoryTagsOutput{Body: StoryTagsResponse{Story: story, Changed: changed}}, nil
}
