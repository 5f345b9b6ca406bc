package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerMapPointRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createMapPoint",
		Method:        http.MethodPost,
		Path:          "/api/v1/stories/{storyID}/map-points",
		Summary:       "Create map point",
		Description:   "Appends a map point to the story",
		Tags:          []string{"Map points"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateMapPoint)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMapPoint",
		Method:      http.MethodGet,
		Path:        "/api/v1/map-points/{id}",
		Summary:     "Get map point",
		Tags:        []string{"Map points"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMapPoint)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateMapPoint",
		Method:      http.MethodPut,
		Path:        "/api/v1/map-points/{id}",
		Summary:     "Update map point",
		Tags:        []string{"Map points"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateMapPoint)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteMapPoint",
		Method:      http.MethodDelete,
		Path:        "/api/v1/map-points/{id}",
		Summary:     "Delete map point",
		Description: "Deletes the map point and its elements and returns the updated story",
		Tags:        []string{"Map points"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteMapPoint)
}

// MapPointBody positions a map point.
type MapPointBody struct {
	Latitude  float64 `json:"latitude" minimum:"-90" maximum:"90"`
	Longitude float64 `json:"longitude" minimum:"-180" maximum:"180"`
	Zoom      int     `json:"zoom,omitempty" minimum:"0" maximum:"22"`
}

func (b MapPointBody) toService() service.MapPointRequest {
	return service.MapPointRequest{Latitude: b.Latitude, Longitude: b.Longitude, Zoom: b.Zoom}
}

// CreateMapPointInput adds a map point to a story.
type CreateMapPointInput struct {
	StoryID int64 `path:"storyID" minimum:"1"`
	Body    MapPointBody
}

// UpdateMapPointInput moves a map point.
type UpdateMapPointInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body MapPointBody
}

// MapPointIDInput addresses a map point.
type MapPointIDInput struct {
	ID int64 `path:"id" minimum:"1"`
}

// MapPointOutput is one map point with its elements.
type MapPointOutput struct {
	Body *domain.MapPoint
}

// requireCuratorActor rejects anonymous callers and non-curators for reads
// the services leave unchecked.
func requireCuratorActor(ctx context.Context) (*service.Actor, error) {
	actor, err := RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.CanCurate() {
		return nil, domainerrors.Forbidden("content curator permission required")
	}
	return actor, nil
}

func (s *Server) handleCreateMapPoint(ctx context.Context, input *CreateMapPointInput) (*MapPointOutput, error) {
	mp, err := s.services.Content.CreateMapPoint(ctx, ActorFrom(ctx), input.StoryID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &MapPointOutput{Body: mp}, nil
}

func (s *Server) handleGetMapPoint(ctx context.Context, input *MapPointIDInput) (*MapPointOutput, error) {
	if _, err := requireCuratorActor(ctx); err != nil {
		return nil, err
	}
	mp, err := s.services.Content.GetMapPoint(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &MapPointOutput{Body: mp}, nil
}

func (s *Server) handleUpdateMapPoint(ctx context.Context, input *UpdateMapPointInput) (*MapPointOutput, error) {
	mp, err := s.services.Content.UpdateMapPoint(ctx, ActorFrom(ctx), input.ID, input.Body.toService())
	if err != nil {
		return nil, err
	}
	return &MapPointOutput{Body: mp}, nil
}

func (s *Server) handleDeleteMapPoint(ctx context.Context, input *MapPointIDInput) (*StoryOutput, error) {
	story, err := s.services.Content.DeleteMapPoint(ctx, ActorFrom(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: story}, nil
}
