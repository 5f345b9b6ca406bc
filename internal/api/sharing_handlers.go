package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/http/response"
	"github.com/asylumproject/asylum-server/internal/service"
)

func (s *Server) registerSharingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createShortenedURL",
		Method:        http.MethodPost,
		Path:          "/api/v1/share",
		Summary:       "Create share link",
		Description:   "Stores a tag set under a short token. Visitors of the link see published stories carrying none of these tags.",
		Tags:          []string{"Sharing"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateShortenedURL)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSharedStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/share/{token}/stories",
		Summary:     "Stories behind a share link",
		Description: "Published stories excluding the link's tags; 204 when the link has no tags",
		Tags:        []string{"Sharing"},
	}, s.handleGetSharedStories)

	s.router.Get("/share/{token}", s.handleShareRedirect)
}

// CreateShareInput lists the tags to exclude.
type CreateShareInput struct {
	Body struct {
		TagIDs []int64 `json:"tag_ids" doc:"Tags whose stories are hidden"`
	}
}

// ShareOutput is a created share link.
type ShareOutput struct {
	Body *service.ShortenedURL
}

// ShareTokenInput addresses a share link.
type ShareTokenInput struct {
	Token string `path:"token" minLength:"1" maxLength:"32"`
}

// SharedStoriesOutput carries the filtered stories; 204 leaves Body nil.
type SharedStoriesOutput struct {
	Status int
	Body   []*domain.Story
}

func (s *Server) handleCreateShortenedURL(ctx context.Context, input *CreateShareInput) (*ShareOutput, error) {
	u, err := s.services.Sharing.CreateShortenedURL(ctx, input.Body.TagIDs)
	if err != nil {
		return nil, err
	}
	return &ShareOutput{Body: u}, nil
}

func (s *Server) handleGetSharedStories(ctx context.Context, input *ShareTokenInput) (*SharedStoriesOutput, error) {
	stories, err := s.services.Sharing.GetFilteredStories(ctx, input.Token)
	if errors.Is(err, service.ErrEmptyShare) {
		return &SharedStoriesOutput{Status: http.StatusNoContent}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SharedStoriesOutput{Status: http.StatusOK, Body: stories}, nil
}

// handleShareRedirect sends visitors of a short link to the visitor site.
func (s *Server) handleShareRedirect(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" || len(token) > 32 {
		response.NotFound(w, "share link not found", s.logger)
		return
	}
	http.Redirect(w, r, s.services.Sharing.RedirectURL(token), http.StatusFound)
}
