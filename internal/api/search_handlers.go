package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchStories",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search stories",
		Description: "Full-text search over titles, descriptions, names, countries and tags. Visitors only see published stories.",
		Tags:        []string{"Search"},
	}, s.handleSearchStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/search/reindex",
		Summary:     "Rebuild search index",
		Tags:        []string{"Admin", "Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReindex)
}

// SearchInput contains search query parameters.
type SearchInput struct {
	Query     string   `query:"q" doc:"Search query"`
	State     string   `query:"state" doc:"Story state; curators only"`
	Languages []string `query:"language" doc:"Any of these language codes"`
	Country   string   `query:"country" doc:"Country code"`
	Limit     int      `query:"limit" default:"20" minimum:"1" maximum:"100"`
	Offset    int      `query:"offset" minimum:"0"`
	SortBy    string   `query:"sort" enum:"relevance,title,recent" default:"relevance"`
	SortOrder string   `query:"order" enum:"asc,desc" default:"desc"`
	Highlight bool     `query:"highlight"`
}

// SearchOutput wraps search results.
type SearchOutput struct {
	Body *search.Result
}

// ReindexOutput reports the number of indexed stories.
type ReindexOutput struct {
	Body struct {
		Indexed int `json:"indexed"`
	}
}

func (s *Server) handleSearchStories(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	res, err := s.services.Search.SearchStories(ctx, ActorFrom(ctx), search.Params{
		Query:       input.Query,
		State:       input.State,
		Languages:   input.Languages,
		CountryCode: input.Country,
		Limit:       input.Limit,
		Offset:      input.Offset,
		SortBy:      input.SortBy,
		SortOrder:   input.SortOrder,
		Highlight:   input.Highlight,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: res}, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	n, err := s.services.Search.Reindex(ctx, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	out := &ReindexOutput{}
	out.Body.Indexed = n
	return out, nil
}
