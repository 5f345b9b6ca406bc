package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/search"
)

const maxSearchLimit = 100

// SearchService runs full-text queries over the story index.
type SearchService struct {
	index   *search.Index
	content *ContentService
	logger  *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.Index, content *ContentService, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, content: content, logger: logger}
}

// SearchStories searches story titles, descriptions, names, countries and
// tags. Anonymous visitors and non-curators only ever see PUBLISHED stories;
// curators may filter by any state.
func (s *SearchService) SearchStories(ctx context.Context, actor *Actor, params search.Params) (*search.Result, error) {
	if params.Limit > maxSearchLimit {
		params.Limit = maxSearchLimit
	}
	if params.Offset < 0 {
		return nil, domainerrors.Validation("offset must not be negative")
	}

	if !actor.CanCurate() {
		params.State = string(domain.StoryPublished)
	} else if params.State != "" {
		st, ok := domain.ParseStoryState(params.State)
		if !ok {
			return nil, domainerrors.Validationf("unknown story state %q", params.State)
		}
		params.State = string(st)
	}
	for i, l := range params.Languages {
		params.Languages[i] = domain.NormalizeCode(l)
	}
	params.CountryCode = domain.NormalizeCode(params.CountryCode)
	params.Query = strings.TrimSpace(params.Query)

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search stories: %w", err)
	}
	return res, nil
}

// Reindex rebuilds the index from the database. Admin only.
func (s *SearchService) Reindex(ctx context.Context, actor *Actor) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	n, err := s.content.ReindexAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt", "stories", n)
	return n, nil
}

// DocumentCount returns the number of indexed stories.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
