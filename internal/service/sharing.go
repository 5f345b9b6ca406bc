package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/id"
	"github.com/asylumproject/asylum-server/internal/store"
)

// ErrEmptyShare is returned for a share token that carries no tags.
// Handlers answer it with 204 No Content.
var ErrEmptyShare = errors.New("share link has no tags")

const shareTokenAttempts = 10

// ShortenedURL is the result of creating a share link.
type ShortenedURL struct {
	Token  string  `json:"token"`
	TagIDs []int64 `json:"tag_ids"`
	URL    string  `json:"url"`
}

// SharingService creates and resolves shortened URLs that exclude stories
// carrying a set of tags.
type SharingService struct {
	store   store.Store
	baseURL string
	logger  *slog.Logger
}

// NewSharingService creates a new sharing service. baseURL is the public
// address of the visitor site.
func NewSharingService(store store.Store, baseURL string, logger *slog.Logger) *SharingService {
	return &SharingService{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CreateShortenedURL stores the tag ids under a fresh 5-character token.
func (s *SharingService) CreateShortenedURL(ctx context.Context, tagIDs []int64) (*ShortenedURL, error) {
	ids := slices.Clone(tagIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, tagID := range ids {
		if _, err := s.store.GetTag(ctx, tagID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.Validationf("unknown tag %d", tagID)
			}
			return nil, storeErr(err, "get tag")
		}
	}

	for range shareTokenAttempts {
		token, err := id.ShareToken()
		if err != nil {
			return nil, err
		}
		u := &domain.ShortURL{Token: token, TagIDs: ids, CreatedAt: time.Now()}
		err = s.store.CreateShortURL(ctx, u)
		if errors.Is(err, store.ErrAlreadyExists) {
			s.logger.Debug("share token collision, retrying", "token", token)
			continue
		}
		if err != nil {
			return nil, storeErr(err, "create short url")
		}
		return &ShortenedURL{Token: token, TagIDs: ids, URL: s.RedirectURL(token)}, nil
	}
	return nil, domainerrors.Conflict("could not allocate a share token")
}

// GetFilteredStories returns the published stories carrying none of the
// token's tags.
func (s *SharingService) GetFilteredStories(ctx context.Context, token string) ([]*domain.Story, error) {
	u, err := s.store.GetShortURL(ctx, token)
	if err != nil {
		return nil, storeErr(err, "get short url")
	}
	if len(u.TagIDs) == 0 {
		return nil, ErrEmptyShare
	}
	stories, err := s.store.ListStories(ctx, store.StoryFilter{
		State:          domain.StoryPublished,
		Status:         domain.RecordActive,
		ExcludeTagIDs:  u.TagIDs,
		WithAggregates: true,
	})
	return stories, storeErr(err, "list stories")
}

// RedirectURL is where GET /share/{token} sends visitors.
func (s *SharingService) RedirectURL(token string) string {
	return s.baseURL + "/?share=" + token
}
