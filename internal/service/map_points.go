package service

import (
	"context"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
)

// MapPointRequest positions a map point.
type MapPointRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Zoom      int     `json:"zoom" validate:"gte=0,lte=22"`
}

// CreateMapPoint appends a map point to a story.
func (s *ContentService) CreateMapPoint(ctx context.Context, actor *Actor, storyID int64, req MapPointRequest) (*domain.MapPoint, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	mp := &domain.MapPoint{
		StoryID:   storyID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Zoom:      req.Zoom,
	}
	mp.InitTimestamps()

	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		story, err := s.store.GetStory(ctx, storyID)
		if err != nil {
			return storeErr(err, "get story")
		}
		if story.IsDeleted() {
			return domainerrors.NotFound("story not found")
		}
		if err := s.store.CreateMapPoint(ctx, mp); err != nil {
			return storeErr(err, "create map point")
		}
		story.UpsertMapPoint(mp)
		story.Touch()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "save story")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, storyID,
			fmt.Sprintf("map point %d added", mp.ID), "")
	})
	if err != nil {
		return nil, err
	}
	return mp, nil
}

// GetMapPoint returns a map point with its elements.
func (s *ContentService) GetMapPoint(ctx context.Context, id int64) (*domain.MapPoint, error) {
	mp, err := s.store.GetMapPoint(ctx, id)
	if err != nil {
		return nil, storeErr(err, "get map point")
	}
	return mp, nil
}

// UpdateMapPoint moves a map point. Its elements are unchanged.
func (s *ContentService) UpdateMapPoint(ctx context.Context, actor *Actor, id int64, req MapPointRequest) (*domain.MapPoint, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var mp *domain.MapPoint
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		mp, err = s.store.GetMapPoint(ctx, id)
		if err != nil {
			return storeErr(err, "get map point")
		}
		mp.Latitude, mp.Longitude, mp.Zoom = req.Latitude, req.Longitude, req.Zoom
		mp.Touch()
		if err := s.store.SaveMapPoint(ctx, mp); err != nil {
			return storeErr(err, "save map point")
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemMapPoint, mp.ID, "", "")
	})
	if err != nil {
		return nil, err
	}
	s.reindexByID(ctx, mp.StoryID)
	return mp, nil
}

// DeleteMapPoint removes a map point and its elements, then re-derives the
// story's languages from what is left.
func (s *ContentService) DeleteMapPoint(ctx context.Context, actor *Actor, id int64) (*domain.Story, error) {
	if err := requireCurator(actor); err != nil {
		return nil, err
	}

	var story *domain.Story
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		mp, err := s.store.GetMapPoint(ctx, id)
		if err != nil {
			return storeErr(err, "get map point")
		}
		if err := s.store.DeleteMapPoint(ctx, id); err != nil {
			return storeErr(err, "delete map point")
		}

		story, err = s.store.GetStory(ctx, mp.StoryID)
		if err != nil {
			return storeErr(err, "get story")
		}
		story.RemoveMapPoint(id)
		story.RetainLanguages()
		story.Touch()
		if err := s.store.SaveStory(ctx, story); err != nil {
			return storeErr(err, "save story")
		}

		correlationID := NewCorrelationID()
		if err := s.events.Record(ctx, actor, domain.OpDeleted, domain.ItemMapPoint, id, "", correlationID); err != nil {
			return err
		}
		return s.events.Record(ctx, actor, domain.OpModified, domain.ItemStory, story.ID,
			fmt.Sprintf("map point %d removed", id), correlationID)
	})
	if err != nil {
		return nil, err
	}
	s.reindex(story)
	return story, nil
}
