package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

const mapPointColumns = `id, story_id, latitude, longitude, zoom, status, created_at, updated_at, deleted_at`

func scanMapPoint(scanner interface{ Scan(dest ...any) error }) (*domain.MapPoint, error) {
	var (
		mp        domain.MapPoint
		status    string
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)
	err := scanner.Scan(&mp.ID, &mp.StoryID, &mp.Latitude, &mp.Longitude, &mp.Zoom,
		&status, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if err := scanLifecycle(&mp.Lifecycle, status, createdAt, updatedAt, deletedAt); err != nil {
		return nil, err
	}
	mp.Elements = []*domain.ContentElement{}
	return &mp, nil
}

// CreateMapPoint inserts a map point at the end of its story's list.
func (s *Store) CreateMapPoint(ctx context.Context, mp *domain.MapPoint) error {
	mp.Status = statusOrActive(mp.Status)
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO map_points (story_id, position, latitude, longitude, zoom, status, created_at, updated_at, deleted_at)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM map_points WHERE story_id = ?), ?, ?, ?, ?, ?, ?, ?)`,
		mp.StoryID, mp.StoryID, mp.Latitude, mp.Longitude, mp.Zoom,
		string(mp.Status), formatTime(mp.CreatedAt), formatTime(mp.UpdatedAt), nullTimeString(mp.DeletedAt),
	)
	if err != nil {
		if errors.Is(translateFK(err), store.ErrNotFound) {
			return store.ErrNotFound.WithMessage("story not found")
		}
		return fmt.Errorf("insert map point: %w", err)
	}
	mp.ID, err = res.LastInsertId()
	if mp.Elements == nil {
		mp.Elements = []*domain.ContentElement{}
	}
	return err
}

// GetMapPoint loads a map point with its elements in display order.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetMapPoint(ctx context.Context, id int64) (*domain.MapPoint, error) {
	q := s.conn(ctx)
	mp, err := scanMapPoint(q.QueryRowContext(ctx,
		`SELECT `+mapPointColumns+` FROM map_points WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("map point not found")
	}
	if err != nil {
		return nil, err
	}

	mp.Elements, err = s.queryElements(ctx, q,
		`SELECT `+elementColumns+` FROM content_elements WHERE map_point_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("load elements: %w", err)
	}
	return mp, nil
}

// SaveMapPoint persists the map point row and its element membership.
// Elements listed in mp.Elements are attached in slice order; elements that
// were attached but are no longer listed are detached.
func (s *Store) SaveMapPoint(ctx context.Context, mp *domain.MapPoint) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE map_points SET latitude = ?, longitude = ?, zoom = ?,
				status = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			mp.Latitude, mp.Longitude, mp.Zoom,
			string(statusOrActive(mp.Status)), formatTime(mp.UpdatedAt), nullTimeString(mp.DeletedAt), mp.ID,
		)
		if err != nil {
			return fmt.Errorf("update map point: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return store.ErrNotFound.WithMessage("map point not found")
		}

		ids := make([]int64, len(mp.Elements))
		for i, e := range mp.Elements {
			ids[i] = e.ID
			res, err := q.ExecContext(ctx,
				`UPDATE content_elements SET map_point_id = ?, position = ? WHERE id = ?`,
				mp.ID, i, e.ID)
			if err != nil {
				return fmt.Errorf("attach element %d: %w", e.ID, err)
			}
			if err := requireAffected(res); err != nil {
				return store.ErrNotFound.WithMessage(fmt.Sprintf("element %d not found", e.ID))
			}
		}

		detach := `UPDATE content_elements SET map_point_id = NULL, position = 0 WHERE map_point_id = ?`
		args := []any{mp.ID}
		if len(ids) > 0 {
			detach += ` AND id NOT IN (` + placeholders(len(ids)) + `)`
			args = append(args, int64Args(ids)...)
		}
		if _, err := q.ExecContext(ctx, detach, args...); err != nil {
			return fmt.Errorf("detach elements: %w", err)
		}
		return nil
	})
}

// DeleteMapPoint hard-deletes a map point; its elements cascade.
func (s *Store) DeleteMapPoint(ctx context.Context, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM map_points WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// loadStoryMapPoints loads every map point of a story with its elements.
func (s *Store) loadStoryMapPoints(ctx context.Context, q querier, storyID int64) ([]*domain.MapPoint, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+mapPointColumns+` FROM map_points WHERE story_id = ? ORDER BY position, id`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []*domain.MapPoint{}
	byID := map[int64]*domain.MapPoint{}
	for rows.Next() {
		mp, err := scanMapPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, mp)
		byID[mp.ID] = mp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return points, nil
	}

	elements, err := s.queryElements(ctx, q, `
		SELECT `+elementColumns+` FROM content_elements
		WHERE map_point_id IN (SELECT id FROM map_points WHERE story_id = ?)
		ORDER BY map_point_id, position, id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("load elements: %w", err)
	}
	for _, e := range elements {
		if mp := byID[e.MapPointID]; mp != nil {
			mp.Elements = append(mp.Elements, e)
		}
	}
	return points, nil
}
