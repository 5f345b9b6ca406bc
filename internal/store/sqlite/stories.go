package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// storyColumns selects a story row plus its creator's username.
// Must match the scan order in scanStory.
const storyColumns = `s.id, s.title, s.description, s.description_text, s.asylum_seeker_name,
	s.country_code, s.country_name, s.content_rating, s.state, s.creator_id, u.username,
	s.available_from, s.available_until, s.status, s.created_at, s.updated_at, s.deleted_at`

const storyFrom = ` FROM stories s LEFT JOIN users u ON u.id = s.creator_id`

func scanStory(scanner interface{ Scan(dest ...any) error }) (*domain.Story, error) {
	var (
		st             domain.Story
		countryCode    sql.NullString
		countryName    sql.NullString
		rating         sql.NullString
		state          string
		creatorID      sql.NullInt64
		creatorName    sql.NullString
		availableFrom  sql.NullString
		availableUntil sql.NullString
		status         string
		createdAt      string
		updatedAt      string
		deletedAt      sql.NullString
	)
	err := scanner.Scan(
		&st.ID, &st.Title, &st.Description, &st.DescriptionText, &st.AsylumSeekerName,
		&countryCode, &countryName, &rating, &state, &creatorID, &creatorName,
		&availableFrom, &availableUntil, &status, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	st.CountryCode = countryCode.String
	st.CountryName = countryName.String
	st.ContentRating = rating.String
	st.State = domain.StoryState(state)
	st.CreatorID = creatorID.Int64
	st.CreatorUsername = creatorName.String
	if st.AvailableFrom, err = parseNullableTime(availableFrom); err != nil {
		return nil, err
	}
	if st.AvailableUntil, err = parseNullableTime(availableUntil); err != nil {
		return nil, err
	}
	if err := scanLifecycle(&st.Lifecycle, status, createdAt, updatedAt, deletedAt); err != nil {
		return nil, err
	}
	st.MapPoints = []*domain.MapPoint{}
	st.Languages = []domain.Language{}
	st.Tags = []*domain.Tag{}
	return &st, nil
}

// CreateStory inserts a story row. Map points, languages and tags are
// written by later aggregate saves.
func (s *Store) CreateStory(ctx context.Context, st *domain.Story) error {
	st.Status = statusOrActive(st.Status)
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO stories (
			title, description, description_text, asylum_seeker_name,
			country_code, country_name, content_rating, state, creator_id,
			available_from, available_until, status, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.Title, st.Description, st.DescriptionText, st.AsylumSeekerName,
		nullString(st.CountryCode), nullString(st.CountryName), nullString(st.ContentRating),
		string(st.State), nullInt64(st.CreatorID),
		nullTimeString(st.AvailableFrom), nullTimeString(st.AvailableUntil),
		string(st.Status), formatTime(st.CreatedAt), formatTime(st.UpdatedAt), nullTimeString(st.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	st.ID, err = res.LastInsertId()
	return err
}

// GetStory loads the full story aggregate, including soft-deleted stories.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetStory(ctx context.Context, id int64) (*domain.Story, error) {
	q := s.conn(ctx)
	st, err := scanStory(q.QueryRowContext(ctx, `SELECT `+storyColumns+storyFrom+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("story not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadStoryChildren(ctx, q, st, true); err != nil {
		return nil, err
	}
	return st, nil
}

// SaveStory writes the story row, its language and tag sets, and the order
// of its map points, replacing whatever was stored.
func (s *Store) SaveStory(ctx context.Context, st *domain.Story) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		res, err := q.ExecContext(ctx, `
			UPDATE stories SET
				title = ?, description = ?, description_text = ?, asylum_seeker_name = ?,
				country_code = ?, country_name = ?, content_rating = ?, state = ?, creator_id = ?,
				available_from = ?, available_until = ?, status = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			st.Title, st.Description, st.DescriptionText, st.AsylumSeekerName,
			nullString(st.CountryCode), nullString(st.CountryName), nullString(st.ContentRating),
			string(st.State), nullInt64(st.CreatorID),
			nullTimeString(st.AvailableFrom), nullTimeString(st.AvailableUntil),
			string(statusOrActive(st.Status)), formatTime(st.UpdatedAt), nullTimeString(st.DeletedAt),
			st.ID,
		)
		if err != nil {
			return fmt.Errorf("update story: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return store.ErrNotFound.WithMessage("story not found")
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM story_languages WHERE story_id = ?`, st.ID); err != nil {
			return fmt.Errorf("clear languages: %w", err)
		}
		for _, l := range st.Languages {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO story_languages (story_id, language_code) VALUES (?, ?)`, st.ID, l.Code); err != nil {
				return fmt.Errorf("insert language %s: %w", l.Code, translateFK(err))
			}
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM story_tags WHERE story_id = ?`, st.ID); err != nil {
			return fmt.Errorf("clear tags: %w", err)
		}
		for i, t := range st.Tags {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO story_tags (story_id, tag_id, position) VALUES (?, ?, ?)`, st.ID, t.ID, i); err != nil {
				return fmt.Errorf("insert tag %d: %w", t.ID, translateFK(err))
			}
		}

		for i, mp := range st.MapPoints {
			if _, err := q.ExecContext(ctx,
				`UPDATE map_points SET position = ? WHERE id = ? AND story_id = ?`, i, mp.ID, st.ID); err != nil {
				return fmt.Errorf("order map point %d: %w", mp.ID, err)
			}
		}
		return nil
	})
}

// ListStories returns stories matching the filter, newest first.
// Languages and tags are always loaded; map points only with WithAggregates.
func (s *Store) ListStories(ctx context.Context, filter store.StoryFilter) ([]*domain.Story, error) {
	q := s.conn(ctx)
	query := `SELECT ` + storyColumns + storyFrom + ` WHERE s.status = ?`
	args := []any{string(statusOrActive(filter.Status))}
	if filter.State != "" {
		query += ` AND s.state = ?`
		args = append(args, string(filter.State))
	}
	if filter.CreatorID != 0 {
		query += ` AND s.creator_id = ?`
		args = append(args, filter.CreatorID)
	}
	if len(filter.ExcludeTagIDs) > 0 {
		query += ` AND NOT EXISTS (SELECT 1 FROM story_tags st WHERE st.story_id = s.id AND st.tag_id IN (` +
			placeholders(len(filter.ExcludeTagIDs)) + `))`
		args = append(args, int64Args(filter.ExcludeTagIDs)...)
	}
	query += ` ORDER BY s.updated_at DESC, s.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	stories := []*domain.Story{}
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		stories = append(stories, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, st := range stories {
		if err := s.loadStoryChildren(ctx, q, st, filter.WithAggregates); err != nil {
			return nil, err
		}
	}
	return stories, nil
}

func (s *Store) loadStoryChildren(ctx context.Context, q querier, st *domain.Story, withMapPoints bool) error {
	var err error
	if st.Languages, err = queryReferenceArgs[domain.Language](ctx, q, `
		SELECT l.code, l.name FROM story_languages sl
		JOIN languages l ON l.code = sl.language_code
		WHERE sl.story_id = ? ORDER BY l.code`,
		func(l *domain.Language) []any { return []any{&l.Code, &l.Name} }, st.ID); err != nil {
		return fmt.Errorf("load languages: %w", err)
	}

	if st.Tags, err = s.queryTags(ctx, q, `
		SELECT `+tagColumnsT+` FROM story_tags st JOIN tags t ON t.id = st.tag_id
		WHERE st.story_id = ? ORDER BY st.position, t.id`, st.ID); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	if withMapPoints {
		if st.MapPoints, err = s.loadStoryMapPoints(ctx, q, st.ID); err != nil {
			return fmt.Errorf("load map points: %w", err)
		}
	}
	return nil
}
