package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// tagColumnsT selects tag columns from a query aliasing tags as t.
// Must match the scan order in scanTag.
const tagColumnsT = `t.id, t.text, t.status, t.created_at, t.updated_at, t.deleted_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		status    string
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)
	if err := scanner.Scan(&t.ID, &t.Text, &status, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if err := scanLifecycle(&t.Lifecycle, status, createdAt, updatedAt, deletedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindOrCreateTag finds a tag by exact text or creates it.
// Returns (tag, created, error) where created is true if a new tag was made.
// A soft-deleted tag with the same text is returned as is.
func (s *Store) FindOrCreateTag(ctx context.Context, text string) (*domain.Tag, bool, error) {
	var (
		tag     *domain.Tag
		created bool
	)
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		existing, err := scanTag(q.QueryRowContext(ctx,
			`SELECT `+tagColumnsT+` FROM tags t WHERE t.text = ?`, text))
		if err == nil {
			tag = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		t := &domain.Tag{Text: text}
		t.InitTimestamps()
		res, err := q.ExecContext(ctx,
			`INSERT INTO tags (text, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			t.Text, string(t.Status), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("insert tag: %w", err)
		}
		if t.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		tag, created = t, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return tag, created, nil
}

// GetTag retrieves a tag by id with its live story count.
// Returns store.ErrNotFound if the tag does not exist.
func (s *Store) GetTag(ctx context.Context, id int64) (*domain.Tag, error) {
	tags, err := s.queryTags(ctx, s.conn(ctx),
		`SELECT `+tagColumnsT+` FROM tags t WHERE t.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, store.ErrNotFound.WithMessage("tag not found")
	}
	if err := s.fillStoryCounts(ctx, tags); err != nil {
		return nil, err
	}
	return tags[0], nil
}

// UpdateTag writes a tag's text and lifecycle.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE tags SET text = ?, status = ?, updated_at = ?, deleted_at = ? WHERE id = ?`,
		t.Text, string(statusOrActive(t.Status)), formatTime(t.UpdatedAt), nullTimeString(t.DeletedAt), t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return requireAffected(res)
}

// ListTags returns tags with the given status ordered by text, each with the
// number of live stories carrying it.
func (s *Store) ListTags(ctx context.Context, status domain.RecordStatus) ([]*domain.Tag, error) {
	tags, err := s.queryTags(ctx, s.conn(ctx),
		`SELECT `+tagColumnsT+` FROM tags t WHERE t.status = ? ORDER BY t.text`, string(statusOrActive(status)))
	if err != nil {
		return nil, err
	}
	if err := s.fillStoryCounts(ctx, tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Store) fillStoryCounts(ctx context.Context, tags []*domain.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT st.tag_id, COUNT(*) FROM story_tags st
		JOIN stories s ON s.id = st.story_id AND s.status = 'active'
		GROUP BY st.tag_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	counts := map[int64]int{}
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		counts[id] = n
	}
	for _, t := range tags {
		t.StoryCount = counts[t.ID]
	}
	return rows.Err()
}

func (s *Store) queryTags(ctx context.Context, q querier, query string, args ...any) ([]*domain.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
