package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// streamRows runs query and yields each scanned row. A scan error is
// yielded and iteration continues unless the consumer stops.
func streamRows[T any](ctx context.Context, q querier, query string,
	scan func(interface{ Scan(dest ...any) error }) (T, error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			yield(zero, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			if ctx.Err() != nil {
				yield(zero, ctx.Err())
				return
			}
			v, err := scan(rows)
			if err != nil {
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// StreamUsers returns an iterator over every user, deleted ones included,
// with permissions loaded.
func (s *Store) StreamUsers(ctx context.Context) iter.Seq2[*domain.User, error] {
	return func(yield func(*domain.User, error) bool) {
		perms, err := s.loadAllPermissions(ctx, s.db)
		if err != nil {
			yield(nil, fmt.Errorf("load permissions: %w", err))
			return
		}
		for u, err := range streamRows(ctx, s.db, `SELECT `+userColumns+` FROM users ORDER BY id`, scanUser) {
			if err == nil {
				u.Permissions = perms[u.ID]
			}
			if !yield(u, err) {
				return
			}
		}
	}
}

// StreamTags returns an iterator over every tag, deleted ones included.
func (s *Store) StreamTags(ctx context.Context) iter.Seq2[*domain.Tag, error] {
	return streamRows(ctx, s.db, `SELECT `+tagColumnsT+` FROM tags t ORDER BY t.id`, scanTag)
}

// StreamStories returns an iterator over every story aggregate, deleted
// ones included. Ids are collected first so children can be loaded on the
// same pool without holding the cursor open.
func (s *Store) StreamStories(ctx context.Context) iter.Seq2[*domain.Story, error] {
	return func(yield func(*domain.Story, error) bool) {
		var ids []int64
		for id, err := range streamRows(ctx, s.db, `SELECT id FROM stories ORDER BY id`,
			func(sc interface{ Scan(dest ...any) error }) (int64, error) {
				var id int64
				return id, sc.Scan(&id)
			}) {
			if err != nil {
				yield(nil, err)
				return
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			st, err := s.GetStory(ctx, id)
			if err != nil {
				err = fmt.Errorf("load story %d: %w", id, err)
			}
			if !yield(st, err) {
				return
			}
		}
	}
}

// StreamEvents returns an iterator over the audit log in insertion order.
func (s *Store) StreamEvents(ctx context.Context) iter.Seq2[*domain.Event, error] {
	return streamRows(ctx, s.db, `SELECT `+eventColumnsE+` FROM events e ORDER BY e.id`,
		func(sc interface{ Scan(dest ...any) error }) (*domain.Event, error) { return scanEvent(sc) })
}

// StreamShortURLs returns an iterator over every share link.
func (s *Store) StreamShortURLs(ctx context.Context) iter.Seq2[*domain.ShortURL, error] {
	return streamRows(ctx, s.db, `SELECT token, tag_ids, created_at FROM short_urls ORDER BY created_at, token`,
		func(sc interface{ Scan(dest ...any) error }) (*domain.ShortURL, error) {
			var (
				u         domain.ShortURL
				ids       string
				createdAt string
			)
			if err := sc.Scan(&u.Token, &ids, &createdAt); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(ids), &u.TagIDs); err != nil {
				return nil, fmt.Errorf("decode tag ids: %w", err)
			}
			t, err := parseTime(createdAt)
			if err != nil {
				return nil, err
			}
			u.CreatedAt = t
			return &u, nil
		})
}
