package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// ClearContent removes stories, tags, events and share links. Accounts and
// reference data are left in place.
func (s *Store) ClearContent(ctx context.Context) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		for _, table := range []string{
			"short_urls", "events", "content_elements", "map_points",
			"story_tags", "story_languages", "stories", "tags",
		} {
			if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// conflictClause returns the upsert suffix for an insert keyed on key.
// Replace updates every listed column; keep-existing ignores the row.
func conflictClause(mode store.ImportMode, key string, columns []string) string {
	if mode == store.ImportKeepExisting {
		return ` ON CONFLICT DO NOTHING`
	}
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == key {
			continue
		}
		sets = append(sets, c+` = excluded.`+c)
	}
	return ` ON CONFLICT(` + key + `) DO UPDATE SET ` + strings.Join(sets, ", ")
}

// importRow inserts one row with explicit key and reports whether it was written.
func (s *Store) importRow(ctx context.Context, mode store.ImportMode, table, key string, columns []string, args ...any) (bool, error) {
	query := `INSERT INTO ` + table + ` (` + strings.Join(columns, ", ") + `) VALUES (` +
		placeholders(len(columns)) + `)` + conflictClause(mode, key, columns)
	res, err := s.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("import %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var userImportColumns = []string{
	"id", "username", "email", "password_hash", "first_name", "last_name",
	"phone_number", "default_language", "photo_path", "enabled", "creator_id", "reset_token",
	"last_login_at", "status", "created_at", "updated_at", "deleted_at",
}

// ImportUser writes a user with its original id and permissions.
func (s *Store) ImportUser(ctx context.Context, u *domain.User, mode store.ImportMode) (bool, error) {
	var written bool
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		written, err = s.importRow(ctx, mode, "users", "id", userImportColumns,
			u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			nullString(u.PhoneNumber), nullString(u.DefaultLanguage), nullString(u.PhotoPath),
			boolToInt(u.Enabled), nullInt64(u.CreatorID), nullString(u.ResetToken),
			nullTimeString(u.LastLoginAt), string(statusOrActive(u.Status)),
			formatTime(u.CreatedAt), formatTime(u.UpdatedAt), nullTimeString(u.DeletedAt),
		)
		if err != nil || !written {
			return err
		}
		return s.writePermissions(ctx, u)
	})
	return written, err
}

// ImportTag writes a tag with its original id.
func (s *Store) ImportTag(ctx context.Context, t *domain.Tag, mode store.ImportMode) (bool, error) {
	return s.importRow(ctx, mode, "tags", "id",
		[]string{"id", "text", "status", "created_at", "updated_at", "deleted_at"},
		t.ID, t.Text, string(statusOrActive(t.Status)),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullTimeString(t.DeletedAt))
}

var storyImportColumns = []string{
	"id", "title", "description", "description_text", "asylum_seeker_name",
	"country_code", "country_name", "content_rating", "state", "creator_id",
	"available_from", "available_until", "status", "created_at", "updated_at", "deleted_at",
}

var mapPointImportColumns = []string{
	"id", "story_id", "position", "latitude", "longitude", "zoom",
	"status", "created_at", "updated_at", "deleted_at",
}

var elementImportColumns = []string{
	"id", "map_point_id", "position", "kind", "language_code", "description",
	"file_path", "file_name", "file_size", "content_type", "state",
	"text_body", "text_length", "image_width", "image_height", "image_caption", "image_blurhash",
	"media_length_seconds", "status", "created_at", "updated_at", "deleted_at",
}

// ImportStory writes a whole story aggregate with its original ids.
// In keep-existing mode a story whose id is already present is skipped
// along with its children. Tags that no longer exist are dropped from the
// story; missing languages are created from the archived name.
func (s *Store) ImportStory(ctx context.Context, st *domain.Story, mode store.ImportMode) (bool, error) {
	var written bool
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		written, err = s.importRow(ctx, mode, "stories", "id", storyImportColumns,
			st.ID, st.Title, st.Description, st.DescriptionText, st.AsylumSeekerName,
			nullString(st.CountryCode), nullString(st.CountryName), nullString(st.ContentRating),
			string(st.State), s.existingUserID(ctx, st.CreatorID),
			nullTimeString(st.AvailableFrom), nullTimeString(st.AvailableUntil),
			string(statusOrActive(st.Status)), formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
			nullTimeString(st.DeletedAt),
		)
		if err != nil || !written {
			return err
		}

		q := s.conn(ctx)
		for _, stmt := range []string{
			`DELETE FROM map_points WHERE story_id = ?`,
			`DELETE FROM story_languages WHERE story_id = ?`,
			`DELETE FROM story_tags WHERE story_id = ?`,
		} {
			if _, err := q.ExecContext(ctx, stmt, st.ID); err != nil {
				return err
			}
		}

		for _, l := range st.Languages {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO languages (code, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, l.Code, l.Name); err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO story_languages (story_id, language_code) VALUES (?, ?)`, st.ID, l.Code); err != nil {
				return err
			}
		}
		for i, t := range st.Tags {
			if _, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO story_tags (story_id, tag_id, position) SELECT ?, id, ? FROM tags WHERE id = ?`,
				st.ID, i, t.ID); err != nil {
				return err
			}
		}

		for i, mp := range st.MapPoints {
			if _, err := s.importRow(ctx, store.ImportReplace, "map_points", "id", mapPointImportColumns,
				mp.ID, st.ID, i, mp.Latitude, mp.Longitude, mp.Zoom,
				string(statusOrActive(mp.Status)), formatTime(mp.CreatedAt), formatTime(mp.UpdatedAt),
				nullTimeString(mp.DeletedAt)); err != nil {
				return err
			}
			for j, e := range mp.Elements {
				args := []any{
					e.ID, mp.ID, j, string(e.Kind), nullString(e.LanguageCode), e.Description,
					nullString(e.FilePath), nullString(e.FileName), e.FileSize, nullString(e.ContentType), string(e.State),
				}
				args = append(args, elementPayloadArgs(e)...)
				args = append(args, string(statusOrActive(e.Status)),
					formatTime(e.CreatedAt), formatTime(e.UpdatedAt), nullTimeString(e.DeletedAt))
				if _, err := s.importRow(ctx, store.ImportReplace, "content_elements", "id", elementImportColumns, args...); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return written, err
}

// existingUserID returns id when that user exists, else NULL.
func (s *Store) existingUserID(ctx context.Context, id int64) any {
	if id == 0 {
		return nil
	}
	ok, err := s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id)
	if err != nil || !ok {
		return nil
	}
	return id
}

// ImportEvent appends an archived event, keeping its id.
func (s *Store) ImportEvent(ctx context.Context, e *domain.Event, mode store.ImportMode) (bool, error) {
	return s.importRow(ctx, mode, "events", "id",
		[]string{"id", "actor_id", "operation", "item_type", "item_id", "description", "correlation_id", "occurred_at"},
		e.ID, nullInt64(e.ActorID), string(e.Operation), string(e.ItemType), e.ItemID,
		e.Description, nullString(e.CorrelationID), formatTime(e.OccurredAt))
}

// ImportShortURL writes an archived share link.
func (s *Store) ImportShortURL(ctx context.Context, u *domain.ShortURL, mode store.ImportMode) (bool, error) {
	ids, err := json.Marshal(u.TagIDs)
	if err != nil {
		return false, fmt.Errorf("encode tag ids: %w", err)
	}
	return s.importRow(ctx, mode, "short_urls", "token",
		[]string{"token", "tag_ids", "created_at"},
		u.Token, string(ids), formatTime(u.CreatedAt))
}
