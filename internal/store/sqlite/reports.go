package sqlite

import (
	"context"

	"github.com/asylumproject/asylum-server/internal/domain"
)

// ElementCountsByKind counts live elements per kind.
func (s *Store) ElementCountsByKind(ctx context.Context) ([]domain.CountRow, error) {
	return s.countRows(ctx, `
		SELECT kind, COUNT(*) FROM content_elements
		WHERE status = 'active' GROUP BY kind ORDER BY kind`)
}

// CountStories counts live stories.
func (s *Store) CountStories(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stories WHERE status = 'active'`).Scan(&n)
	return n, err
}

// StoriesPerState counts live stories per editorial state.
func (s *Store) StoriesPerState(ctx context.Context) ([]domain.CountRow, error) {
	return s.countRows(ctx, `
		SELECT state, COUNT(*) FROM stories
		WHERE status = 'active' GROUP BY state ORDER BY state`)
}

// StoriesPerLanguage counts live stories per derived language.
func (s *Store) StoriesPerLanguage(ctx context.Context) ([]domain.CountRow, error) {
	return s.countRows(ctx, `
		SELECT l.name, COUNT(*) FROM story_languages sl
		JOIN stories st ON st.id = sl.story_id AND st.status = 'active'
		JOIN languages l ON l.code = sl.language_code
		GROUP BY l.code ORDER BY COUNT(*) DESC, l.name`)
}

// StoriesPerCountry counts live stories per country and state, largest first.
func (s *Store) StoriesPerCountry(ctx context.Context) ([]domain.StateCountRow, error) {
	return s.stateCountRows(ctx, `
		SELECT COALESCE(country_name, ''), state, COUNT(*) FROM stories
		WHERE status = 'active'
		GROUP BY country_name, state ORDER BY COUNT(*) DESC, country_name, state`)
}

// StoriesPerCurator counts live stories per creator and state.
func (s *Store) StoriesPerCurator(ctx context.Context) ([]domain.StateCountRow, error) {
	return s.stateCountRows(ctx, `
		SELECT COALESCE(u.username, ''), st.state, COUNT(*) FROM stories st
		LEFT JOIN users u ON u.id = st.creator_id
		WHERE st.status = 'active'
		GROUP BY st.creator_id, st.state ORDER BY u.username, st.state`)
}

// StoragePerKind sums stored file sizes per element kind.
func (s *Store) StoragePerKind(ctx context.Context) ([]domain.StorageRow, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT kind, COALESCE(SUM(file_size), 0), COUNT(file_path) FROM content_elements
		GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.StorageRow{}
	for rows.Next() {
		var r domain.StorageRow
		if err := rows.Scan(&r.Kind, &r.Bytes, &r.Files); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UserTotals counts accounts by permission. Deleted accounts are only
// counted in Deleted.
func (s *Store) UserTotals(ctx context.Context) (*domain.UserTotals, error) {
	var t domain.UserTotals
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN u.status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'active' AND EXISTS (
				SELECT 1 FROM user_permissions p WHERE p.user_id = u.id AND p.permission = ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'active' AND EXISTS (
				SELECT 1 FROM user_permissions p WHERE p.user_id = u.id AND p.permission = ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'active' AND EXISTS (
				SELECT 1 FROM user_permissions p WHERE p.user_id = u.id AND p.permission = ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'active' AND EXISTS (
				SELECT 1 FROM user_permissions p WHERE p.user_id = u.id AND p.permission = ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'deleted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN u.status = 'active' AND u.enabled = 0 THEN 1 ELSE 0 END), 0)
		FROM users u`,
		string(domain.PermSystemAdmin), string(domain.PermContentCurator),
		string(domain.PermTeacher), string(domain.PermSiteUser),
	).Scan(&t.Total, &t.SysAdmins, &t.Curators, &t.Teachers, &t.SiteUsers, &t.Deleted, &t.Disabled)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UsersPerLanguage counts live users per default language.
func (s *Store) UsersPerLanguage(ctx context.Context) ([]domain.CountRow, error) {
	return s.countRows(ctx, `
		SELECT COALESCE(default_language, ''), COUNT(*) FROM users
		WHERE status = 'active' GROUP BY default_language ORDER BY COUNT(*) DESC, default_language`)
}

func (s *Store) countRows(ctx context.Context, query string, args ...any) ([]domain.CountRow, error) {
	return queryReferenceArgs(ctx, s.conn(ctx), query,
		func(r *domain.CountRow) []any { return []any{&r.Label, &r.Count} }, args...)
}

func (s *Store) stateCountRows(ctx context.Context, query string, args ...any) ([]domain.StateCountRow, error) {
	return queryReferenceArgs(ctx, s.conn(ctx), query,
		func(r *domain.StateCountRow) []any { return []any{&r.Label, &r.State, &r.Count} }, args...)
}
