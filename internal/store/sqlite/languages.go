package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// UpsertLanguage inserts or renames a language.
func (s *Store) UpsertLanguage(ctx context.Context, l domain.Language) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO languages (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
		domain.NormalizeCode(l.Code), l.Name,
	)
	return err
}

// GetLanguage resolves a language by code.
// Returns store.ErrNotFound when the code is not registered.
func (s *Store) GetLanguage(ctx context.Context, code string) (*domain.Language, error) {
	var l domain.Language
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT code, name FROM languages WHERE code = ?`, domain.NormalizeCode(code),
	).Scan(&l.Code, &l.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLanguages returns all languages ordered by name.
func (s *Store) ListLanguages(ctx context.Context) ([]domain.Language, error) {
	return queryReference[domain.Language](ctx, s.conn(ctx),
		`SELECT code, name FROM languages ORDER BY name, code`,
		func(l *domain.Language) []any { return []any{&l.Code, &l.Name} })
}

// UpsertCountry inserts or renames a country.
func (s *Store) UpsertCountry(ctx context.Context, c domain.Country) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO countries (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
		domain.NormalizeCode(c.Code), c.Name,
	)
	return err
}

// GetCountry resolves a country by code.
func (s *Store) GetCountry(ctx context.Context, code string) (*domain.Country, error) {
	var c domain.Country
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT code, name FROM countries WHERE code = ?`, domain.NormalizeCode(code),
	).Scan(&c.Code, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCountries returns all countries ordered by name.
func (s *Store) ListCountries(ctx context.Context) ([]domain.Country, error) {
	return queryReference[domain.Country](ctx, s.conn(ctx),
		`SELECT code, name FROM countries ORDER BY name, code`,
		func(c *domain.Country) []any { return []any{&c.Code, &c.Name} })
}

func queryReference[T any](ctx context.Context, q querier, query string, dest func(*T) []any) ([]T, error) {
	return queryReferenceArgs(ctx, q, query, dest)
}

func queryReferenceArgs[T any](ctx context.Context, q querier, query string, dest func(*T) []any, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := rows.Scan(dest(&v)...); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
