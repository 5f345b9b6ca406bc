package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// CreateShortURL stores a share token.
// Returns store.ErrAlreadyExists when the token collides.
func (s *Store) CreateShortURL(ctx context.Context, u *domain.ShortURL) error {
	ids, err := json.Marshal(u.TagIDs)
	if err != nil {
		return fmt.Errorf("encode tag ids: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx,
		`INSERT INTO short_urls (token, tag_ids, created_at) VALUES (?, ?, ?)`,
		u.Token, string(ids), formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetShortURL resolves a share token.
func (s *Store) GetShortURL(ctx context.Context, token string) (*domain.ShortURL, error) {
	var (
		u         domain.ShortURL
		ids       string
		createdAt string
	)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT token, tag_ids, created_at FROM short_urls WHERE token = ?`, token,
	).Scan(&u.Token, &ids, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("share link not found")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &u.TagIDs); err != nil {
		return nil, fmt.Errorf("decode tag ids: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}
