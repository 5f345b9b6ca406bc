package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// sessionColumns is the ordered list of columns selected in session queries.
// Must match the scan order in scanSession.
const sessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at,
	ip_address, user_agent`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var (
		s          domain.Session
		expiresAt  string
		createdAt  string
		lastSeenAt string
		ipAddress  sql.NullString
		userAgent  sql.NullString
	)
	err := scanner.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash,
		&expiresAt, &createdAt, &lastSeenAt, &ipAddress, &userAgent)
	if err != nil {
		return nil, err
	}

	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return nil, err
	}
	s.IPAddress = ipAddress.String
	s.UserAgent = userAgent.String
	return &s, nil
}

// CreateSession inserts a new session.
// Returns store.ErrAlreadyExists if the session ID already exists.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.RefreshTokenHash,
		formatTime(session.ExpiresAt), formatTime(session.CreatedAt), formatTime(session.LastSeenAt),
		nullString(session.IPAddress), nullString(session.UserAgent),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return translateFK(err)
}

// GetSession retrieves a session by id.
// Expired sessions are reported as not found.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.getSessionWhere(ctx, `id = ?`, id)
}

// GetSessionByRefreshToken retrieves a session by refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	return s.getSessionWhere(ctx, `refresh_token_hash = ?`, tokenHash)
}

func (s *Store) getSessionWhere(ctx context.Context, where string, arg any) (*domain.Session, error) {
	session, err := scanSession(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("session not found")
	}
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, store.ErrNotFound.WithMessage("session expired")
	}
	return session, nil
}

// UpdateSession rotates the refresh token and extends the session.
func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE sessions SET refresh_token_hash = ?, expires_at = ?, last_seen_at = ?,
			ip_address = ?, user_agent = ?
		WHERE id = ?`,
		session.RefreshTokenHash, formatTime(session.ExpiresAt), formatTime(session.LastSeenAt),
		nullString(session.IPAddress), nullString(session.UserAgent), session.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteAllUserSessions signs a user out everywhere.
func (s *Store) DeleteAllUserSessions(ctx context.Context, userID int64) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteExpiredSessions removes sessions past their expiry and returns how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
