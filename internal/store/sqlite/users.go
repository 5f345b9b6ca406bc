package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, username, email, password_hash, first_name, last_name,
	phone_number, default_language, photo_path, enabled, creator_id, reset_token,
	last_login_at, status, created_at, updated_at, deleted_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		phone       sql.NullString
		language    sql.NullString
		photo       sql.NullString
		enabled     int
		creatorID   sql.NullInt64
		resetToken  sql.NullString
		lastLoginAt sql.NullString
		status      string
		createdAt   string
		updatedAt   string
		deletedAt   sql.NullString
	)
	err := scanner.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&phone, &language, &photo, &enabled, &creatorID, &resetToken,
		&lastLoginAt, &status, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	u.PhoneNumber = phone.String
	u.DefaultLanguage = language.String
	u.PhotoPath = photo.String
	u.Enabled = enabled != 0
	u.CreatorID = creatorID.Int64
	u.ResetToken = resetToken.String
	if u.LastLoginAt, err = parseNullableTime(lastLoginAt); err != nil {
		return nil, err
	}
	if err := scanLifecycle(&u.Lifecycle, status, createdAt, updatedAt, deletedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user and its permissions.
// Returns store.ErrAlreadyExists when the username or email is taken.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		u.Status = statusOrActive(u.Status)
		res, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO users (
				username, email, password_hash, first_name, last_name,
				phone_number, default_language, photo_path, enabled, creator_id, reset_token,
				last_login_at, status, created_at, updated_at, deleted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			nullString(u.PhoneNumber), nullString(u.DefaultLanguage), nullString(u.PhotoPath),
			boolToInt(u.Enabled), nullInt64(u.CreatorID), nullString(u.ResetToken),
			nullTimeString(u.LastLoginAt), string(u.Status),
			formatTime(u.CreatedAt), formatTime(u.UpdatedAt), nullTimeString(u.DeletedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists.WithMessage("username or email already in use")
			}
			return fmt.Errorf("insert user: %w", err)
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return s.writePermissions(ctx, u)
	})
}

// GetUser retrieves a user by id, including soft-deleted users.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUserWhere(ctx, `id = ?`, id)
}

// GetUserByUsername retrieves a user by username, case-insensitively.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserWhere(ctx, `username = ?`, strings.TrimSpace(username))
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserWhere(ctx, `email = ?`, strings.TrimSpace(email))
}

// GetUserByLogin resolves a sign-in identifier that may be a username or an email.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.GetUserByEmail(ctx, login)
	}
	return s.GetUserByUsername(ctx, login)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	q := s.conn(ctx)
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("user not found")
	}
	if err != nil {
		return nil, err
	}
	if u.Permissions, err = s.loadPermissions(ctx, q, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser writes every user column and replaces the permission set.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx, `
			UPDATE users SET
				username = ?, email = ?, password_hash = ?, first_name = ?, last_name = ?,
				phone_number = ?, default_language = ?, photo_path = ?, enabled = ?,
				creator_id = ?, reset_token = ?, last_login_at = ?,
				status = ?, updated_at = ?, deleted_at = ?
			WHERE id = ?`,
			u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			nullString(u.PhoneNumber), nullString(u.DefaultLanguage), nullString(u.PhotoPath),
			boolToInt(u.Enabled), nullInt64(u.CreatorID), nullString(u.ResetToken),
			nullTimeString(u.LastLoginAt), string(statusOrActive(u.Status)),
			formatTime(u.UpdatedAt), nullTimeString(u.DeletedAt), u.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists.WithMessage("username or email already in use")
			}
			return fmt.Errorf("update user: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return store.ErrNotFound.WithMessage("user not found")
		}
		return s.writePermissions(ctx, u)
	})
}

// ListUsers returns users with the given status ordered by username.
func (s *Store) ListUsers(ctx context.Context, status domain.RecordStatus) ([]*domain.User, error) {
	q := s.conn(ctx)
	rows, err := q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = ? ORDER BY username`, string(statusOrActive(status)))
	if err != nil {
		return nil, err
	}
	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	perms, err := s.loadAllPermissions(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Permissions = perms[u.ID]
		if u.Permissions == nil {
			u.Permissions = []domain.Permission{}
		}
	}
	return users, nil
}

// CountUsers counts every account, including deleted ones.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UsernameExists reports whether any account, deleted or not, holds the username.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, strings.TrimSpace(username))
}

// EmailExists reports whether any account, deleted or not, holds the email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, strings.TrimSpace(email))
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) writePermissions(ctx context.Context, u *domain.User) error {
	q := s.conn(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}
	for _, p := range u.Permissions {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_permissions (user_id, permission) VALUES (?, ?)`, u.ID, string(p)); err != nil {
			return fmt.Errorf("insert permission %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) loadPermissions(ctx context.Context, q querier, userID int64) ([]domain.Permission, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT permission FROM user_permissions WHERE user_id = ? ORDER BY permission`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []domain.Permission{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, domain.Permission(p))
	}
	return perms, rows.Err()
}

func (s *Store) loadAllPermissions(ctx context.Context, q querier) (map[int64][]domain.Permission, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id, permission FROM user_permissions ORDER BY user_id, permission`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]domain.Permission{}
	for rows.Next() {
		var (
			id int64
			p  string
		)
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = append(out[id], domain.Permission(p))
	}
	return out, rows.Err()
}
