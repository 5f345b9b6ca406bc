package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// elementColumns is the ordered list of columns selected in element queries.
// Must match the scan order in scanElement.
const elementColumns = `id, map_point_id, kind, language_code, description,
	file_path, file_name, file_size, content_type, state,
	text_body, text_length, image_width, image_height, image_caption, image_blurhash,
	media_length_seconds, status, created_at, updated_at, deleted_at`

// scanElement scans a row into a domain.ContentElement, rebuilding the
// kind-specific payload from the nullable columns.
func scanElement(scanner interface{ Scan(dest ...any) error }) (*domain.ContentElement, error) {
	var e domain.ContentElement

	var (
		mapPointID  sql.NullInt64
		kind        string
		language    sql.NullString
		filePath    sql.NullString
		fileName    sql.NullString
		contentType sql.NullString
		state       string
		textBody    sql.NullString
		textLength  sql.NullInt64
		width       sql.NullInt64
		height      sql.NullInt64
		caption     sql.NullString
		blurHash    sql.NullString
		lengthSecs  sql.NullFloat64
		status      string
		createdAt   string
		updatedAt   string
		deletedAt   sql.NullString
	)

	err := scanner.Scan(
		&e.ID, &mapPointID, &kind, &language, &e.Description,
		&filePath, &fileName, &e.FileSize, &contentType, &state,
		&textBody, &textLength, &width, &height, &caption, &blurHash,
		&lengthSecs, &status, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	e.MapPointID = mapPointID.Int64
	e.Kind = domain.ElementKind(kind)
	e.LanguageCode = language.String
	e.FilePath = filePath.String
	e.FileName = fileName.String
	e.ContentType = contentType.String
	e.State = domain.ElementState(state)

	switch e.Kind {
	case domain.ElementText:
		e.Text = &domain.TextAttrs{Body: textBody.String, Length: int(textLength.Int64)}
	case domain.ElementImage:
		e.Image = &domain.ImageAttrs{
			Width:    int(width.Int64),
			Height:   int(height.Int64),
			Caption:  caption.String,
			BlurHash: blurHash.String,
		}
	case domain.ElementAudio, domain.ElementVideo:
		e.Media = &domain.MediaAttrs{LengthSeconds: lengthSecs.Float64}
	}

	if err := scanLifecycle(&e.Lifecycle, status, createdAt, updatedAt, deletedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// elementPayloadArgs flattens the union payload into its nullable columns:
// text_body, text_length, image_width, image_height, image_caption,
// image_blurhash, media_length_seconds.
func elementPayloadArgs(e *domain.ContentElement) []any {
	var (
		textBody   sql.NullString
		textLength sql.NullInt64
		width      sql.NullInt64
		height     sql.NullInt64
		caption    sql.NullString
		blurHash   sql.NullString
		lengthSecs sql.NullFloat64
	)
	if e.Text != nil {
		textBody = sql.NullString{String: e.Text.Body, Valid: true}
		textLength = sql.NullInt64{Int64: int64(e.Text.Length), Valid: true}
	}
	if e.Image != nil {
		width = sql.NullInt64{Int64: int64(e.Image.Width), Valid: true}
		height = sql.NullInt64{Int64: int64(e.Image.Height), Valid: true}
		caption = nullString(e.Image.Caption)
		blurHash = nullString(e.Image.BlurHash)
	}
	if e.Media != nil {
		lengthSecs = sql.NullFloat64{Float64: e.Media.LengthSeconds, Valid: true}
	}
	return []any{textBody, textLength, width, height, caption, blurHash, lengthSecs}
}

// CreateElement inserts a new element and assigns its id.
// The element is stored unattached unless MapPointID is set; attaching and
// ordering is the map point's job (SaveMapPoint).
func (s *Store) CreateElement(ctx context.Context, e *domain.ContentElement) error {
	e.Status = statusOrActive(e.Status)
	args := []any{
		nullInt64(e.MapPointID), string(e.Kind), nullString(e.LanguageCode), e.Description,
		nullString(e.FilePath), nullString(e.FileName), e.FileSize, nullString(e.ContentType), string(e.State),
	}
	args = append(args, elementPayloadArgs(e)...)
	args = append(args, string(e.Status), formatTime(e.CreatedAt), formatTime(e.UpdatedAt), nullTimeString(e.DeletedAt))

	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO content_elements (
			map_point_id, kind, language_code, description,
			file_path, file_name, file_size, content_type, state,
			text_body, text_length, image_width, image_height, image_caption, image_blurhash,
			media_length_seconds, status, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert element: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

// GetElement retrieves an element by id.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetElement(ctx context.Context, id int64) (*domain.ContentElement, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+elementColumns+` FROM content_elements WHERE id = ?`, id)
	e, err := scanElement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

// UpdateElement overwrites the mutable fields of an element.
// Membership and position are left to SaveMapPoint.
func (s *Store) UpdateElement(ctx context.Context, e *domain.ContentElement) error {
	args := []any{
		string(e.Kind), nullString(e.LanguageCode), e.Description,
		nullString(e.FilePath), nullString(e.FileName), e.FileSize, nullString(e.ContentType), string(e.State),
	}
	args = append(args, elementPayloadArgs(e)...)
	args = append(args, string(statusOrActive(e.Status)), formatTime(e.UpdatedAt), nullTimeString(e.DeletedAt), e.ID)

	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE content_elements SET
			kind = ?, language_code = ?, description = ?,
			file_path = ?, file_name = ?, file_size = ?, content_type = ?, state = ?,
			text_body = ?, text_length = ?, image_width = ?, image_height = ?,
			image_caption = ?, image_blurhash = ?, media_length_seconds = ?,
			status = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update element: %w", err)
	}
	return requireAffected(res)
}

// DeleteElement hard-deletes an element.
func (s *Store) DeleteElement(ctx context.Context, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM content_elements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListElements returns the live elements of a map point in display order.
func (s *Store) ListElements(ctx context.Context, mapPointID int64, filter store.ElementFilter) ([]*domain.ContentElement, error) {
	query := `SELECT ` + elementColumns + ` FROM content_elements
		WHERE map_point_id = ? AND status = 'active'`
	args := []any{mapPointID}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Archived {
		query += ` AND state = ?`
		args = append(args, string(domain.ElementArchived))
	}
	query += ` ORDER BY position, id`

	return s.queryElements(ctx, s.conn(ctx), query, args...)
}

// ElementFileExists reports whether the map point already holds a live
// element with this file name.
func (s *Store) ElementFileExists(ctx context.Context, mapPointID int64, fileName string) (bool, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content_elements
		WHERE map_point_id = ? AND file_name = ? AND status = 'active'`,
		mapPointID, fileName,
	).Scan(&n)
	return n > 0, err
}

func (s *Store) queryElements(ctx context.Context, q querier, query string, args ...any) ([]*domain.ContentElement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.ContentElement{}
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// requireAffected maps a zero-row update or delete to store.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
