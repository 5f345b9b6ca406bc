package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// RecordEvent appends an event to the audit log.
func (s *Store) RecordEvent(ctx context.Context, e *domain.Event) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO events (actor_id, operation, item_type, item_id, description, correlation_id, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(e.ActorID), string(e.Operation), string(e.ItemType), e.ItemID,
		e.Description, nullString(e.CorrelationID), formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

const eventColumnsE = `e.id, e.actor_id, e.operation, e.item_type, e.item_id, e.description,
	e.correlation_id, e.occurred_at`

// scanEvent scans eventColumnsE followed by any extra destinations.
func scanEvent(scanner interface{ Scan(dest ...any) error }, extra ...any) (*domain.Event, error) {
	var (
		e             domain.Event
		actorID       sql.NullInt64
		operation     string
		itemType      string
		correlationID sql.NullString
		occurredAt    string
	)
	dest := append([]any{&e.ID, &actorID, &operation, &itemType, &e.ItemID, &e.Description,
		&correlationID, &occurredAt}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	e.ActorID = actorID.Int64
	e.Operation = domain.Operation(operation)
	e.ItemType = domain.ItemType(itemType)
	e.CorrelationID = correlationID.String
	t, err := parseTime(occurredAt)
	if err != nil {
		return nil, err
	}
	e.OccurredAt = t
	return &e, nil
}

// ListEvents returns events joined with their actors, grouped by user and
// ordered by time. The earliest event of each user in the result is marked First.
func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter) ([]*domain.UserEvent, error) {
	query := `SELECT ` + eventColumnsE + `, COALESCE(u.username, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, '')
		FROM events e LEFT JOIN users u ON u.id = e.actor_id WHERE 1 = 1`
	var args []any
	if len(filter.Usernames) > 0 {
		query += ` AND u.username IN (` + placeholders(len(filter.Usernames)) + `)`
		for _, name := range filter.Usernames {
			args = append(args, strings.TrimSpace(name))
		}
	}
	if filter.Since != nil {
		query += ` AND e.occurred_at >= ?`
		args = append(args, formatTime(*filter.Since))
	}
	query += ` ORDER BY COALESCE(u.username, ''), e.occurred_at, e.id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.UserEvent{}
	seen := map[int64]bool{}
	for rows.Next() {
		var (
			ue       domain.UserEvent
			username string
		)
		e, err := scanEvent(rows, &username, &ue.FirstName, &ue.LastName)
		if err != nil {
			return nil, err
		}
		ue.Event = *e
		ue.ActorUsername = username
		if !seen[ue.ActorID] {
			ue.First = true
			seen[ue.ActorID] = true
		}
		out = append(out, &ue)
	}
	return out, rows.Err()
}

// StoryTimeline returns every story event with the story's current fields,
// ordered by story and then time.
func (s *Store) StoryTimeline(ctx context.Context) ([]domain.StoryTimelineEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT e.item_id, e.occurred_at, e.operation,
			COALESCE(u.first_name, ''), COALESCE(u.last_name, ''),
			st.description, st.title, st.asylum_seeker_name, st.state
		FROM events e
		JOIN stories st ON st.id = e.item_id
		LEFT JOIN users u ON u.id = e.actor_id
		WHERE e.item_type = ?
		ORDER BY e.item_id, e.occurred_at, e.id`, string(domain.ItemStory))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.StoryTimelineEntry{}
	for rows.Next() {
		var (
			entry      domain.StoryTimelineEntry
			occurredAt string
		)
		if err := rows.Scan(&entry.StoryID, &occurredAt, &entry.Operation,
			&entry.ActorFirstName, &entry.ActorLastName,
			&entry.Description, &entry.Title, &entry.AsylumSeekerName, &entry.State); err != nil {
			return nil, err
		}
		if entry.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
