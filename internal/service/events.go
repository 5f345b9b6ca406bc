package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

// EventService appends to and reads the audit log.
type EventService struct {
	store  store.Store
	logger *slog.Logger
}

// NewEventService creates a new event service.
func NewEventService(store store.Store, logger *slog.Logger) *EventService {
	return &EventService{store: store, logger: logger}
}

// NewCorrelationID returns an id that groups the events of one action.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Record appends an event. It joins the transaction carried by ctx, so an
// event is only kept when the change it describes commits.
func (s *EventService) Record(
	ctx context.Context,
	actor *Actor,
	op domain.Operation,
	itemType domain.ItemType,
	itemID int64,
	description string,
	correlationID string,
) error {
	e := &domain.Event{
		Operation:     op,
		ItemType:      itemType,
		ItemID:        itemID,
		Description:   description,
		CorrelationID: correlationID,
		OccurredAt:    time.Now(),
	}
	if actor != nil {
		e.ActorID = actor.UserID
		e.ActorUsername = actor.Username
	}
	if err := s.store.RecordEvent(ctx, e); err != nil {
		return storeErr(err, "record event")
	}
	s.logger.Debug("event recorded",
		"operation", op,
		"item_type", itemType,
		"item_id", itemID,
		"correlation_id", correlationID,
	)
	return nil
}

// ListEvents returns events matching filter. Each user's earliest row in
// the result is flagged First.
func (s *EventService) ListEvents(ctx context.Context, actor *Actor, filter store.EventFilter) ([]*domain.UserEvent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, filter)
	return events, storeErr(err, "list events")
}

// StoryTimeline returns story events ordered by story, then time.
func (s *EventService) StoryTimeline(ctx context.Context, actor *Actor) ([]domain.StoryTimelineEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rows, err := s.store.StoryTimeline(ctx)
	return rows, storeErr(err, "story timeline")
}
