package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/service"
	"github.com/asylumproject/asylum-server/internal/store"
)

// ReportOutput wraps any report body.
type ReportOutput[T any] struct {
	Body T
}

// registerReport exposes an actor-scoped aggregation under the Reports tag.
func registerReport[T any](s *Server, operationID, path, summary string, fn func(context.Context, *service.Actor) (T, error)) {
	registerReportOn(s, operationID, path, summary, []string{"Admin", "Reports"}, fn)
}

func (s *Server) registerReportRoutes() {
	r := s.services.Reports
	registerReport(s, "reportDashboard", "/api/v1/admin/reports/dashboard", "Dashboard summary", r.Dashboard)
	registerReport(s, "reportElementCounts", "/api/v1/admin/reports/elements", "Element counts by kind", r.ElementCountsByType)
	registerReport(s, "reportStoriesPerStatus", "/api/v1/admin/reports/stories/status", "Stories per state", r.StoriesPerStatus)
	registerReport(s, "reportStoriesPerLanguage", "/api/v1/admin/reports/stories/language", "Stories per language", r.StoriesPerLanguage)
	registerReport(s, "reportStoriesPerCountry", "/api/v1/admin/reports/stories/country", "Stories per country", r.StoriesPerCountry)
	registerReport(s, "reportStoriesPerCurator", "/api/v1/admin/reports/stories/curator", "Stories per curator", r.StoriesPerCurator)
	registerReport(s, "reportStoragePerType", "/api/v1/admin/reports/storage", "Storage per element kind", r.StoragePerType)
	registerReport(s, "reportExistingUsers", "/api/v1/admin/reports/users", "User totals", r.ExistingUsers)
	registerReport(s, "reportUsersPerLanguage", "/api/v1/admin/reports/users/language", "Users per default language", r.UsersPerLanguage)
	registerReport(s, "reportTraffic", "/api/v1/admin/reports/traffic", "Visitor traffic", r.Traffic)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportReport",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reports/export",
		Summary:     "Export report workbook",
		Description: "Builds an XLSX workbook with Users and/or Events sheets, uploads it and returns the link",
		Tags:        []string{"Admin", "Reports"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleExportReport)
}

func (s *Server) registerEventRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listEvents",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/events",
		Summary:     "List events",
		Description: "Event log, newest first. Each user's earliest returned event is flagged first.",
		Tags:        []string{"Admin", "Events"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListEvents)

	registerReportOn(s, "storyTimeline", "/api/v1/admin/events/timeline", "Story timeline", []string{"Admin", "Events"}, s.services.Events.StoryTimeline)
}

// registerReportOn exposes fn as an authenticated GET on path.
func registerReportOn[T any](s *Server, operationID, path, summary string, tags []string, fn func(context.Context, *service.Actor) (T, error)) {
	huma.Register(s.api, huma.Operation{
		OperationID: operationID,
		Method:      http.MethodGet,
		Path:        path,
		Summary:     summary,
		Tags:        tags,
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, _ *struct{}) (*ReportOutput[T], error) {
		v, err := fn(ctx, ActorFrom(ctx))
		if err != nil {
			return nil, err
		}
		return &ReportOutput[T]{Body: v}, nil
	})
}

// ExportReportInput selects the workbook sheets.
type ExportReportInput struct {
	Body struct {
		Users  bool `json:"users,omitempty"`
		Events bool `json:"events,omitempty"`
	}
}

// ListEventsInput filters the event log.
type ListEventsInput struct {
	Usernames []string  `query:"username" doc:"Only events by these users"`
	Since     time.Time `query:"since" doc:"Only events at or after this time (RFC 3339)"`
	Limit     int       `query:"limit" minimum:"0" maximum:"10000"`
}

func (s *Server) handleExportReport(ctx context.Context, input *ExportReportInput) (*ReportOutput[*service.ExportResult], error) {
	res, err := s.services.Reports.ExportReport(ctx, ActorFrom(ctx), service.ExportFlags{
		Users:  input.Body.Users,
		Events: input.Body.Events,
	})
	if err != nil {
		return nil, err
	}
	return &ReportOutput[*service.ExportResult]{Body: res}, nil
}

func (s *Server) handleListEvents(ctx context.Context, input *ListEventsInput) (*ReportOutput[[]*domain.UserEvent], error) {
	filter := store.EventFilter{Usernames: input.Usernames, Limit: input.Limit}
	if !input.Since.IsZero() {
		since := input.Since
		filter.Since = &since
	}
	events, err := s.services.Events.ListEvents(ctx, ActorFrom(ctx), filter)
	if err != nil {
		return nil, err
	}
	return &ReportOutput[[]*domain.UserEvent]{Body: events}, nil
}
