package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/objectstore"
	"github.com/asylumproject/asylum-server/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportService runs the admin aggregation reports and spreadsheet exports.
type ReportService struct {
	store   store.Store
	objects objectstore.Store
	logger  *slog.Logger
}

// NewReportService creates a report service.
func NewReportService(store store.Store, objects objectstore.Store, logger *slog.Logger) *ReportService {
	return &ReportService{store: store, objects: objects, logger: logger}
}

// ElementCounts is the element count per kind plus the story count.
type ElementCounts struct {
	Text    int64 `json:"text"`
	Image   int64 `json:"image"`
	Audio   int64 `json:"audio"`
	Video   int64 `json:"video"`
	Stories int64 `json:"stories"`
}

// Dashboard bundles every aggregation.
type Dashboard struct {
	Elements           *ElementCounts         `json:"elements"`
	StoriesPerStatus   []domain.CountRow      `json:"stories_per_status"`
	StoriesPerLanguage []domain.CountRow      `json:"stories_per_language"`
	StoriesPerCountry  []domain.StateCountRow `json:"stories_per_country"`
	StoriesPerCurator  []domain.StateCountRow `json:"stories_per_curator"`
	StoragePerType     []domain.StorageRow    `json:"storage_per_type"`
	Users              *domain.UserTotals     `json:"users"`
	UsersPerLanguage   []domain.CountRow      `json:"users_per_language"`
}

// ExportFlags selects the sheets of an exported workbook.
type ExportFlags struct {
	Users  bool `json:"users"`
	Events bool `json:"events"`
}

// ExportResult points at an uploaded workbook.
type ExportResult struct {
	Key  string `json:"key"`
	Link string `json:"link"`
}

// TrafficRow is one day of visitor traffic.
type TrafficRow struct {
	Day    string `json:"day"`
	Visits int64  `json:"visits"`
}

// ElementCountsByType counts live elements per kind.
func (s *ReportService) ElementCountsByType(ctx context.Context, actor *Actor) (*ElementCounts, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.elementCounts(ctx)
}

func (s *ReportService) elementCounts(ctx context.Context) (*ElementCounts, error) {
	rows, err := s.store.ElementCountsByKind(ctx)
	if err != nil {
		return nil, storeErr(err, "count elements")
	}
	out := &ElementCounts{}
	for _, r := range rows {
		switch domain.ElementKind(r.Label) {
		case domain.ElementText:
			out.Text = r.Count
		case domain.ElementImage:
			out.Image = r.Count
		case domain.ElementAudio:
			out.Audio = r.Count
		case domain.ElementVideo:
			out.Video = r.Count
		}
	}
	if out.Stories, err = s.store.CountStories(ctx); err != nil {
		return nil, storeErr(err, "count stories")
	}
	return out, nil
}

// StoriesPerStatus counts stories per editorial state.
func (s *ReportService) StoriesPerStatus(ctx context.Context, actor *Actor) ([]domain.CountRow, error) {
	return adminQuery(ctx, actor, s.store.StoriesPerState, "stories per status")
}

// StoriesPerLanguage counts stories per language, largest first.
func (s *ReportService) StoriesPerLanguage(ctx context.Context, actor *Actor) ([]domain.CountRow, error) {
	return adminQuery(ctx, actor, s.store.StoriesPerLanguage, "stories per language")
}

// StoriesPerCountry counts stories per country and state, largest first.
func (s *ReportService) StoriesPerCountry(ctx context.Context, actor *Actor) ([]domain.StateCountRow, error) {
	return adminQuery(ctx, actor, s.store.StoriesPerCountry, "stories per country")
}

// StoriesPerCurator counts stories per creator and state.
func (s *ReportService) StoriesPerCurator(ctx context.Context, actor *Actor) ([]domain.StateCountRow, error) {
	return adminQuery(ctx, actor, s.store.StoriesPerCurator, "stories per curator")
}

// StoragePerType sums stored bytes per element kind.
func (s *ReportService) StoragePerType(ctx context.Context, actor *Actor) ([]domain.StorageRow, error) {
	return adminQuery(ctx, actor, s.store.StoragePerKind, "storage per type")
}

// ExistingUsers summarizes accounts by permission.
func (s *ReportService) ExistingUsers(ctx context.Context, actor *Actor) (*domain.UserTotals, error) {
	return adminQuery(ctx, actor, s.store.UserTotals, "existing users")
}

// UsersPerLanguage counts accounts per default language.
func (s *ReportService) UsersPerLanguage(ctx context.Context, actor *Actor) ([]domain.CountRow, error) {
	return adminQuery(ctx, actor, s.store.UsersPerLanguage, "users per language")
}

// Traffic returns visitor traffic. No analytics backend is wired, so the
// list is always empty.
func (s *ReportService) Traffic(_ context.Context, actor *Actor) ([]TrafficRow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return []TrafficRow{}, nil
}

func adminQuery[T any](ctx context.Context, actor *Actor, fn func(context.Context) (T, error), op string) (T, error) {
	var zero T
	if err := requireAdmin(actor); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	if err != nil {
		return zero, storeErr(err, op)
	}
	return v, nil
}

// Dashboard runs every aggregation concurrently.
func (s *ReportService) Dashboard(ctx context.Context, actor *Actor) (*Dashboard, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.Elements, err = s.elementCounts(ctx); return })
	g.Go(func() (err error) { d.StoriesPerStatus, err = s.store.StoriesPerState(ctx); return })
	g.Go(func() (err error) { d.StoriesPerLanguage, err = s.store.StoriesPerLanguage(ctx); return })
	g.Go(func() (err error) { d.StoriesPerCountry, err = s.store.StoriesPerCountry(ctx); return })
	g.Go(func() (err error) { d.StoriesPerCurator, err = s.store.StoriesPerCurator(ctx); return })
	g.Go(func() (err error) { d.StoragePerType, err = s.store.StoragePerKind(ctx); return })
	g.Go(func() (err error) { d.Users, err = s.store.UserTotals(ctx); return })
	g.Go(func() (err error) { d.UsersPerLanguage, err = s.store.UsersPerLanguage(ctx); return })
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "dashboard")
	}
	return &d, nil
}

// ExportReport builds a workbook with the selected sheets, uploads it under
// reports/REPORT{timestamp}.xlsx and returns its public link.
// Build or upload failures surface as ExternalService without detail.
func (s *ReportService) ExportReport(ctx context.Context, actor *Actor, flags ExportFlags) (*ExportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !flags.Users && !flags.Events {
		return nil, domainerrors.Validation("select at least one of users or events")
	}

	buf, err := s.buildWorkbook(ctx, flags)
	if err != nil {
		s.logger.Error("failed to build report workbook", "error", err)
		return nil, domainerrors.ExternalService("report export failed", err)
	}

	key := fmt.Sprintf("reports/REPORT%s.xlsx", time.Now().UTC().Format("20060102T150405"))
	obj, err := s.objects.Put(ctx, key, buf, xlsxContentType)
	if err != nil {
		s.logger.Error("failed to upload report", "key", key, "error", err)
		return nil, domainerrors.ExternalService("report export failed", err)
	}

	s.logger.Info("report exported", "key", key, "users", flags.Users, "events", flags.Events)
	return &ExportResult{Key: obj.Key, Link: obj.URL}, nil
}

func (s *ReportService) buildWorkbook(ctx context.Context, flags ExportFlags) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	const defaultSheet = "Sheet1"
	var sheets []string

	if flags.Users {
		users, err := s.store.ListUsers(ctx, domain.RecordActive)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		rows := [][]any{{"ID", "Username", "Email", "First name", "Last name", "Language", "Permissions", "Enabled", "Created"}}
		for _, u := range users {
			perms := make([]string, len(u.Permissions))
			for i, p := range u.Permissions {
				perms[i] = string(p)
			}
			rows = append(rows, []any{
				u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.DefaultLanguage,
				strings.Join(perms, ", "), u.Enabled, u.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if err := writeSheet(f, "Users", rows); err != nil {
			return nil, err
		}
		sheets = append(sheets, "Users")
	}

	if flags.Events {
		events, err := s.store.ListEvents(ctx, store.EventFilter{})
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		rows := [][]any{{"ID", "Time", "Username", "First name", "Last name", "Operation", "Item type", "Item ID", "Description", "Correlation"}}
		for _, e := range events {
			rows = append(rows, []any{
				e.ID, e.OccurredAt.UTC().Format(time.RFC3339), e.ActorUsername, e.FirstName, e.LastName,
				string(e.Operation), string(e.ItemType), e.ItemID, e.Description, e.CorrelationID,
			})
		}
		if err := writeSheet(f, "Events", rows); err != nil {
			return nil, err
		}
		sheets = append(sheets, "Events")
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheets[0]); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}
	return nil
}
