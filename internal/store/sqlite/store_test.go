package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/asylumproject/asylum-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedLanguages inserts the reference languages used across tests.
func seedLanguages(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, l := range []domain.Language{{Code: "en", Name: "English"}, {Code: "fr", Name: "French"}, {Code: "ar", Name: "Arabic"}} {
		if err := s.UpsertLanguage(ctx, l); err != nil {
			t.Fatalf("UpsertLanguage(%s): %v", l.Code, err)
		}
	}
}

func makeTestUser(t *testing.T, s *Store, username string, perms ...domain.Permission) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: "hash",
		FirstName:    "First " + username,
		LastName:     "Last",
		Enabled:      true,
	}
	u.SetPermissions(perms)
	u.InitTimestamps()
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func makeTestStory(t *testing.T, s *Store, title string, state domain.StoryState) *domain.Story {
	t.Helper()
	st := &domain.Story{Title: title, State: state, AsylumSeekerName: "Amal"}
	st.InitTimestamps()
	if err := s.CreateStory(context.Background(), st); err != nil {
		t.Fatalf("CreateStory(%s): %v", title, err)
	}
	return st
}

func makeTestMapPoint(t *testing.T, s *Store, storyID int64) *domain.MapPoint {
	t.Helper()
	mp := &domain.MapPoint{StoryID: storyID, Latitude: 36.2, Longitude: 37.1, Zoom: 6}
	mp.InitTimestamps()
	if err := s.CreateMapPoint(context.Background(), mp); err != nil {
		t.Fatalf("CreateMapPoint: %v", err)
	}
	return mp
}

func makeTestElement(t *testing.T, s *Store, kind domain.ElementKind, lang string) *domain.ContentElement {
	t.Helper()
	e := &domain.ContentElement{Kind: kind, LanguageCode: lang, Description: "element"}
	e.Normalize()
	e.InitTimestamps()
	if err := s.CreateElement(context.Background(), e); err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	return e
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"languages", "countries", "users", "user_permissions", "sessions",
		"stories", "story_languages", "tags", "story_tags",
		"map_points", "content_elements", "events", "short_urls",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	defer s2.Close()
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	errBoom := context.Canceled
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		st := &domain.Story{Title: "rolled back", State: domain.StoryDraft}
		st.InitTimestamps()
		if err := s.CreateStory(ctx, st); err != nil {
			return err
		}
		return errBoom
	})
	if err != errBoom {
		t.Fatalf("WithinTx: got %v, want %v", err, errBoom)
	}

	n, err := s.CountStories(ctx)
	if err != nil {
		t.Fatalf("CountStories: %v", err)
	}
	if n != 0 {
		t.Errorf("CountStories = %d after rollback, want 0", n)
	}
}

func TestWithinTx_Nested(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(outer context.Context) error {
		return s.WithinTx(outer, func(inner context.Context) error {
			if s.conn(inner) != s.conn(outer) {
				t.Error("nested WithinTx did not reuse the outer transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
}
