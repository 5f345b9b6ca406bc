package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/objectstore"
	"github.com/asylumproject/asylum-server/internal/search"
	"github.com/asylumproject/asylum-server/internal/store/sqlite"
	"github.com/asylumproject/asylum-server/internal/validation"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// testEnv wires every service against a temp SQLite store.
type testEnv struct {
	store    *sqlite.Store
	objects  *objectstore.Memory
	mailer   *mail.Recorder
	index    *search.Index
	events   *EventService
	sync     *Synchronizer
	content  *ContentService
	uploads  *UploadService
	tags     *TagService
	sharing  *SharingService
	sessions *SessionService
	auth     *AuthService
	users    *UserService
	reports  *ReportService
	search   *SearchService
	refs     *ReferenceService
	backups  *BackupService

	admin   *Actor
	curator *Actor
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newBareEnv(t)
	env.admin = env.createActor(t, "admin", domain.PermSystemAdmin)
	env.curator = env.createActor(t, "curator", domain.PermContentCurator)
	return env
}

// newBareEnv wires the services without creating any user.
func newBareEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	s, err := sqlite.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, l := range []domain.Language{{Code: "en", Name: "English"}, {Code: "fr", Name: "French"}, {Code: "ar", Name: "Arabic"}} {
		require.NoError(t, s.UpsertLanguage(ctx, l))
	}
	require.NoError(t, s.UpsertCountry(ctx, domain.Country{Code: "sy", Name: "Syria"}))

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(testKeyHex, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	v := validation.New()
	env := &testEnv{
		store:   s,
		objects: objectstore.NewMemory(),
		mailer:  &mail.Recorder{},
		index:   index,
	}
	env.events = NewEventService(s, logger)
	env.sync = NewSynchronizer(s, logger)
	env.content = NewContentService(s, env.sync, env.events, index, v, logger)
	env.uploads = NewUploadService(env.content, env.objects, media.NewProber(logger), logger)
	env.tags = NewTagService(s, env.events, env.content, logger)
	env.sharing = NewSharingService(s, "https://stories.example.org/", logger)
	env.sessions = NewSessionService(s, tokens, logger)
	env.auth = NewAuthService(s, tokens, env.sessions, env.events, env.mailer, v, "https://stories.example.org", logger)
	env.users = NewUserService(s, env.sessions, env.events, v, logger)
	env.reports = NewReportService(s, env.objects, logger)
	env.search = NewSearchService(index, env.content, logger)
	env.refs = NewReferenceService(s, logger)
	archives := backup.NewService(s, filepath.Join(dir, "backups"), "test", logger)
	env.backups = NewBackupService(archives, s, env.events, env.search, env.mailer, "https://api.example.org/", logger)
	return env
}

// createActor stores a user with the given permissions and returns it as an actor.
func (e *testEnv) createActor(t *testing.T, username string, perms ...domain.Permission) *Actor {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := &domain.User{
		Username:     username,
		Email:        username + "@example.org",
		PasswordHash: hash,
		FirstName:    username,
		LastName:     "Tester",
		Enabled:      true,
	}
	u.SetPermissions(perms)
	u.InitTimestamps()
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return &Actor{UserID: u.ID, Username: u.Username, Permissions: u.Permissions}
}

// newStory creates a draft story with one map point.
func (e *testEnv) newStory(t *testing.T, title string) (*domain.Story, *domain.MapPoint) {
	t.Helper()
	ctx := context.Background()
	story, err := e.content.CreateStory(ctx, e.curator, StoryRequest{Title: title})
	require.NoError(t, err)
	mp, err := e.content.CreateMapPoint(ctx, e.curator, story.ID, MapPointRequest{Latitude: 36.2, Longitude: 37.1, Zoom: 8})
	require.NoError(t, err)
	return story, mp
}

// newElement stores an unattached element; attaching is up to the test.
func (e *testEnv) newElement(t *testing.T, kind domain.ElementKind, lang string) *domain.ContentElement {
	t.Helper()
	el := &domain.ContentElement{Kind: kind, LanguageCode: lang, Description: string(kind) + " " + lang}
	el.Normalize()
	el.InitTimestamps()
	require.NoError(t, e.store.CreateElement(context.Background(), el))
	return el
}

func elementIDs(mp *domain.MapPoint) []int64 {
	ids := make([]int64, len(mp.Elements))
	for i, el := range mp.Elements {
		ids[i] = el.ID
	}
	return ids
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
