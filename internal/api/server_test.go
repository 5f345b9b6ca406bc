package api

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/auth"
	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/mail"
	"github.com/asylumproject/asylum-server/internal/media"
	"github.com/asylumproject/asylum-server/internal/objectstore"
	"github.com/asylumproject/asylum-server/internal/search"
	"github.com/asylumproject/asylum-server/internal/service"
	"github.com/asylumproject/asylum-server/internal/store/sqlite"
	"github.com/asylumproject/asylum-server/internal/validation"
)

const testKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// testEnvelope mirrors response.Envelope with a typed payload.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

// testServer wraps the API server for handler tests.
type testServer struct {
	*Server
	api     humatest.TestAPI
	store   *sqlite.Store
	objects *objectstore.Memory
	mailer  *mail.Recorder
}

// setupTestServer wires every service against a temp SQLite store.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{AuthRate: 1000, AuthInterval: time.Minute, AuthBurst: 1000})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.UpsertLanguage(ctx, domain.Language{Code: "en", Name: "English"}))
	require.NoError(t, st.UpsertCountry(ctx, domain.Country{Code: "sy", Name: "Syria"}))

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(testKeyHex, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	v := validation.New()
	objects := objectstore.NewMemory()
	mailer := &mail.Recorder{}

	events := service.NewEventService(st, logger)
	content := service.NewContentService(st, service.NewSynchronizer(st, logger), events, index, v, logger)
	sessions := service.NewSessionService(st, tokens, logger)
	searchSvc := service.NewSearchService(index, content, logger)
	archives := backup.NewService(st, filepath.Join(dir, "backups"), "test", logger)

	services := &Services{
		Auth:      service.NewAuthService(st, tokens, sessions, events, mailer, v, "https://stories.example.org", logger),
		Users:     service.NewUserService(st, sessions, events, v, logger),
		Content:   content,
		Uploads:   service.NewUploadService(content, objects, media.NewProber(logger), logger),
		Tags:      service.NewTagService(st, events, content, logger),
		Sharing:   service.NewSharingService(st, "https://stories.example.org/", logger),
		Search:    searchSvc,
		Reference: service.NewReferenceService(st, logger),
		Events:    events,
		Reports:   service.NewReportService(st, objects, logger),
		Backups:   service.NewBackupService(archives, st, events, searchSvc, mailer, "https://api.example.org/", logger),
	}

	s := NewServer(st, services, opts, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server:  s,
		api:     humatest.Wrap(t, s.API()),
		store:   st,
		objects: objects,
		mailer:  mailer,
	}
}

// setupAdmin runs initial setup and returns the administrator's access token.
func (ts *testServer) setupAdmin(t *testing.T) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"username":   "admin",
		"email":      "admin@example.org",
		"password":   "TestPassword123!",
		"first_name": "Ada",
		"last_name":  "Admin",
	})
	require.Equal(t, http.StatusOK, resp.Code, "setup failed: %s", resp.Body.String())

	env := decode[service.AuthResponse](t, resp)
	return env.Data.AccessToken
}

// createUser stores an enabled user with perms and signs them in.
func (ts *testServer) createUser(t *testing.T, username string, perms ...domain.Permission) string {
	t.Helper()

	hash, err := auth.HashPassword("TestPassword123!")
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
	require.NoError(t, ts.store.CreateUser(context.Background(), u))

	return ts.signIn(t, username, "TestPassword123!")
}

func (ts *testServer) signIn(t *testing.T, login, password string) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/signin", map[string]any{"login": login, "password": password})
	require.Equal(t, http.StatusOK, resp.Code, "sign in failed: %s", resp.Body.String())
	return decode[service.AuthResponse](t, resp).Data.AccessToken
}

// createStory creates a story as the caller behind token.
func (ts *testServer) createStory(t *testing.T, token, title string) *domain.Story {
	t.Helper()

	resp := ts.api.Post("/api/v1/stories", bearer(token), map[string]any{"title": title, "country_code": "sy"})
	require.Equal(t, http.StatusCreated, resp.Code, "create story failed: %s", resp.Body.String())
	return decode[*domain.Story](t, resp).Data
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), "body: %s", resp.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp)
	assert.Equal(t, 1, env.Version)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
}

func TestReady(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/ready")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "healthy", env.Data.Components["database"].Status)
	assert.Contains(t, env.Data.Components, "search")
}

func TestReady_DatabaseDown(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.store.Close())

	resp := ts.api.Get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	env := decode[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "database unavailable", env.Error)
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode[any](t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestAuthRateLimit(t *testing.T) {
	ts := setupTestServerWithOptions(t, Options{AuthRate: 2, AuthInterval: time.Minute, AuthBurst: 2})

	body := map[string]any{"login": "nobody", "password": "wrong-password"}
	for range 2 {
		resp := ts.api.Post("/api/v1/auth/signin", body)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/api/v1/auth/signin", body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	env := decode[any](t, resp)
	assert.Equal(t, "RATE_LIMITED", env.Code)

	// Reads are not limited.
	resp = ts.api.Get("/api/v1/auth/setup")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestEnvelopeTransformer(t *testing.T) {
	t.Run("success wraps data", func(t *testing.T) {
		out, err := EnvelopeTransformer(nil, "201", map[string]string{"id": "1"})
		require.NoError(t, err)

		raw, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1,"success":true,"data":{"id":"1"}}`, string(raw))
	})

	t.Run("api error becomes failure", func(t *testing.T) {
		out, err := EnvelopeTransformer(nil, "409", &APIError{status: http.StatusConflict, Code: "CONFLICT", Message: "taken"})
		require.NoError(t, err)

		raw, err := json.Marshal(out)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1,"success":false,"error":"taken","code":"CONFLICT"}`, string(raw))
	})
}
