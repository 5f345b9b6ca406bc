package backup_test

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/asylumproject/asylum-server/internal/backup"
	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
	"github.com/asylumproject/asylum-server/internal/store/sqlite"
)

// testSetup opens a temp store and a backup service writing to a temp dir.
func testSetup(t *testing.T) (*sqlite.Store, *backup.Service, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	s, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	backupDir := filepath.Join(dir, "backups")
	return s, backup.NewService(s, backupDir, "test", logger), backupDir
}

// populate stores one published story with a map point, an element, a tag,
// an audit event and a share link.
func populate(t *testing.T, s *sqlite.Store) *domain.Story {
	t.Helper()
	ctx := context.Background()

	for _, l := range []domain.Language{{Code: "en", Name: "English"}, {Code: "ar", Name: "Arabic"}} {
		require.NoError(t, s.UpsertLanguage(ctx, l))
	}
	require.NoError(t, s.UpsertCountry(ctx, domain.Country{Code: "sy", Name: "Syria"}))

	owner := &domain.User{
		Username:     "owner",
		Email:        "owner@example.org",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$a2V5",
		FirstName:    "Olga",
		LastName:     "Owner",
		Enabled:      true,
	}
	owner.SetPermissions([]domain.Permission{domain.PermSystemAdmin})
	owner.InitTimestamps()
	require.NoError(t, s.CreateUser(ctx, owner))

	st := &domain.Story{Title: "Across the river", State: domain.StoryPublished, AsylumSeekerName: "Amal", CreatorID: owner.ID}
	st.InitTimestamps()
	require.NoError(t, s.CreateStory(ctx, st))

	mp := &domain.MapPoint{StoryID: st.ID, Latitude: 36.2, Longitude: 37.1, Zoom: 6}
	mp.InitTimestamps()
	require.NoError(t, s.CreateMapPoint(ctx, mp))

	el := &domain.ContentElement{Kind: domain.ElementText, LanguageCode: "ar", Description: "letter"}
	el.Normalize()
	el.InitTimestamps()
	require.NoError(t, s.CreateElement(ctx, el))
	mp.UpsertElement(el)
	require.NoError(t, s.SaveMapPoint(ctx, mp))

	tag, _, err := s.FindOrCreateTag(ctx, "river")
	require.NoError(t, err)

	st.UpsertMapPoint(mp)
	st.AddLanguage(domain.Language{Code: "ar", Name: "Arabic"})
	st.AddTag(tag)
	require.NoError(t, s.SaveStory(ctx, st))

	require.NoError(t, s.RecordEvent(ctx, &domain.Event{
		ActorID: owner.ID, Operation: domain.OpCreated, ItemType: domain.ItemStory, ItemID: st.ID, OccurredAt: time.Now(),
	}))
	require.NoError(t, s.CreateShortURL(ctx, &domain.ShortURL{Token: "tok01", TagIDs: []int64{tag.ID}, CreatedAt: time.Now()}))

	got, err := s.GetStory(ctx, st.ID)
	require.NoError(t, err)
	return got
}

func TestCreate_WritesArchive(t *testing.T) {
	s, svc, dir := testSetup(t)
	ctx := context.Background()
	populate(t, s)

	res, err := svc.Create(ctx, backup.CreateOptions{CreatedBy: "owner"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.Users)
	assert.Equal(t, 1, res.Counts.Stories)
	assert.Equal(t, 1, res.Counts.MapPoints)
	assert.Equal(t, 1, res.Counts.Elements)
	assert.Equal(t, 1, res.Counts.Tags)
	assert.Equal(t, 1, res.Counts.Events)
	assert.Equal(t, 1, res.Counts.ShortURLs)
	assert.Equal(t, 2, res.Counts.Languages)
	assert.Equal(t, 1, res.Counts.Countries)

	// No temp file is left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}

	raw, err := os.ReadFile(svc.Path(res.ID))
	require.NoError(t, err)
	sum := blake3.Sum256(raw)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)

	zr, err := zip.OpenReader(svc.Path(res.ID))
	require.NoError(t, err)
	defer zr.Close()
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["manifest.json"])
	assert.True(t, names["entities/stories.jsonl"])
	assert.True(t, names["entities/users.jsonl"])
}

func TestListGetDelete(t *testing.T) {
	s, svc, _ := testSetup(t)
	ctx := context.Background()

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	populate(t, s)
	first, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)
	second, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, info := range list {
		assert.NotEmpty(t, info.Checksum)
	}

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Checksum, got.Checksum)
	assert.Equal(t, first.Size, got.Size)

	require.NoError(t, svc.Delete(ctx, first.ID))
	_, err = svc.Get(ctx, first.ID)
	assert.ErrorIs(t, err, backup.ErrBackupNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, first.ID), backup.ErrBackupNotFound)

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = svc.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, backup.ErrInvalidID)
}

func TestRestore_Full(t *testing.T) {
	s, svc, _ := testSetup(t)
	ctx := context.Background()
	original := populate(t, s)

	res, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)

	// Damage the database after the backup.
	gone := &domain.Story{Title: "Added later", State: domain.StoryDraft}
	gone.InitTimestamps()
	require.NoError(t, s.CreateStory(ctx, gone))
	original.Title = "Edited"
	require.NoError(t, s.SaveStory(ctx, original))

	out, err := svc.Restore(ctx, res.ID, backup.RestoreOptions{Mode: backup.RestoreModeFull})
	require.NoError(t, err)
	assert.Empty(t, out.Errors)
	assert.Equal(t, 1, out.Imported["stories"])
	assert.Equal(t, 1, out.Imported["users"])

	stories, err := s.ListStories(ctx, store.StoryFilter{WithAggregates: true})
	require.NoError(t, err)
	require.Len(t, stories, 1)
	restored := stories[0]
	assert.Equal(t, "Across the river", restored.Title)
	require.Len(t, restored.MapPoints, 1)
	require.Len(t, restored.MapPoints[0].Elements, 1)
	assert.Equal(t, "letter", restored.MapPoints[0].Elements[0].Description)
	require.Len(t, restored.Tags, 1)
	assert.Equal(t, "river", restored.Tags[0].Text)
	require.Len(t, restored.Languages, 1)
	assert.Equal(t, "ar", restored.Languages[0].Code)

	owner, err := s.GetUserByUsername(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$a2V5", owner.PasswordHash)

	share, err := s.GetShortURL(ctx, "tok01")
	require.NoError(t, err)
	assert.Equal(t, []int64{restored.Tags[0].ID}, share.TagIDs)
}

func TestRestore_MergeKeepsLocal(t *testing.T) {
	s, svc, _ := testSetup(t)
	ctx := context.Background()
	original := populate(t, s)

	res, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)

	original.Title = "Local edit"
	require.NoError(t, s.SaveStory(ctx, original))
	local := &domain.Story{Title: "Local only", State: domain.StoryDraft}
	local.InitTimestamps()
	require.NoError(t, s.CreateStory(ctx, local))

	out, err := svc.Restore(ctx, res.ID, backup.RestoreOptions{Mode: backup.RestoreModeMerge})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Skipped["stories"])
	assert.Equal(t, 0, out.Imported["stories"])

	got, err := s.GetStory(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "Local edit", got.Title)

	stories, err := s.ListStories(ctx, store.StoryFilter{})
	require.NoError(t, err)
	assert.Len(t, stories, 2)
}

func TestRestore_DryRunWritesNothing(t *testing.T) {
	s, svc, _ := testSetup(t)
	ctx := context.Background()
	original := populate(t, s)

	res, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)
	original.Title = "After backup"
	require.NoError(t, s.SaveStory(ctx, original))

	out, err := svc.Restore(ctx, res.ID, backup.RestoreOptions{Mode: backup.RestoreModeFull, DryRun: true})
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.Equal(t, 1, out.Imported["stories"])

	got, err := s.GetStory(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "After backup", got.Title)
}

func TestValidate(t *testing.T) {
	s, svc, dir := testSetup(t)
	ctx := context.Background()
	populate(t, s)

	res, err := svc.Create(ctx, backup.CreateOptions{})
	require.NoError(t, err)

	v, err := svc.Validate(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	require.NotNil(t, v.Manifest)
	assert.Equal(t, backup.FormatVersion, v.Manifest.Version)
	assert.Empty(t, v.Warnings)

	// An archive from a newer format is rejected.
	writeArchive(t, filepath.Join(dir, "future.asylum.zip"), `{"version":"9.0"}`)
	v, err = svc.Validate(ctx, "future")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = svc.Restore(ctx, "future", backup.RestoreOptions{Mode: backup.RestoreModeFull})
	assert.ErrorIs(t, err, backup.ErrVersionMismatch)

	writeArchive(t, filepath.Join(dir, "broken.asylum.zip"), "")
	v, err = svc.Validate(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = svc.Validate(ctx, "absent")
	assert.ErrorIs(t, err, backup.ErrBackupNotFound)
}

// writeArchive writes a zip holding only manifest, or no manifest when empty.
func writeArchive(t *testing.T, path, manifest string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	if manifest != "" {
		w, err := zw.Create("manifest.json")
		require.NoError(t, err)
		_, err = io.WriteString(w, manifest)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
