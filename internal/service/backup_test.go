package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/search"
	"github.com/asylumproject/asylum-server/internal/store"
)

func TestBackupService_CreateAndMail(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.newStory(t, "Archived")

	_, err := env.backups.CreateBackup(ctx, env.curator, false)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	b, err := env.backups.CreateBackup(ctx, env.admin, true)
	require.NoError(t, err)
	assert.True(t, b.SendMail)
	assert.Len(t, b.Checksum, 64)
	assert.Equal(t, "https://api.example.org/api/v1/admin/backups/"+b.ID+"/download", b.Link)
	assert.Equal(t, 1, b.Counts.Stories)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@example.org", sent[0].To)
	assert.Contains(t, sent[0].Body, b.Link)

	list, err := env.backups.ListBackups(ctx, env.admin)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.Checksum, list[0].Checksum)

	rc, info, err := env.backups.OpenBackup(ctx, env.admin, b.ID)
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.EqualValues(t, info.Size, len(raw))
	assert.True(t, strings.HasPrefix(string(raw), "PK"))

	v, err := env.backups.ValidateBackup(ctx, env.admin, b.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)

	require.NoError(t, env.backups.DeleteBackup(ctx, env.admin, b.ID))
	_, err = env.backups.GetBackup(ctx, env.admin, b.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = env.backups.GetBackup(ctx, env.admin, "../x")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestBackupService_RestoreReindexes(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	kept, _ := env.newStory(t, "Kept story")
	b, err := env.backups.CreateBackup(ctx, env.admin, false)
	require.NoError(t, err)

	later, _ := env.newStory(t, "Later story")

	_, err = env.backups.RestoreBackup(ctx, env.admin, b.ID, RestoreRequest{Mode: "sideways"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	dry, err := env.backups.RestoreBackup(ctx, env.admin, b.ID, RestoreRequest{Mode: "full", DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	_, err = env.content.GetStory(ctx, env.curator, later.ID)
	require.NoError(t, err, "dry run leaves data alone")

	res, err := env.backups.RestoreBackup(ctx, env.admin, b.ID, RestoreRequest{Mode: "FULL"})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	_, err = env.content.GetStory(ctx, env.curator, kept.ID)
	require.NoError(t, err)
	_, err = env.content.GetStory(ctx, env.curator, later.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	params := search.DefaultParams()
	params.Query = "later"
	hits, err := env.search.SearchStories(ctx, env.curator, params)
	require.NoError(t, err)
	assert.Empty(t, hits.Hits, "restored index drops stories absent from the backup")

	events, err := env.events.ListEvents(ctx, env.admin, store.EventFilter{Usernames: []string{"admin"}})
	require.NoError(t, err)
	var restored bool
	for _, e := range events {
		if e.ItemType == domain.ItemBackup && e.Operation == domain.OpModified {
			restored = true
		}
	}
	assert.True(t, restored)

	_, err = env.backups.RestoreBackup(ctx, env.admin, "missing", RestoreRequest{Mode: "merge"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
