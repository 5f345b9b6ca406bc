package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asylumproject/asylum-server/internal/domain"
	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/objectstore"
	"github.com/asylumproject/asylum-server/internal/store"
)

func TestContentService_CreateStory(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	story, err := env.content.CreateStory(ctx, env.curator, StoryRequest{
		Title:            "  Crossing the Aegean ",
		Description:      "<p>A <strong>long</strong> night at sea.</p>",
		AsylumSeekerName: "Amal",
		CountryCode:      "SY",
	})
	require.NoError(t, err)

	assert.Equal(t, "Crossing the Aegean", story.Title)
	assert.Equal(t, domain.StoryDraft, story.State)
	assert.Equal(t, env.curator.UserID, story.CreatorID)
	assert.Equal(t, "sy", story.CountryCode)
	assert.Equal(t, "Syria", story.CountryName)
	assert.Contains(t, story.DescriptionText, "night at sea")
	assert.NotContains(t, story.DescriptionText, "<p>")

	events, err := env.events.ListEvents(ctx, env.admin, store.EventFilter{Usernames: []string{"curator"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OpCreated, events[0].Operation)
	assert.Equal(t, domain.ItemStory, events[0].ItemType)
}

func TestContentService_CreateStory_Validation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.content.CreateStory(ctx, env.curator, StoryRequest{Title: "   "})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.content.CreateStory(ctx, env.curator, StoryRequest{Title: "x", CountryCode: "zz"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.content.CreateStory(ctx, env.curator, StoryRequest{Title: "x", State: "LOST"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	visitor := env.createActor(t, "visitor", domain.PermSiteUser)
	_, err = env.content.CreateStory(ctx, visitor, StoryRequest{Title: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = env.content.CreateStory(ctx, nil, StoryRequest{Title: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestContentService_UpdateStoryKeepsAggregate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, mp := env.newStory(t, "Before")

	_, err := env.content.CreateElement(ctx, env.curator, story.ID, mp.ID, ElementRequest{Kind: "text", LanguageCode: "en", Body: "<p>hello</p>"})
	require.NoError(t, err)
	_, _, err = env.tags.AddTagToStory(ctx, env.curator, story.ID, "sea")
	require.NoError(t, err)

	updated, err := env.content.UpdateStory(ctx, env.curator, story.ID, StoryRequest{Title: "After", State: "published"})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, domain.StoryPublished, updated.State)
	assert.Equal(t, []string{"en"}, updated.LanguageCodes())
	assert.Len(t, updated.Tags, 1)
	assert.Equal(t, 1, updated.ElementCount())

	// An empty state keeps the current one.
	updated, err = env.content.UpdateStory(ctx, env.curator, story.ID, StoryRequest{Title: "Again"})
	require.NoError(t, err)
	assert.Equal(t, domain.StoryPublished, updated.State)
}

func TestContentService_DeleteRestoreStory(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, _ := env.newStory(t, "Bin")

	require.NoError(t, env.content.DeleteStory(ctx, env.curator, story.ID))
	assert.ErrorIs(t, env.content.DeleteStory(ctx, env.curator, story.ID), domainerrors.ErrNotModified)

	_, err := env.content.GetStory(ctx, env.curator, story.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	got, err := env.content.GetStory(ctx, env.admin, story.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	deleted, err := env.content.ListDeletedStories(ctx, env.curator)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	live, err := env.content.ListStories(ctx, env.curator, StoryListFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := env.content.ListStories(ctx, env.curator, StoryListFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	restored, err := env.content.RestoreStory(ctx, env.curator, story.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())
}

func TestContentService_GetStoryVisibility(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, _ := env.newStory(t, "Draft")

	_, err := env.content.GetStory(ctx, nil, story.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = env.content.SetStoryState(ctx, env.curator, story.ID, "PUBLISHED")
	require.NoError(t, err)

	got, err := env.content.GetStory(ctx, nil, story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, got.ID)

	published, err := env.content.ListPublishedStories(ctx)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Len(t, published[0].MapPoints, 1)
}

func TestContentService_MapPoints(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, mp1 := env.newStory(t, "Points")

	_, err := env.content.CreateMapPoint(ctx, env.curator, 424242, MapPointRequest{})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = env.content.CreateMapPoint(ctx, env.curator, story.ID, MapPointRequest{Latitude: 91})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	mp2, err := env.content.CreateMapPoint(ctx, env.curator, story.ID, MapPointRequest{Latitude: 10, Longitude: 20, Zoom: 5})
	require.NoError(t, err)

	_, err = env.content.CreateElement(ctx, env.curator, story.ID, mp1.ID, ElementRequest{Kind: "text", LanguageCode: "en"})
	require.NoError(t, err)
	_, err = env.content.CreateElement(ctx, env.curator, story.ID, mp2.ID, ElementRequest{Kind: "text", LanguageCode: "fr"})
	require.NoError(t, err)

	moved, err := env.content.UpdateMapPoint(ctx, env.curator, mp2.ID, MapPointRequest{Latitude: -33.9, Longitude: 18.4, Zoom: 11})
	require.NoError(t, err)
	assert.InDelta(t, -33.9, moved.Latitude, 1e-9)
	assert.Len(t, moved.Elements, 1)

	got, err := env.content.GetStory(ctx, env.curator, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{mp1.ID, mp2.ID}, []int64{got.MapPoints[0].ID, got.MapPoints[1].ID})
	assert.Equal(t, []string{"en", "fr"}, got.LanguageCodes())

	after, err := env.content.DeleteMapPoint(ctx, env.curator, mp2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, after.LanguageCodes())
	require.Len(t, after.MapPoints, 1)

	_, err = env.content.GetMapPoint(ctx, mp2.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestContentService_Elements(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, mp := env.newStory(t, "Elements")

	text, err := env.content.CreateElement(ctx, env.curator, story.ID, mp.ID, ElementRequest{
		Kind:         "text",
		LanguageCode: "EN",
		Body:         "<p>We walked for <em>nine</em> days.</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ElementText, text.Kind)
	assert.Equal(t, "en", text.LanguageCode)
	assert.Equal(t, domain.ElementDraft, text.State)
	require.NotNil(t, text.Text)
	assert.Positive(t, text.Text.Length)

	_, err = env.content.CreateElement(ctx, env.curator, story.ID, mp.ID, ElementRequest{Kind: "hologram"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	t.Run("edit keeps position and swaps language", func(t *testing.T) {
		img, err := env.content.CreateElement(ctx, env.curator, story.ID, mp.ID, ElementRequest{Kind: "image", LanguageCode: "fr", Caption: "port"})
		require.NoError(t, err)

		edited, err := env.content.EditElement(ctx, env.curator, story.ID, mp.ID, text.ID, ElementRequest{
			Kind: "text", LanguageCode: "ar", Description: "translated", Body: "<p>نص</p>",
		})
		require.NoError(t, err)
		assert.Equal(t, "translated", edited.Description)

		got, err := env.content.GetStory(ctx, env.curator, story.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{text.ID, img.ID}, elementIDs(got.MapPoint(mp.ID)))
		assert.Equal(t, []string{"ar", "fr"}, got.LanguageCodes())
	})

	t.Run("kind is immutable", func(t *testing.T) {
		_, err := env.content.EditElement(ctx, env.curator, story.ID, mp.ID, text.ID, ElementRequest{Kind: "audio"})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
	})

	t.Run("edit of a missing element", func(t *testing.T) {
		_, err := env.content.EditElement(ctx, env.curator, story.ID, mp.ID, 987654, ElementRequest{Kind: "text"})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("archive toggles state", func(t *testing.T) {
		e, err := env.content.SetElementArchived(ctx, env.curator, text.ID, "archive")
		require.NoError(t, err)
		assert.Equal(t, domain.ElementArchived, e.State)

		archived, err := env.content.ListElements(ctx, env.curator, mp.ID, store.ElementFilter{Archived: true})
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, text.ID, archived[0].ID)

		e, err = env.content.SetElementArchived(ctx, env.curator, text.ID, "restore")
		require.NoError(t, err)
		assert.Equal(t, domain.ElementDraft, e.State)
	})

	t.Run("delete detaches and removes", func(t *testing.T) {
		got, err := env.content.DeleteElement(ctx, env.curator, story.ID, mp.ID, text.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"fr"}, got.LanguageCodes())

		_, err = env.content.GetElement(ctx, text.ID)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestContentService_CreateElementRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, _ := env.newStory(t, "Rollback")

	_, err := env.content.CreateElement(ctx, env.curator, story.ID, 555, ElementRequest{Kind: "text", LanguageCode: "en"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	counts, err := env.store.ElementCountsByKind(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts, "a failed attach must not leave an orphaned element")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadService_UploadElementFile(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	story, mp := env.newStory(t, "Uploads")
	data := pngBytes(t, 12, 8)

	e, err := env.uploads.UploadElementFile(ctx, env.curator, story.ID, mp.ID, Upload{
		FileName:     "harbour.png",
		ContentType:  "image/png",
		Data:         data,
		LanguageCode: "fr",
		Description:  "Harbour",
	})
	require.NoError(t, err)

	key := objectstore.ElementKey(story.ID, mp.ID, domain.ElementImage, "harbour.png")
	assert.Equal(t, "story"+itoa(story.ID)+"/mapPoint"+itoa(mp.ID)+"/image/harbour.png", key)
	assert.Contains(t, env.objects.Keys(), key)
	assert.Equal(t, env.objects.URL(key), e.FilePath)
	assert.Equal(t, int64(len(data)), e.FileSize)
	require.NotNil(t, e.Image)
	assert.Equal(t, 12, e.Image.Width)
	assert.Equal(t, 8, e.Image.Height)
	assert.NotEmpty(t, e.Image.BlurHash)

	got, err := env.content.GetStory(ctx, env.curator, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr"}, got.LanguageCodes())

	exists, err := env.content.CheckFileNameExists(ctx, "harbour.png", mp.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("duplicate name is not modified", func(t *testing.T) {
		_, err := env.uploads.UploadElementFile(ctx, env.curator, story.ID, mp.ID, Upload{FileName: "harbour.png", ContentType: "image/png", Data: data})
		assert.ErrorIs(t, err, domainerrors.ErrNotModified)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := env.uploads.UploadElementFile(ctx, env.curator, story.ID, mp.ID, Upload{FileName: "a.pdf", ContentType: "application/pdf", Data: data})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
	})

	t.Run("object store failure is not modified", func(t *testing.T) {
		env.objects.FailPut = objectstore.ErrInjected
		defer func() { env.objects.FailPut = nil }()

		_, err := env.uploads.UploadElementFile(ctx, env.curator, story.ID, mp.ID, Upload{FileName: "b.png", ContentType: "image/png", Data: data})
		assert.ErrorIs(t, err, domainerrors.ErrNotModified)

		exists, err := env.content.CheckFileNameExists(ctx, "b.png", mp.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("map point of another story", func(t *testing.T) {
		other, _ := env.newStory(t, "Other")
		_, err := env.uploads.UploadElementFile(ctx, env.curator, other.ID, mp.ID, Upload{FileName: "c.png", ContentType: "image/png", Data: data})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}
