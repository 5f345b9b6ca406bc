package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/asylumproject/asylum-server/internal/errors"
	"github.com/asylumproject/asylum-server/internal/search"
)

func TestSearchService_Visibility(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	public, _ := env.newStory(t, "Crossing the mountains")
	_, err := env.content.SetStoryState(ctx, env.curator, public.ID, "PUBLISHED")
	require.NoError(t, err)
	env.newStory(t, "Crossing the sea")

	params := search.DefaultParams()
	params.Query = "crossing"

	anon, err := env.search.SearchStories(ctx, nil, params)
	require.NoError(t, err)
	require.Len(t, anon.Hits, 1)
	assert.Equal(t, public.ID, anon.Hits[0].StoryID)

	curated, err := env.search.SearchStories(ctx, env.curator, params)
	require.NoError(t, err)
	assert.Len(t, curated.Hits, 2)

	params.State = "draft"
	drafts, err := env.search.SearchStories(ctx, env.curator, params)
	require.NoError(t, err)
	require.Len(t, drafts.Hits, 1)
	assert.Equal(t, "Crossing the sea", drafts.Hits[0].Title)

	params.State = "LOST"
	_, err = env.search.SearchStories(ctx, env.curator, params)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestSearchService_Reindex(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.newStory(t, "One")
	env.newStory(t, "Two")

	_, err := env.search.Reindex(ctx, env.curator)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	n, err := env.search.Reindex(ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := env.search.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestReferenceService(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	lang, err := env.refs.GetLanguageByCode(ctx, "FR")
	require.NoError(t, err)
	assert.Equal(t, "French", lang.Name)

	_, err = env.refs.GetLanguageByCode(ctx, "xx")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	langs, err := env.refs.ListLanguages(ctx)
	require.NoError(t, err)
	assert.Len(t, langs, 3)

	country, err := env.refs.GetCountryByCode(ctx, "SY")
	require.NoError(t, err)
	assert.Equal(t, "Syria", country.Name)

	countries, err := env.refs.ListCountries(ctx)
	require.NoError(t, err)
	assert.Len(t, countries, 1)
}
