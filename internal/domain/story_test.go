package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textElement(id int64, lang string) *ContentElement {
	e := &ContentElement{Kind: ElementText, LanguageCode: lang}
	e.ID = id
	e.Normalize()
	return e
}

func TestMapPoint_UpsertElement_KeepsOrder(t *testing.T) {
	mp := &MapPoint{}
	mp.ID = 7

	assert.False(t, mp.UpsertElement(textElement(1, "en")))
	assert.False(t, mp.UpsertElement(textElement(2, "fr")))
	assert.False(t, mp.UpsertElement(textElement(3, "en")))

	edited := textElement(2, "fr")
	edited.Description = "edited"
	assert.True(t, mp.UpsertElement(edited))

	require.Len(t, mp.Elements, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{mp.Elements[0].ID, mp.Elements[1].ID, mp.Elements[2].ID})
	assert.Equal(t, "edited", mp.Elements[1].Description)
	assert.Equal(t, int64(7), mp.Elements[1].MapPointID)
}

func TestMapPoint_RemoveElement(t *testing.T) {
	mp := &MapPoint{}
	mp.UpsertElement(textElement(1, "en"))
	mp.UpsertElement(textElement(2, "fr"))

	removed := mp.RemoveElement(1)
	require.NotNil(t, removed)
	assert.Equal(t, int64(1), removed.ID)
	assert.Nil(t, mp.RemoveElement(99))
	require.Len(t, mp.Elements, 1)
	assert.Equal(t, int64(2), mp.Elements[0].ID)
}

func TestStory_LanguageSet(t *testing.T) {
	s := &Story{}

	assert.True(t, s.AddLanguage(Language{Code: "fr", Name: "French"}))
	assert.True(t, s.AddLanguage(Language{Code: "en", Name: "English"}))
	assert.False(t, s.AddLanguage(Language{Code: "en", Name: "English"}))
	assert.Equal(t, []string{"en", "fr"}, s.LanguageCodes())

	require.NoError(t, s.RemoveLanguage("en"))
	assert.ErrorIs(t, s.RemoveLanguage("en"), ErrLanguageNotPresent)
	assert.Equal(t, []string{"fr"}, s.LanguageCodes())
}

func TestStory_CountLanguage_SkipsDeleted(t *testing.T) {
	mp1 := &MapPoint{}
	mp1.ID = 1
	mp1.UpsertElement(textElement(1, "en"))
	mp2 := &MapPoint{}
	mp2.ID = 2
	mp2.UpsertElement(textElement(2, "en"))
	gone := textElement(3, "en")
	gone.MarkDeleted()
	mp2.UpsertElement(gone)

	s := &Story{MapPoints: []*MapPoint{mp1, mp2}}
	assert.Equal(t, 2, s.CountLanguage("en"))
	assert.Equal(t, 0, s.CountLanguage("fr"))
}

func TestStory_RetainLanguages(t *testing.T) {
	mp := &MapPoint{}
	mp.UpsertElement(textElement(1, "en"))
	s := &Story{MapPoints: []*MapPoint{mp}}
	s.AddLanguage(Language{Code: "en"})
	s.AddLanguage(Language{Code: "fr"})

	s.RetainLanguages()
	assert.Equal(t, []string{"en"}, s.LanguageCodes())
}

func TestStory_UpsertMapPoint(t *testing.T) {
	s := &Story{}
	s.ID = 10
	a := &MapPoint{}
	a.ID = 1
	b := &MapPoint{}
	b.ID = 2
	s.UpsertMapPoint(a)
	s.UpsertMapPoint(b)

	replacement := &MapPoint{Zoom: 9}
	replacement.ID = 1
	s.UpsertMapPoint(replacement)

	require.Len(t, s.MapPoints, 2)
	assert.Equal(t, 9, s.MapPoints[0].Zoom)
	assert.Equal(t, int64(10), s.MapPoints[0].StoryID)
}

func TestStory_Tags_ByText(t *testing.T) {
	s := &Story{}
	t1 := &Tag{Text: "journey"}
	t1.ID = 1
	dup := &Tag{Text: "journey"}
	dup.ID = 2

	assert.True(t, s.AddTag(t1))
	assert.False(t, s.AddTag(dup), "membership is by text")
	assert.True(t, s.HasAnyTag([]int64{1, 5}))
	assert.False(t, s.RemoveTag(42))
	assert.True(t, s.RemoveTag(1))
	assert.Empty(t, s.Tags)
}

func TestParseStoryState(t *testing.T) {
	st, ok := ParseStoryState("published")
	assert.True(t, ok)
	assert.Equal(t, StoryPublished, st)

	_, ok = ParseStoryState("live")
	assert.False(t, ok)
}
