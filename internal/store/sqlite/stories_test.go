package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

func TestCreateAndGetStory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	curator := makeTestUser(t, s, "curator", domain.PermContentCurator)

	st := &domain.Story{
		Title:            "Crossing",
		Description:      "<p>A long walk</p>",
		DescriptionText:  "A long walk",
		AsylumSeekerName: "Amal",
		CountryCode:      "SY",
		CountryName:      "Syria",
		State:            domain.StoryDraft,
		CreatorID:        curator.ID,
	}
	st.InitTimestamps()
	if err := s.CreateStory(ctx, st); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if st.ID == 0 {
		t.Fatal("CreateStory did not assign an id")
	}

	got, err := s.GetStory(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if got.Title != "Crossing" || got.CountryName != "Syria" {
		t.Errorf("got %q/%q, want Crossing/Syria", got.Title, got.CountryName)
	}
	if got.CreatorUsername != "curator" {
		t.Errorf("CreatorUsername = %q, want curator", got.CreatorUsername)
	}
	if got.MapPoints == nil || got.Languages == nil || got.Tags == nil {
		t.Error("collections should be empty, not nil")
	}
}

func TestGetStory_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetStory(context.Background(), 999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveStory_LanguagesAndTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLanguages(t, s)

	st := makeTestStory(t, s, "Harbour", domain.StoryDraft)
	tag, _, err := s.FindOrCreateTag(ctx, "sea")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}

	st.AddLanguage(domain.Language{Code: "fr", Name: "French"})
	st.AddLanguage(domain.Language{Code: "en", Name: "English"})
	st.AddTag(tag)
	st.Touch()
	if err := s.SaveStory(ctx, st); err != nil {
		t.Fatalf("SaveStory: %v", err)
	}

	got, err := s.GetStory(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	codes := got.LanguageCodes()
	if len(codes) != 2 || codes[0] != "en" || codes[1] != "fr" {
		t.Errorf("languages = %v, want [en fr]", codes)
	}
	if len(got.Tags) != 1 || got.Tags[0].Text != "sea" {
		t.Errorf("tags = %v, want [sea]", got.Tags)
	}

	// An unknown language code violates the reference table.
	got.AddLanguage(domain.Language{Code: "zz", Name: "Nowhere"})
	if err := s.SaveStory(ctx, got); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SaveStory with unknown language: got %v, want ErrNotFound", err)
	}
}

func TestListStories_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	published := makeTestStory(t, s, "Published", domain.StoryPublished)
	tagged := makeTestStory(t, s, "Tagged", domain.StoryPublished)
	makeTestStory(t, s, "Draft", domain.StoryDraft)
	deleted := makeTestStory(t, s, "Deleted", domain.StoryPublished)

	deleted.MarkDeleted()
	if err := s.SaveStory(ctx, deleted); err != nil {
		t.Fatalf("SaveStory: %v", err)
	}

	tag, _, err := s.FindOrCreateTag(ctx, "hidden")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	tagged.AddTag(tag)
	if err := s.SaveStory(ctx, tagged); err != nil {
		t.Fatalf("SaveStory: %v", err)
	}

	all, err := s.ListStories(ctx, store.StoryFilter{})
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("active stories = %d, want 3", len(all))
	}

	pub, err := s.ListStories(ctx, store.StoryFilter{State: domain.StoryPublished})
	if err != nil {
		t.Fatalf("ListStories(published): %v", err)
	}
	if len(pub) != 2 {
		t.Errorf("published = %d, want 2", len(pub))
	}

	filtered, err := s.ListStories(ctx, store.StoryFilter{
		State:         domain.StoryPublished,
		ExcludeTagIDs: []int64{tag.ID},
	})
	if err != nil {
		t.Fatalf("ListStories(exclude): %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != published.ID {
		t.Errorf("filtered = %v, want only %d", filtered, published.ID)
	}

	trash, err := s.ListStories(ctx, store.StoryFilter{Status: domain.RecordDeleted})
	if err != nil {
		t.Fatalf("ListStories(deleted): %v", err)
	}
	if len(trash) != 1 || trash[0].ID != deleted.ID {
		t.Errorf("deleted = %v, want only %d", trash, deleted.ID)
	}
}

func TestSaveMapPoint_AttachOrderDetach(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLanguages(t, s)

	st := makeTestStory(t, s, "Route", domain.StoryDraft)
	mp := makeTestMapPoint(t, s, st.ID)
	e1 := makeTestElement(t, s, domain.ElementText, "en")
	e2 := makeTestElement(t, s, domain.ElementText, "fr")

	mp.UpsertElement(e2)
	mp.UpsertElement(e1)
	if err := s.SaveMapPoint(ctx, mp); err != nil {
		t.Fatalf("SaveMapPoint: %v", err)
	}

	got, err := s.GetMapPoint(ctx, mp.ID)
	if err != nil {
		t.Fatalf("GetMapPoint: %v", err)
	}
	if len(got.Elements) != 2 || got.Elements[0].ID != e2.ID || got.Elements[1].ID != e1.ID {
		t.Fatalf("elements out of order: %+v", got.Elements)
	}

	got.RemoveElement(e2.ID)
	if err := s.SaveMapPoint(ctx, got); err != nil {
		t.Fatalf("SaveMapPoint: %v", err)
	}

	again, err := s.GetMapPoint(ctx, mp.ID)
	if err != nil {
		t.Fatalf("GetMapPoint: %v", err)
	}
	if len(again.Elements) != 1 || again.Elements[0].ID != e1.ID {
		t.Errorf("after detach: %+v", again.Elements)
	}

	detached, err := s.GetElement(ctx, e2.ID)
	if err != nil {
		t.Fatalf("GetElement: %v", err)
	}
	if detached.MapPointID != 0 {
		t.Errorf("detached element still points at map point %d", detached.MapPointID)
	}
}

func TestGetMapPoint_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetMapPoint(context.Background(), 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMapPoint_CascadesElements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := makeTestStory(t, s, "Cascade", domain.StoryDraft)
	mp := makeTestMapPoint(t, s, st.ID)
	e := makeTestElement(t, s, domain.ElementImage, "")
	mp.UpsertElement(e)
	if err := s.SaveMapPoint(ctx, mp); err != nil {
		t.Fatalf("SaveMapPoint: %v", err)
	}

	if err := s.DeleteMapPoint(ctx, mp.ID); err != nil {
		t.Fatalf("DeleteMapPoint: %v", err)
	}
	if _, err := s.GetElement(ctx, e.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("element survived map point delete: %v", err)
	}
}

func TestStoryAggregateLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := makeTestStory(t, s, "Aggregate", domain.StoryDraft)
	first := makeTestMapPoint(t, s, st.ID)
	second := makeTestMapPoint(t, s, st.ID)
	e := makeTestElement(t, s, domain.ElementAudio, "")
	second.UpsertElement(e)
	if err := s.SaveMapPoint(ctx, second); err != nil {
		t.Fatalf("SaveMapPoint: %v", err)
	}

	got, err := s.GetStory(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if len(got.MapPoints) != 2 || got.MapPoints[0].ID != first.ID {
		t.Fatalf("map points = %+v", got.MapPoints)
	}
	if got.ElementCount() != 1 {
		t.Errorf("ElementCount = %d, want 1", got.ElementCount())
	}
	if got.MapPoints[1].Elements[0].Media == nil {
		t.Error("audio element lost its media payload")
	}
}
