package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/asylumproject/asylum-server/internal/domain"
	"github.com/asylumproject/asylum-server/internal/store"
)

func TestFindOrCreateTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag, created, err := s.FindOrCreateTag(ctx, "hope")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	if !created {
		t.Error("first call should create the tag")
	}

	again, created, err := s.FindOrCreateTag(ctx, "hope")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	if created {
		t.Error("second call should find the existing tag")
	}
	if again.ID != tag.ID {
		t.Errorf("ID: got %d, want %d", again.ID, tag.ID)
	}
}

func TestListTags_StoryCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sea, _, err := s.FindOrCreateTag(ctx, "sea")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	if _, _, err := s.FindOrCreateTag(ctx, "border"); err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}

	for _, title := range []string{"One", "Two"} {
		st := makeTestStory(t, s, title, domain.StoryDraft)
		st.AddTag(sea)
		if err := s.SaveStory(ctx, st); err != nil {
			t.Fatalf("SaveStory: %v", err)
		}
	}

	tags, err := s.ListTags(ctx, domain.RecordActive)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("len = %d, want 2", len(tags))
	}
	// Ordered by text.
	if tags[0].Text != "border" || tags[1].Text != "sea" {
		t.Errorf("order = %q, %q", tags[0].Text, tags[1].Text)
	}
	if tags[1].StoryCount != 2 {
		t.Errorf("sea StoryCount = %d, want 2", tags[1].StoryCount)
	}
}

func TestUpdateTag_SoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag, _, err := s.FindOrCreateTag(ctx, "obsolete")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	tag.MarkDeleted()
	if err := s.UpdateTag(ctx, tag); err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}

	active, err := s.ListTags(ctx, domain.RecordActive)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %d, want 0", len(active))
	}
	bin, err := s.ListTags(ctx, domain.RecordDeleted)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(bin) != 1 || bin[0].DeletedAt == nil {
		t.Errorf("recycle bin = %+v", bin)
	}
}

func TestUpdateTag_DuplicateText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.FindOrCreateTag(ctx, "a"); err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	b, _, err := s.FindOrCreateTag(ctx, "b")
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	b.Text = "a"
	if err := s.UpdateTag(ctx, b); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("UpdateTag: got %v, want ErrAlreadyExists", err)
	}
}

func TestGetTag_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTag(context.Background(), 7)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error, got %T", err)
	}
	if storeErr.Code != 404 {
		t.Errorf("Code = %d, want 404", storeErr.Code)
	}
}
