package sqlite

import (
	"context"
	"testing"

	"github.com/asylumproject/asylum-server/internal/domain"
)

func TestReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLanguages(t, s)

	curator := makeTestUser(t, s, "curator", domain.PermContentCurator)
	makeTestUser(t, s, "admin", domain.PermSystemAdmin)
	disabled := makeTestUser(t, s, "off", domain.PermSiteUser)
	disabled.Enabled = false
	if err := s.UpdateUser(ctx, disabled); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	st := &domain.Story{Title: "Counted", State: domain.StoryPublished, CreatorID: curator.ID, CountryName: "Eritrea"}
	st.InitTimestamps()
	if err := s.CreateStory(ctx, st); err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	makeTestStory(t, s, "Draft", domain.StoryDraft)

	mp := makeTestMapPoint(t, s, st.ID)
	img := &domain.ContentElement{Kind: domain.ElementImage, FileName: "a.jpg", FilePath: "k/a.jpg", FileSize: 100}
	img.Normalize()
	img.InitTimestamps()
	if err := s.CreateElement(ctx, img); err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	txt := makeTestElement(t, s, domain.ElementText, "en")
	mp.UpsertElement(img)
	mp.UpsertElement(txt)
	if err := s.SaveMapPoint(ctx, mp); err != nil {
		t.Fatalf("SaveMapPoint: %v", err)
	}
	st.AddLanguage(domain.Language{Code: "en", Name: "English"})
	if err := s.SaveStory(ctx, st); err != nil {
		t.Fatalf("SaveStory: %v", err)
	}

	t.Run("element counts", func(t *testing.T) {
		rows, err := s.ElementCountsByKind(ctx)
		if err != nil {
			t.Fatalf("ElementCountsByKind: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("rows = %+v", rows)
		}
	})

	t.Run("stories per state", func(t *testing.T) {
		n, err := s.CountStories(ctx)
		if err != nil {
			t.Fatalf("CountStories: %v", err)
		}
		if n != 2 {
			t.Errorf("CountStories = %d, want 2", n)
		}
		rows, err := s.StoriesPerState(ctx)
		if err != nil {
			t.Fatalf("StoriesPerState: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("rows = %+v", rows)
		}
	})

	t.Run("stories per language", func(t *testing.T) {
		rows, err := s.StoriesPerLanguage(ctx)
		if err != nil {
			t.Fatalf("StoriesPerLanguage: %v", err)
		}
		if len(rows) != 1 || rows[0].Label != "English" || rows[0].Count != 1 {
			t.Errorf("rows = %+v", rows)
		}
	})

	t.Run("stories per country and curator", func(t *testing.T) {
		rows, err := s.StoriesPerCountry(ctx)
		if err != nil {
			t.Fatalf("StoriesPerCountry: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("country rows = %+v", rows)
		}
		rows, err = s.StoriesPerCurator(ctx)
		if err != nil {
			t.Fatalf("StoriesPerCurator: %v", err)
		}
		found := false
		for _, r := range rows {
			if r.Label == "curator" && r.State == domain.StoryPublished && r.Count == 1 {
				found = true
			}
		}
		if !found {
			t.Errorf("curator rows = %+v", rows)
		}
	})

	t.Run("storage", func(t *testing.T) {
		rows, err := s.StoragePerKind(ctx)
		if err != nil {
			t.Fatalf("StoragePerKind: %v", err)
		}
		for _, r := range rows {
			if r.Kind == domain.ElementImage && (r.Bytes != 100 || r.Files != 1) {
				t.Errorf("image storage = %+v", r)
			}
		}
	})

	t.Run("user totals", func(t *testing.T) {
		totals, err := s.UserTotals(ctx)
		if err != nil {
			t.Fatalf("UserTotals: %v", err)
		}
		if totals.Total != 3 || totals.SysAdmins != 1 || totals.Curators != 1 || totals.SiteUsers != 1 || totals.Disabled != 1 {
			t.Errorf("totals = %+v", totals)
		}
	})
}
