package novelstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kriswu/inkstone/internal/storyboard"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "遮天", "遮天"},
		{"spaces to dashes", "my great novel", "my-great-novel"},
		{"hostile runes dropped", `a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"empty", "   ", "untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slugify(tt.title); got != tt.want {
				t.Errorf("slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
	t.Run("capped at 60 runes", func(t *testing.T) {
		long := ""
		for i := 0; i < 80; i++ {
			long += "长"
		}
		if got := []rune(slugify(long)); len(got) != 60 {
			t.Errorf("slug length %d, want 60", len(got))
		}
	})
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	n := &Novel{
		Title: "遮天",
		Chapters: []storyboard.Chapter{
			{ID: "ch-1", Title: "第一章 星空中的青铜巨棺", Content: "正文。"},
		},
	}
	if err := s.Save(n); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n.ID == "" {
		t.Fatal("Save did not assign an id")
	}

	got, err := s.Load(n.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Title != "遮天" || len(got.Chapters) != 1 || got.Chapters[0].Title != n.Chapters[0].Title {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSaveRejectsExistingID(t *testing.T) {
	s := newStore(t)
	n := &Novel{ID: "already-set", Title: "x"}
	if err := s.Save(n); err == nil {
		t.Fatal("Save accepted a novel with an id")
	}
}

func TestUpdateRemovesStaleSlug(t *testing.T) {
	s := newStore(t)
	n := &Novel{Title: "old title"}
	if err := s.Save(n); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n.Title = "new title"
	if err := s.Update(n); err != nil {
		t.Fatalf("Update: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(s.Dir(), n.ID+"__*.json"))
	if len(files) != 1 {
		t.Fatalf("got %d files for id, want 1: %v", len(files), files)
	}
	if filepath.Base(files[0]) != n.ID+"__new-title.json" {
		t.Errorf("file %q, want slug for new title", files[0])
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	first := &Novel{Title: "first"}
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	// Ids are second-resolution timestamps; force distinct prefixes.
	time.Sleep(1100 * time.Millisecond)
	second := &Novel{Title: "second"}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	novels, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(novels) != 2 {
		t.Fatalf("got %d novels, want 2", len(novels))
	}
	if novels[0].Title != "second" || novels[1].Title != "first" {
		t.Errorf("order = %q, %q; want newest first", novels[0].Title, novels[1].Title)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	s := newStore(t)
	if err := s.Save(&Novel{Title: "good"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "bad__corrupt.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	novels, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(novels) != 1 {
		t.Errorf("got %d novels, want corrupt file skipped", len(novels))
	}
}

func TestDeleteRemovesFileAndAssets(t *testing.T) {
	s := newStore(t)
	n := &Novel{Title: "doomed"}
	if err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveCharacterImage(n.ID, "主角", []byte("png")); err != nil {
		t.Fatalf("SaveCharacterImage: %v", err)
	}

	if err := s.Delete(n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(n.ID); err == nil {
		t.Error("novel still loadable after delete")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "assets", n.ID)); !os.IsNotExist(err) {
		t.Error("assets dir survived delete")
	}
	if err := s.Delete(n.ID); err == nil {
		t.Error("second delete should report not found")
	}
}

func TestJobsPersist(t *testing.T) {
	s := newStore(t)
	n := &Novel{Title: "with job"}
	if err := s.Save(n); err != nil {
		t.Fatal(err)
	}
	n.Jobs = map[string]*storyboard.Job{
		"ch-1": {ProcessID: "p-1", ChapterID: "ch-1", SceneCount: 2, ScenesDetail: []string{"a", "b"}},
	}
	if err := s.Update(n); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Load(n.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	job := got.Jobs["ch-1"]
	if job == nil || job.ProcessID != "p-1" || len(job.ScenesDetail) != 2 {
		t.Errorf("job not persisted: %+v", job)
	}
}
