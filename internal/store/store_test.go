package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/inkwell-md/inkwell/internal/project"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := setupStore(t)

	rec := project.Record{
		ID:   1,
		Name: "thesis",
		Files: []project.FileRecord{
			{Name: "index", Source: "# Index"},
			{Name: "abstract", Source: "# Abstract"},
		},
	}
	if err := s.SaveProject(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	recs, err := s.LoadProjects()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Expected 1 project, got %d", len(recs))
	}
	if !reflect.DeepEqual(recs[0], rec) {
		t.Errorf("Round trip mismatch:\nsaved:  %+v\nloaded: %+v", rec, recs[0])
	}
}

func TestSaveReplacesPreviousState(t *testing.T) {
	s := setupStore(t)

	rec := project.Record{
		ID:   1,
		Name: "notes",
		Files: []project.FileRecord{
			{Name: "a", Source: "one"},
			{Name: "b", Source: "two"},
			{Name: "c", Source: "three"},
		},
	}
	if err := s.SaveProject(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A later save with fewer files must not leave stale rows behind
	rec.Name = "renamed"
	rec.Files = []project.FileRecord{
		{Name: "b", Source: "two edited"},
	}
	if err := s.SaveProject(rec); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, err := s.GetProject(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected the project to exist")
	}
	if got.Name != "renamed" {
		t.Errorf("Expected updated name, got %q", got.Name)
	}
	if !reflect.DeepEqual(got.Files, rec.Files) {
		t.Errorf("Expected replaced file set, got %+v", got.Files)
	}
}

func TestLoadPreservesOrder(t *testing.T) {
	s := setupStore(t)

	for _, rec := range []project.Record{
		{ID: 2, Name: "second", Files: []project.FileRecord{{Name: "x"}}},
		{ID: 0, Name: "zeroth"},
		{ID: 1, Name: "first", Files: []project.FileRecord{{Name: "z"}, {Name: "y"}}},
	} {
		if err := s.SaveProject(rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	recs, err := s.LoadProjects()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 projects, got %d", len(recs))
	}
	for i, want := range []string{"zeroth", "first", "second"} {
		if recs[i].Name != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, recs[i].Name)
		}
	}
	if names := recs[1].Files; len(names) != 2 || names[0].Name != "z" {
		t.Errorf("Files should load in display order, got %+v", names)
	}
}

func TestGetProjectMissing(t *testing.T) {
	s := setupStore(t)

	got, err := s.GetProject(99)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for a missing project, got %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := setupStore(t)

	if err := s.SaveProject(project.Record{
		ID:    1,
		Name:  "p",
		Files: []project.FileRecord{{Name: "a"}, {Name: "b"}},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["project_count"] != 1 {
		t.Errorf("Expected 1 project, got %v", stats["project_count"])
	}
	if stats["file_count"] != 2 {
		t.Errorf("Expected 2 files, got %v", stats["file_count"])
	}
}
