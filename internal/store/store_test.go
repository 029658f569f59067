package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/codedswitch/studio/internal/pattern"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lib", "studio.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadByIDAndName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := pattern.DefaultKit()
	p.BPM = 94
	p.Tracks[0].Steps[0].Active = true
	p.Tracks[2].Steps[6].Velocity = 33

	id, err := s.Save(ctx, "boom bap", p)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	for _, ref := range []string{id, "boom bap"} {
		got, e, err := s.Load(ctx, ref)
		if err != nil {
			t.Fatalf("Load(%q): %v", ref, err)
		}
		if e.ID != id || e.Name != "boom bap" || e.BPM != 94 || e.Tracks != len(p.Tracks) {
			t.Errorf("entry = %+v", e)
		}
		if got.BPM != 94 || !got.Tracks[0].Steps[0].Active || got.Tracks[2].Steps[6].Velocity != 33 {
			t.Errorf("Load(%q) returned a different pattern", ref)
		}
	}
}

func TestSaveReplacesSameName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.Save(ctx, "groove", pattern.DefaultKit())
	if err != nil {
		t.Fatal(err)
	}
	p := pattern.DefaultKit()
	p.Length = 32
	id2, err := s.Save(ctx, "groove", p)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("resave changed id %s -> %s", id1, id2)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Length != 32 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.Save(ctx, name, pattern.New()); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Load(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load deleted = %v, want ErrNotFound", err)
	}
	if entries, _ := s.List(ctx); len(entries) != 2 {
		t.Errorf("got %d entries after delete", len(entries))
	}
}

func TestSaveRequiresName(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Save(context.Background(), "", pattern.New()); err == nil {
		t.Error("Save with empty name should fail")
	}
}
