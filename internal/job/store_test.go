package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"doifind/internal/citation"
)

func TestMemoryStore_CreateGetList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := New("a.txt", "/tmp/a.txt", citation.StyleAPA, nil)
	second := New("b.txt", "/tmp/b.txt", citation.StyleAMA, nil)

	if err := s.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, first); err == nil {
		t.Error("duplicate create must fail")
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil || got != first {
		t.Errorf("Get = %v, %v", got, err)
	}
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing job: err = %v", err)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0] != first || all[1] != second {
		t.Errorf("List order wrong: %v", all)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}

	cits := []citation.Citation{
		citation.New(1, "Smith J. One. J Med. 2020. doi:10.1234/x", citation.StyleAMA),
		citation.New(2, "Jones A. Two. Nature. 2021.", citation.StyleAMA),
	}
	j := New("paper.pdf", "/tmp/paper.pdf", citation.StyleAMA, cits)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.begin()
	j.record(found(2, "10.1/two", 85), 2, 2)
	j.complete(true)
	if err := s.Save(ctx, j); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen so Get has to rehydrate from disk.
	s2, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	snap := got.Snapshot()
	if snap.Status != StateCompleted || snap.Progress != 100 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Citations) != 2 {
		t.Fatalf("citations = %d", len(snap.Citations))
	}
	if snap.Citations[0].Status != citation.StatusHasDOI || snap.Citations[0].DOI != "10.1234/x" {
		t.Errorf("citation 1 = %+v", snap.Citations[0])
	}
	if snap.Citations[1].Status != citation.StatusFound || snap.Citations[1].DOI != "10.1/two" {
		t.Errorf("citation 2 = %+v", snap.Citations[1])
	}
	if got.Style != citation.StyleAMA || got.Filename != "paper.pdf" {
		t.Errorf("metadata = %q %q", got.Style, got.Filename)
	}

	if _, err := s2.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing job: err = %v", err)
	}
}
