package harbour_test

import (
	"context"
	"errors"
	"testing"

	"github.com/moorline/moorline/internal/harbour"
)

func seededStore() *harbour.MemStore {
	s := harbour.NewMemStore()
	for _, name := range []string{"Kioni", "Frikes", "Vathi", "Pera Pigadi", "Polis Bay"} {
		s.Add(harbour.Harbour{Name: name, Island: "Ithaca"})
	}
	return s
}

func TestResolveExactMatch(t *testing.T) {
	t.Parallel()

	s := seededStore()
	added := s.Add(harbour.Harbour{Name: "Kalamos", Island: "Kalamos"})
	r := harbour.NewResolver(s)

	id, err := r.Resolve(context.Background(), "kalamos")
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if id != added.ID {
		t.Errorf("id: expected %q, got %q", added.ID, id)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := harbour.NewResolver(seededStore())

	for _, name := range []string{"Kioni", "KIONI", "kioni", " kioni "} {
		if _, err := r.Resolve(context.Background(), name); err != nil {
			t.Errorf("Resolve(%q): unexpected error: %v", name, err)
		}
	}
}

func TestResolveNotFoundWithSuggestions(t *testing.T) {
	t.Parallel()

	r := harbour.NewResolver(seededStore())

	_, err := r.Resolve(context.Background(), "Kionni")
	if err == nil {
		t.Fatal("Resolve: expected error, got nil")
	}
	var nf *harbour.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve: expected *NotFoundError, got %T", err)
	}
	sugg := nf.Suggestions()
	if len(sugg) == 0 {
		t.Fatal("Suggestions: expected at least one candidate")
	}
	if sugg[0] != "Kioni" {
		t.Errorf("Suggestions: expected Kioni first, got %v", sugg)
	}
}

func TestResolveEmptyName(t *testing.T) {
	t.Parallel()

	r := harbour.NewResolver(seededStore())

	_, err := r.Resolve(context.Background(), "  ")
	var nf *harbour.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve: expected *NotFoundError, got %T (%v)", err, err)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	t.Parallel()

	s := seededStore()
	s.Add(harbour.Harbour{Name: "kioni", Island: "Elsewhere"})
	r := harbour.NewResolver(s)

	_, err := r.Resolve(context.Background(), "Kioni")
	var amb *harbour.AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("Resolve: expected *AmbiguousError, got %T (%v)", err, err)
	}
	if amb.Count != 2 {
		t.Errorf("Count: expected 2, got %d", amb.Count)
	}
}

func TestMemStoreFindByName(t *testing.T) {
	t.Parallel()

	s := seededStore()
	matches, err := s.FindByName(context.Background(), "VATHI")
	if err != nil {
		t.Fatalf("FindByName: unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Vathi" {
		t.Fatalf("FindByName: expected single Vathi, got %+v", matches)
	}
	if matches[0].ID == "" {
		t.Error("FindByName: expected assigned id")
	}
}
