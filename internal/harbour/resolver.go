package harbour

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestionThreshold is the minimum Jaro-Winkler score for a registry name
// to be offered as a "did you mean" candidate.
const suggestionThreshold = 0.84

// maxSuggestions caps the candidate list attached to a resolution failure.
const maxSuggestions = 3

// NotFoundError is returned when a name matches no registry entry. It carries
// nearby registry names so a reviewer can correct a misheard harbour.
type NotFoundError struct {
	Name   string
	Nearby []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("harbour %q not found in registry", e.Name)
}

// Suggestions returns the nearby registry names, best match first.
func (e *NotFoundError) Suggestions() []string { return e.Nearby }

// AmbiguousError is returned when a name matches more than one registry
// entry. Resolution never picks one arbitrarily.
type AmbiguousError struct {
	Name  string
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("harbour %q matches %d registry entries", e.Name, e.Count)
}

// Resolver resolves harbour names to their stable identifiers with a
// case-insensitive exact lookup. It never fabricates an id.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the id for name. Zero matches yields a [*NotFoundError]
// with suggestions, multiple matches a [*AmbiguousError].
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &NotFoundError{Name: name}
	}

	matches, err := r.store.FindByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("harbour: lookup %q: %w", name, err)
	}

	switch len(matches) {
	case 1:
		return matches[0].ID, nil
	case 0:
		nearby, err := r.suggest(ctx, name)
		if err != nil {
			// Suggestions are best-effort; the failure itself still stands.
			nearby = nil
		}
		return "", &NotFoundError{Name: name, Nearby: nearby}
	default:
		return "", &AmbiguousError{Name: name, Count: len(matches)}
	}
}

// suggest ranks registry names against name by Jaro-Winkler score, letting a
// matching Double Metaphone code rescue spellings the string metric misses
// (transcribed Greek names drift phonetically more than orthographically).
func (r *Resolver) suggest(ctx context.Context, name string) ([]string, error) {
	names, err := r.store.Names(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(name)
	wantPrimary, wantSecondary := matchr.DoubleMetaphone(lower)

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, n := range names {
		nl := strings.ToLower(n)
		score := matchr.JaroWinkler(lower, nl, false)
		if score < suggestionThreshold {
			p, s := matchr.DoubleMetaphone(nl)
			if p == "" || (p != wantPrimary && p != wantSecondary && s != wantPrimary) {
				continue
			}
		}
		candidates = append(candidates, scored{name: n, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out, nil
}
