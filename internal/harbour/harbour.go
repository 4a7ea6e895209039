// Package harbour holds the harbour registry: the authoritative name-to-id
// mapping every harbour-referencing record resolves against before it is
// persisted.
package harbour

import "context"

// Harbour is a registry entry.
type Harbour struct {
	ID          string
	Name        string
	Island      string
	Lat         float64
	Lon         float64
	Description string
	Facilities  []string
	VHFChannel  string
}

// Store is the registry lookup surface the resolver needs.
type Store interface {
	// FindByName returns all harbours whose name equals name
	// case-insensitively. An empty slice means no match.
	FindByName(ctx context.Context, name string) ([]Harbour, error)

	// Names returns every registered harbour name, used for suggestion
	// generation when resolution fails.
	Names(ctx context.Context) ([]string, error)
}
