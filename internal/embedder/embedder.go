// Package embedder attaches vector embeddings to persisted searchable
// records after insert.
package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/observe"
	"github.com/moorline/moorline/pkg/provider/embeddings"
)

// Updater overwrites the embedding column of an existing record.
type Updater interface {
	UpdateEmbedding(ctx context.Context, shape ingest.Shape, id string, embedding []float32) error
}

var _ ingest.EmbeddingTrigger = (*Trigger)(nil)

// Trigger embeds a record's salient text and writes the vector back to its
// row. Triggering is idempotent per record id: the update overwrites the
// vector in place, so re-invocation regenerates rather than duplicates.
type Trigger struct {
	provider embeddings.Provider
	updater  Updater
	metrics  *observe.Metrics
}

// New creates a Trigger.
func New(provider embeddings.Provider, updater Updater, metrics *observe.Metrics) *Trigger {
	return &Trigger{provider: provider, updater: updater, metrics: metrics}
}

// Trigger embeds text and attaches the vector to the record. Errors are
// returned for the caller to log; the persisted record stays valid either
// way.
func (t *Trigger) Trigger(ctx context.Context, shape ingest.Shape, recordID, text string) error {
	if t.provider == nil {
		return fmt.Errorf("embedder: no embeddings provider configured, %s record %s left without vector", shape, recordID)
	}
	if !shape.Searchable() {
		return fmt.Errorf("embedder: shape %q is not searchable", shape)
	}
	if text == "" {
		return fmt.Errorf("embedder: no text to embed for %s record %s", shape, recordID)
	}

	vec, err := t.provider.Embed(ctx, text)
	if err != nil {
		t.metrics.RecordProviderError(ctx, t.provider.ModelID(), "embed")
		return fmt.Errorf("embedder: embedding %s record %s: %w", shape, recordID, err)
	}

	if err := t.updater.UpdateEmbedding(ctx, shape, recordID, vec); err != nil {
		return fmt.Errorf("embedder: storing embedding for %s record %s: %w", shape, recordID, err)
	}

	observe.Logger(ctx).Debug("embedding attached",
		slog.String("shape", string(shape)),
		slog.String("record_id", recordID),
		slog.Int("dimensions", len(vec)),
	)
	return nil
}
