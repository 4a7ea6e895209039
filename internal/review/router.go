// Package review routes pipeline failures: every logged category is appended
// to the persistent error log, and recoverable ambiguity is parked in the
// review queue for manual correction.
package review

import (
	"context"
	"log/slog"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/observe"
	"github.com/moorline/moorline/internal/store"
)

// Sink is the persistence surface the router writes to.
type Sink interface {
	AppendError(ctx context.Context, e store.ErrorEntry) (string, error)
	CreateReviewItem(ctx context.Context, item store.ReviewItem) (string, error)
}

var _ ingest.FailureRouter = (*Router)(nil)

// Router is the central failure sink. Routing never fails the request: sink
// errors are logged and swallowed, the original failure disposition stands.
type Router struct {
	sink    Sink
	metrics *observe.Metrics
}

// NewRouter creates a Router writing to sink.
func NewRouter(sink Sink, metrics *observe.Metrics) *Router {
	return &Router{sink: sink, metrics: metrics}
}

// Route applies the taxonomy disposition for f: a structured log line at the
// category's severity, an error-log entry, and, for parkable categories, a
// review-queue item whose id is returned.
func (r *Router) Route(ctx context.Context, f ingest.Failure) string {
	logger := observe.Logger(ctx)
	severity := f.Category.Severity()

	attrs := []any{
		slog.String("category", string(f.Category)),
		slog.String("severity", string(severity)),
		slog.String("message", f.Message),
	}
	switch severity {
	case ingest.SeverityCritical:
		logger.Error("ingestion failure", attrs...)
	case ingest.SeverityHigh:
		logger.Warn("ingestion failure", attrs...)
	default:
		logger.Info("ingestion failure", attrs...)
	}

	if _, err := r.sink.AppendError(ctx, store.ErrorEntry{
		Severity:   string(severity),
		Category:   string(f.Category),
		Details:    f.Detail,
		Transcript: f.Transcript,
		Payload:    f.Payload,
	}); err != nil {
		logger.Error("appending error log entry failed", slog.Any("error", err))
	}

	if !f.Category.Parkable() {
		return ""
	}

	id, err := r.sink.CreateReviewItem(ctx, store.ReviewItem{
		Transcript:      f.Transcript,
		FailureReason:   f.Message,
		FailureCategory: string(f.Category),
		Details:         f.Detail,
	})
	if err != nil {
		logger.Error("parking transcript failed", slog.Any("error", err))
		return ""
	}

	r.metrics.RecordParked(ctx, string(f.Category))
	return id
}
