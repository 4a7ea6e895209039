package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrorEntry is one append-only error-log record.
type ErrorEntry struct {
	ID         string
	Severity   string
	Category   string
	Details    map[string]any
	Transcript string
	// Payload is the attempted record or columns, stored as JSONB so a
	// critical failure carries enough to reproduce the failing insert.
	Payload   any
	CreatedAt time.Time
}

// AppendError appends e to the error log and returns its id. Entries are
// never updated or deleted.
func (s *Store) AppendError(ctx context.Context, e ErrorEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}

	var payload []byte
	if e.Payload != nil {
		var err error
		payload, err = json.Marshal(e.Payload)
		if err != nil {
			// The payload is diagnostic; a value JSON cannot express must not
			// block the log entry itself.
			payload = []byte(fmt.Sprintf(`{"unencodable": %q}`, err.Error()))
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO validation_errors (id, severity, category, details, transcript, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Severity, e.Category, e.Details, e.Transcript, payload)
	if err != nil {
		return "", fmt.Errorf("store: appending error log: %w", err)
	}
	return e.ID, nil
}

// ReviewStatus is the lifecycle state of a review-queue item.
type ReviewStatus string

const (
	StatusNeedsReview ReviewStatus = "needs_review"
	StatusInProgress  ReviewStatus = "in_progress"
	StatusFixed       ReviewStatus = "fixed"
	StatusDiscarded   ReviewStatus = "discarded"
)

// legalTransitions encodes needs_review → in_progress → fixed|discarded.
var legalTransitions = map[ReviewStatus][]ReviewStatus{
	StatusNeedsReview: {StatusInProgress},
	StatusInProgress:  {StatusFixed, StatusDiscarded},
}

// ErrIllegalTransition is returned by UpdateReviewStatus for a status change
// outside the review lifecycle.
var ErrIllegalTransition = errors.New("store: illegal review status transition")

// ErrReviewNotFound is returned when a review-queue id does not exist.
var ErrReviewNotFound = errors.New("store: review item not found")

// ReviewItem is one parked transcript awaiting manual correction.
type ReviewItem struct {
	ID              string         `json:"id"`
	Transcript      string         `json:"transcript"`
	FailureReason   string         `json:"failure_reason"`
	FailureCategory string         `json:"failure_category"`
	Details         map[string]any `json:"details"`
	Status          ReviewStatus   `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// CreateReviewItem parks item with status needs_review and returns its id.
func (s *Store) CreateReviewItem(ctx context.Context, item ReviewItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Details == nil {
		item.Details = map[string]any{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_queue (id, transcript, failure_reason, failure_category, details, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.Transcript, item.FailureReason, item.FailureCategory,
		item.Details, string(StatusNeedsReview))
	if err != nil {
		return "", fmt.Errorf("store: creating review item: %w", err)
	}
	return item.ID, nil
}

// UpdateReviewStatus moves the item to status, enforcing the lifecycle. The
// current row is locked for the duration of the check.
func (s *Store) UpdateReviewStatus(ctx context.Context, id string, status ReviewStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current ReviewStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM review_queue WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("store: reading review status: %w", err)
	}

	allowed := false
	for _, next := range legalTransitions[current] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, status)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE review_queue SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id); err != nil {
		return fmt.Errorf("store: updating review status: %w", err)
	}
	return tx.Commit(ctx)
}

// GetReviewItem returns the item with id, or [ErrReviewNotFound].
func (s *Store) GetReviewItem(ctx context.Context, id string) (*ReviewItem, error) {
	var item ReviewItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, transcript, failure_reason, failure_category, details, status, created_at, updated_at
		FROM review_queue WHERE id = $1`, id).
		Scan(&item.ID, &item.Transcript, &item.FailureReason, &item.FailureCategory,
			&item.Details, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: getting review item: %w", err)
	}
	return &item, nil
}

// ListReviewItems returns items with the given status, oldest first.
func (s *Store) ListReviewItems(ctx context.Context, status ReviewStatus) ([]ReviewItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, transcript, failure_reason, failure_category, details, status, created_at, updated_at
		FROM review_queue WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: listing review items: %w", err)
	}
	defer rows.Close()

	var out []ReviewItem
	for rows.Next() {
		var item ReviewItem
		if err := rows.Scan(&item.ID, &item.Transcript, &item.FailureReason,
			&item.FailureCategory, &item.Details, &item.Status,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning review item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating review items: %w", err)
	}
	return out, nil
}
