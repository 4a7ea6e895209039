package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/store"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if MOORLINE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MOORLINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MOORLINE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [store.Store] over a clean schema and closes
// it when the test finishes.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	s, err := store.New(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// best-effort: pgvector may not be installed yet on a fresh DB
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS review_queue CASCADE",
		"DROP TABLE IF EXISTS validation_errors CASCADE",
		"DROP TABLE IF EXISTS media_assets CASCADE",
		"DROP TABLE IF EXISTS weather_profiles CASCADE",
		"DROP TABLE IF EXISTS qna_pairs CASCADE",
		"DROP TABLE IF EXISTS harbours CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema: %v", err)
		}
	}
}

// insertHarbour writes a harbour master row and returns its id.
func insertHarbour(t *testing.T, s *store.Store, name string) string {
	t.Helper()
	id, err := s.InsertRecord(context.Background(), ingest.ShapeHarbour, ingest.Columns{
		"name":        name,
		"island":      "Ithaca",
		"lat":         38.3661,
		"lon":         20.7258,
		"description": "test harbour",
		"facilities":  []string{"water"},
		"vhf_channel": nil,
	})
	if err != nil {
		t.Fatalf("InsertRecord(harbour): %v", err)
	}
	return id
}

func TestInsertRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	harbourID := insertHarbour(t, s, "Kioni")

	qnaID, err := s.InsertRecord(ctx, ingest.ShapeQnA, ingest.Columns{
		"question":   "Depth at the quay?",
		"answer":     "1. About 3m. 2. Shallower at the edges.",
		"harbour_id": harbourID,
		"category":   "mooring",
		"tier":       "pro",
		"tags":       []string{"mooring:depth"},
		"row_id":     "row-1",
	})
	if err != nil {
		t.Fatalf("InsertRecord(qna): %v", err)
	}

	var gotQuestion, gotRowID string
	var gotTags []string
	err = s.Pool().QueryRow(ctx,
		`SELECT question, row_id, tags FROM qna_pairs WHERE id = $1`, qnaID).
		Scan(&gotQuestion, &gotRowID, &gotTags)
	if err != nil {
		t.Fatalf("reading back qna row: %v", err)
	}
	if gotQuestion != "Depth at the quay?" || gotRowID != "row-1" || len(gotTags) != 1 {
		t.Errorf("qna row: got %q/%q/%v", gotQuestion, gotRowID, gotTags)
	}

	_, err = s.InsertRecord(ctx, ingest.ShapeWeather, ingest.Columns{
		"harbour_id":      harbourID,
		"wind_directions": []string{"ne"},
		"shelter_quality": "poor",
		"notes":           "swell works in",
	})
	if err != nil {
		t.Fatalf("InsertRecord(weather): %v", err)
	}
}

func TestInsertRecordRejectsVanishedHarbour(t *testing.T) {
	s := newTestStore(t)

	_, err := s.InsertRecord(context.Background(), ingest.ShapeMedia, ingest.Columns{
		"harbour_id": "no-such-harbour",
		"media_type": "photo",
		"caption":    "x",
		"url":        nil,
		"row_id":     nil,
	})
	if !errors.Is(err, store.ErrHarbourGone) {
		t.Fatalf("InsertRecord: expected ErrHarbourGone, got %v", err)
	}
}

func TestUpdateEmbeddingIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	harbourID := insertHarbour(t, s, "Kioni")
	id, err := s.InsertRecord(ctx, ingest.ShapeQnA, ingest.Columns{
		"question":   "Q",
		"answer":     "A",
		"harbour_id": harbourID,
		"category":   "mooring",
		"tier":       "free",
		"tags":       []string{},
		"row_id":     nil,
	})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	for _, vec := range [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{0.9, 0.8, 0.7, 0.6},
	} {
		if err := s.UpdateEmbedding(ctx, ingest.ShapeQnA, id, vec); err != nil {
			t.Fatalf("UpdateEmbedding: %v", err)
		}
	}

	var count int
	if err := s.Pool().QueryRow(ctx, `SELECT count(*) FROM qna_pairs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count: expected 1 row after repeated embedding updates, got %d", count)
	}

	matches, err := s.SearchQnA(ctx, []float32{0.9, 0.8, 0.7, 0.6}, 3)
	if err != nil {
		t.Fatalf("SearchQnA: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != id {
		t.Fatalf("SearchQnA: expected the single embedded row, got %+v", matches)
	}
}

func TestReviewLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateReviewItem(ctx, store.ReviewItem{
		Transcript:      "something about a quay",
		FailureReason:   "classification confidence below threshold",
		FailureCategory: "low_confidence",
		Details:         map[string]any{"suggested_shape": "qna"},
	})
	if err != nil {
		t.Fatalf("CreateReviewItem: %v", err)
	}

	item, err := s.GetReviewItem(ctx, id)
	if err != nil {
		t.Fatalf("GetReviewItem: %v", err)
	}
	if item.Status != store.StatusNeedsReview {
		t.Fatalf("status: expected needs_review, got %q", item.Status)
	}

	// Skipping straight to fixed is illegal.
	if err := s.UpdateReviewStatus(ctx, id, store.StatusFixed); !errors.Is(err, store.ErrIllegalTransition) {
		t.Fatalf("UpdateReviewStatus: expected ErrIllegalTransition, got %v", err)
	}

	if err := s.UpdateReviewStatus(ctx, id, store.StatusInProgress); err != nil {
		t.Fatalf("UpdateReviewStatus(in_progress): %v", err)
	}
	if err := s.UpdateReviewStatus(ctx, id, store.StatusDiscarded); err != nil {
		t.Fatalf("UpdateReviewStatus(discarded): %v", err)
	}

	// Terminal states accept no further transitions.
	if err := s.UpdateReviewStatus(ctx, id, store.StatusInProgress); !errors.Is(err, store.ErrIllegalTransition) {
		t.Fatalf("UpdateReviewStatus: expected ErrIllegalTransition from terminal state, got %v", err)
	}

	pending, err := s.ListReviewItems(ctx, store.StatusNeedsReview)
	if err != nil {
		t.Fatalf("ListReviewItems: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListReviewItems: expected empty needs_review queue, got %d items", len(pending))
	}
}

func TestAppendError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendError(ctx, store.ErrorEntry{
		Severity:   "high",
		Category:   "schema_validation",
		Details:    map[string]any{"violations": []string{"lat: out of range"}},
		Transcript: "HARBOUR: Vathi, 9999 N 9999 E",
		Payload:    map[string]any{"lat": 9999},
	})
	if err != nil {
		t.Fatalf("AppendError: %v", err)
	}

	var category string
	if err := s.Pool().QueryRow(ctx,
		`SELECT category FROM validation_errors WHERE id = $1`, id).Scan(&category); err != nil {
		t.Fatalf("reading back error entry: %v", err)
	}
	if category != "schema_validation" {
		t.Errorf("category: expected schema_validation, got %q", category)
	}
}
