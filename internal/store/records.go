package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/moorline/moorline/internal/ingest"
)

var _ ingest.RecordStore = (*Store)(nil)

// ErrHarbourGone is returned when the referenced harbour disappeared between
// resolution and insert.
var ErrHarbourGone = errors.New("store: referenced harbour no longer exists")

// InsertRecord atomically inserts one transformed record for shape and
// returns its new id.
//
// When the columns carry a harbour_id, the harbour row is re-checked with
// FOR KEY SHARE inside the same transaction, so a concurrent harbour delete
// fails this insert instead of leaving a dangling reference.
func (s *Store) InsertRecord(ctx context.Context, shape ingest.Shape, cols ingest.Columns) (string, error) {
	id := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if hid, ok := cols["harbour_id"].(string); ok && hid != "" {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM harbours WHERE id = $1 FOR KEY SHARE`, hid).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrHarbourGone, hid)
		}
		if err != nil {
			return "", fmt.Errorf("store: verifying harbour %s: %w", hid, err)
		}
	}

	var stmt string
	var args []any
	switch shape {
	case ingest.ShapeQnA:
		stmt = `INSERT INTO qna_pairs (id, question, answer, harbour_id, category, tier, tags, row_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		args = []any{id, cols["question"], cols["answer"], cols["harbour_id"],
			cols["category"], cols["tier"], cols["tags"], cols["row_id"]}

	case ingest.ShapeHarbour:
		stmt = `INSERT INTO harbours (id, name, island, lat, lon, description, facilities, vhf_channel)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		args = []any{id, cols["name"], cols["island"], cols["lat"], cols["lon"],
			cols["description"], cols["facilities"], cols["vhf_channel"]}

	case ingest.ShapeWeather:
		stmt = `INSERT INTO weather_profiles (id, harbour_id, wind_directions, shelter_quality, notes)
			VALUES ($1, $2, $3, $4, $5)`
		args = []any{id, cols["harbour_id"], cols["wind_directions"],
			cols["shelter_quality"], cols["notes"]}

	case ingest.ShapeMedia:
		stmt = `INSERT INTO media_assets (id, harbour_id, media_type, caption, url, row_id)
			VALUES ($1, $2, $3, $4, $5, $6)`
		args = []any{id, cols["harbour_id"], cols["media_type"], cols["caption"],
			cols["url"], cols["row_id"]}

	default:
		return "", fmt.Errorf("store: insert: unknown shape %q", shape)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return "", fmt.Errorf("store: inserting %s record: %w", shape, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// UpdateEmbedding overwrites the embedding column of an existing record.
// Re-invoking for the same id replaces the vector; no new row is created.
func (s *Store) UpdateEmbedding(ctx context.Context, shape ingest.Shape, id string, embedding []float32) error {
	if !shape.Searchable() {
		return fmt.Errorf("store: shape %q has no embedding column", shape)
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET embedding = $1 WHERE id = $2`, shape.Table()),
		pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("store: updating %s embedding: %w", shape, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %s record %s not found", shape, id)
	}
	return nil
}

// QnAMatch is one similarity-search hit over qna_pairs.
type QnAMatch struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Category string  `json:"category"`
	Tier     string  `json:"tier"`
	Score    float64 `json:"score"`
}

// SearchQnA returns the qna rows nearest to embedding by cosine distance,
// best first. Rows without an embedding are skipped.
func (s *Store) SearchQnA(ctx context.Context, embedding []float32, limit int) ([]QnAMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, `
		SELECT id, question, answer, category, tier, 1 - (embedding <=> $1) AS score
		FROM qna_pairs
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("store: searching qna: %w", err)
	}
	defer rows.Close()

	var out []QnAMatch
	for rows.Next() {
		var m QnAMatch
		if err := rows.Scan(&m.ID, &m.Question, &m.Answer, &m.Category, &m.Tier, &m.Score); err != nil {
			return nil, fmt.Errorf("store: scanning qna match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating qna matches: %w", err)
	}
	return out, nil
}
