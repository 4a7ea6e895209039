package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlHarbours = `
CREATE TABLE IF NOT EXISTS harbours (
    id           TEXT              PRIMARY KEY,
    name         TEXT              NOT NULL,
    island       TEXT              NOT NULL,
    lat          DOUBLE PRECISION  NOT NULL,
    lon          DOUBLE PRECISION  NOT NULL,
    description  TEXT              NOT NULL DEFAULT '',
    facilities   TEXT[]            NOT NULL DEFAULT '{}',
    vhf_channel  TEXT,
    created_at   TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_harbours_lower_name
    ON harbours (lower(name));
`

// ddlRecords returns the per-shape record table DDL with the embedding
// dimension substituted. The vector dimension is baked into the column type
// at schema creation time.
func ddlRecords(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS qna_pairs (
    id          TEXT         PRIMARY KEY,
    question    TEXT         NOT NULL,
    answer      TEXT         NOT NULL,
    harbour_id  TEXT         NOT NULL REFERENCES harbours (id),
    category    TEXT         NOT NULL,
    tier        TEXT         NOT NULL,
    tags        TEXT[]       NOT NULL DEFAULT '{}',
    row_id      TEXT,
    embedding   vector(%[1]d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_qna_pairs_harbour_id
    ON qna_pairs (harbour_id);

CREATE INDEX IF NOT EXISTS idx_qna_pairs_embedding
    ON qna_pairs USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS weather_profiles (
    id               TEXT         PRIMARY KEY,
    harbour_id       TEXT         NOT NULL REFERENCES harbours (id),
    wind_directions  TEXT[]       NOT NULL DEFAULT '{}',
    shelter_quality  TEXT         NOT NULL,
    notes            TEXT         NOT NULL DEFAULT '',
    embedding        vector(%[1]d),
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_weather_profiles_harbour_id
    ON weather_profiles (harbour_id);

CREATE INDEX IF NOT EXISTS idx_weather_profiles_embedding
    ON weather_profiles USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS media_assets (
    id          TEXT         PRIMARY KEY,
    harbour_id  TEXT         NOT NULL REFERENCES harbours (id),
    media_type  TEXT         NOT NULL,
    caption     TEXT         NOT NULL DEFAULT '',
    url         TEXT,
    row_id      TEXT,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_media_assets_harbour_id
    ON media_assets (harbour_id);
`, embeddingDimensions)
}

const ddlFailures = `
CREATE TABLE IF NOT EXISTS validation_errors (
    id          TEXT         PRIMARY KEY,
    severity    TEXT         NOT NULL,
    category    TEXT         NOT NULL,
    details     JSONB        NOT NULL DEFAULT '{}',
    transcript  TEXT         NOT NULL,
    payload     JSONB,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_validation_errors_category
    ON validation_errors (category);

CREATE TABLE IF NOT EXISTS review_queue (
    id                TEXT         PRIMARY KEY,
    transcript        TEXT         NOT NULL,
    failure_reason    TEXT         NOT NULL,
    failure_category  TEXT         NOT NULL,
    details           JSONB        NOT NULL DEFAULT '{}',
    status            TEXT         NOT NULL DEFAULT 'needs_review',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status
    ON review_queue (status);
`

// Migrate creates or ensures all required tables, indexes, and extensions
// exist. It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlHarbours,
		ddlRecords(embeddingDimensions),
		ddlFailures,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store migrate: %w", err)
		}
	}
	return nil
}
