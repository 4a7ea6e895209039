package harbour

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore is the production registry backed by the harbours table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a registry store over pool. The pool is owned by
// the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindByName returns all harbours matching name case-insensitively.
func (s *PostgresStore) FindByName(ctx context.Context, name string) ([]Harbour, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, island, lat, lon, description, facilities, COALESCE(vhf_channel, '')
		FROM harbours
		WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return nil, fmt.Errorf("harbour: querying by name: %w", err)
	}
	defer rows.Close()

	var out []Harbour
	for rows.Next() {
		var h Harbour
		if err := rows.Scan(&h.ID, &h.Name, &h.Island, &h.Lat, &h.Lon,
			&h.Description, &h.Facilities, &h.VHFChannel); err != nil {
			return nil, fmt.Errorf("harbour: scanning row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("harbour: iterating rows: %w", err)
	}
	return out, nil
}

// Names returns every registered harbour name.
func (s *PostgresStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM harbours ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("harbour: querying names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("harbour: scanning name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("harbour: iterating names: %w", err)
	}
	return out, nil
}
