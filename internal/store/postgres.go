package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hibrida/pricing-engine/internal/model"
)

// snapshotKey is the single row the engine state lives under. The engine is
// single-writer, so one row with an updated_at column is all the durability
// model needs.
const snapshotKey = "current"

// PostgresStore implements Store with the snapshot serialized to a JSONB
// column. Monetary values survive the round-trip exactly because decimals
// marshal as JSON numbers with their full precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Init creates the snapshot table when it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS engine_snapshots (
			id         TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM engine_snapshots WHERE id = $1`, snapshotKey).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO engine_snapshots (id, state, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		snapshotKey, data)
	return err
}
