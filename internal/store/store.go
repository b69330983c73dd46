// Package store implements durable history persistence with
// github.com/jackc/pgx/v5, grounded on the teacher's server/main.go
// pgxpool.New usage. Blocks are append-only (spec.md §3), so the write
// path is a single insert keyed on a block's (actor, seq) dedup
// identity, letting Postgres itself absorb a redelivered block.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orionz/cambriamerge/internal/backend"
	"github.com/orionz/cambriamerge/internal/block"
)

// Store is a Postgres-backed append log of blocks, partitioned by
// document id.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection with a ping, the
// way the teacher's main connects to Postgres before doing anything
// else with it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the blocks table if it doesn't already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blocks (
			doc_id     TEXT NOT NULL,
			actor      TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			schema     TEXT NOT NULL,
			lenses     JSONB NOT NULL,
			change     JSONB NOT NULL,
			PRIMARY KEY (doc_id, actor, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("store: ensuring schema: %w", err)
	}
	return nil
}

// Append inserts b for docID, doing nothing if a block with the same
// (actor, seq) already exists -- the store's half of the (actor, seq)
// dedup key spec.md §3 defines for blocks; the Engine's own Clock
// check is what actually decides whether b's ops get folded in, so a
// redelivered block merely fails to insert here, it doesn't error.
func (s *Store) Append(ctx context.Context, docID string, b block.Block) error {
	lensesJSON, err := json.Marshal(b.Lenses)
	if err != nil {
		return fmt.Errorf("store: marshaling lenses: %w", err)
	}
	changeJSON, err := json.Marshal(b.Change)
	if err != nil {
		return fmt.Errorf("store: marshaling change: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO blocks (doc_id, actor, seq, schema, lenses, change)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id, actor, seq) DO NOTHING
	`, docID, b.Change.Actor, b.Change.Seq, b.Schema, lensesJSON, changeJSON)
	if err != nil {
		return fmt.Errorf("store: inserting block (%s, %d): %w", b.Change.Actor, b.Change.Seq, err)
	}
	return nil
}

// Load returns every block persisted for docID, in insertion order,
// the history an Engine needs to rebuild its shadows on restart.
func (s *Store) Load(ctx context.Context, docID string) ([]block.Block, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT schema, lenses, change
		FROM blocks
		WHERE doc_id = $1
		ORDER BY actor, seq
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: loading blocks for %s: %w", docID, err)
	}
	defer rows.Close()

	var out []block.Block
	for rows.Next() {
		var schema string
		var lensesJSON, changeJSON []byte
		if err := rows.Scan(&schema, &lensesJSON, &changeJSON); err != nil {
			return nil, fmt.Errorf("store: scanning block row: %w", err)
		}
		var regs []block.Registration
		if err := json.Unmarshal(lensesJSON, &regs); err != nil {
			return nil, fmt.Errorf("store: unmarshaling lenses: %w", err)
		}
		var ch backend.Change
		if err := json.Unmarshal(changeJSON, &ch); err != nil {
			return nil, fmt.Errorf("store: unmarshaling change: %w", err)
		}
		out = append(out, block.Block{Schema: schema, Lenses: regs, Change: ch})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating block rows: %w", err)
	}
	return out, nil
}
