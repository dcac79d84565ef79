package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads workflow blueprints from PostgreSQL. Session graphs and
// run state are never written back; they live in the Store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the blueprints table if it does not exist. Ids are TEXT:
// blueprint files may use any non-empty id, not only UUIDs.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blueprints (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			nodes      JSONB NOT NULL DEFAULT '[]',
			edges      JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Seed inserts the blueprint if a row with its id does not already exist.
func (r *Repository) Seed(ctx context.Context, bp *Blueprint) error {
	nodesJSON, err := json.Marshal(bp.Nodes)
	if err != nil {
		return fmt.Errorf("marshal seed nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(bp.Edges)
	if err != nil {
		return fmt.Errorf("marshal seed edges: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO blueprints (id, name, nodes, edges)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, bp.ID, bp.Name, nodesJSON, edgesJSON)
	if err != nil {
		return fmt.Errorf("seed blueprint: %w", err)
	}
	return nil
}

// Get retrieves a blueprint by ID. Returns nil, nil if not found.
func (r *Repository) Get(ctx context.Context, id string) (*Blueprint, error) {
	var bp Blueprint
	var nodesJSON, edgesJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, name, nodes, edges, created_at, updated_at
		FROM blueprints WHERE id = $1
	`, id).Scan(&bp.ID, &bp.Name, &nodesJSON, &edgesJSON, &bp.CreatedAt, &bp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blueprint: %w", err)
	}

	if err := json.Unmarshal(nodesJSON, &bp.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(edgesJSON, &bp.Edges); err != nil {
		return nil, fmt.Errorf("unmarshal edges: %w", err)
	}
	return &bp, nil
}

// InitDB creates the schema and seeds the given blueprint, the graph the canvas
// starts from. Called on startup.
func InitDB(ctx context.Context, pool *pgxpool.Pool, seed *Blueprint) error {
	repo := NewRepository(pool)
	if err := repo.InitSchema(ctx); err != nil {
		return err
	}
	return repo.Seed(ctx, seed)
}
