// Package sqlite implements repository.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"meshview/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements repository.Store using SQLite
type Store struct {
	db *sql.DB
}

// New opens (and if necessary migrates) the database at path
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		ieee TEXT PRIMARY KEY,
		x REAL NOT NULL,
		y REAL NOT NULL,
		space TEXT NOT NULL DEFAULT 'free',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_positions_space ON positions(space);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Positions returns all stored positions keyed by IEEE
func (s *Store) Positions(ctx context.Context) (map[string]domain.NodePosition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ieee, x, y, space FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]domain.NodePosition)
	for rows.Next() {
		var pos domain.NodePosition
		if err := rows.Scan(&pos.IEEE, &pos.X, &pos.Y, &pos.Space); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions[pos.IEEE] = pos
	}
	return positions, rows.Err()
}

// SavePosition upserts one position. The single statement keeps concurrent
// writers from losing updates: last write wins, applied atomically.
func (s *Store) SavePosition(ctx context.Context, pos domain.NodePosition) error {
	if pos.IEEE == "" {
		return fmt.Errorf("position requires a node identifier")
	}
	if pos.Space == "" {
		pos.Space = domain.SpaceFree
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (ieee, x, y, space, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ieee) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			space = excluded.space,
			updated_at = CURRENT_TIMESTAMP
	`, pos.IEEE, pos.X, pos.Y, pos.Space)
	if err != nil {
		return fmt.Errorf("failed to save position for %s: %w", pos.IEEE, err)
	}
	return nil
}

// SavePositions upserts a batch in one transaction
func (s *Store) SavePositions(ctx context.Context, positions []domain.NodePosition) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (ieee, x, y, space, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ieee) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			space = excluded.space,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, pos := range positions {
		if pos.IEEE == "" {
			continue
		}
		if pos.Space == "" {
			pos.Space = domain.SpaceFree
		}
		if _, err := stmt.ExecContext(ctx, pos.IEEE, pos.X, pos.Y, pos.Space); err != nil {
			return fmt.Errorf("failed to save position for %s: %w", pos.IEEE, err)
		}
	}

	return tx.Commit()
}

// ResetPositions clears every position in the given coordinate space
func (s *Store) ResetPositions(ctx context.Context, space string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE space = ?`, space)
	if err != nil {
		return fmt.Errorf("failed to reset positions: %w", err)
	}
	return nil
}

// SaveSnapshot persists the latest fused graph, replacing the previous one
func (s *Store) SaveSnapshot(ctx context.Context, g *domain.Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, data, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, data)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the persisted graph, or nil when none was saved yet
func (s *Store) LatestSnapshot(ctx context.Context) (*domain.Graph, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &g, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
